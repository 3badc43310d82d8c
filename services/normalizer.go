package services

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"deal-hand/models"
)

var (
	// Genau ein Rechtsform-Suffix am Ende, optional mit Punkt
	corporateSuffixRegex = regexp.MustCompile(`\s+(?:inc\.?|corp\.?|corporation|ltd\.?|limited|llc|plc|s\.?a\.?|ag|gmbh|co\.?)$`)
	leadingTheRegex      = regexp.MustCompile(`^the\s+`)
	whitespaceRegex      = regexp.MustCompile(`\s+`)
	punctuationRegex     = regexp.MustCompile(`[.,]`)
	trailingPunctRegex   = regexp.MustCompile(`[.,\s]+$`)

	currencyRegex    = regexp.MustCompile(`[$€£¥]`)
	valueTokenRegex  = regexp.MustCompile(`(?i)([0-9,.]+)\s*(billion|million|trillion|b|m|t|bn|mn)?`)
	leadingNumberRe  = regexp.MustCompile(`^(?:\d+\.?\d*|\.\d+)`)
	slugInvalidRegex = regexp.MustCompile(`[^a-z0-9-]`)
	slugHyphensRegex = regexp.MustCompile(`-+`)
)

const maxSlugLength = 100

// NormalizeCompanyName bringt einen Firmennamen in eine kanonische Vergleichsform:
// klein geschrieben, ohne Rechtsform-Suffix, ohne führendes "The", ohne Satzzeichen.
// Entfernt wird nur ein Suffix und ein "The": "Foo Co Inc" und "The The Foo" sind
// nach einem Durchlauf noch nicht stabil.
func NormalizeCompanyName(name string) string {
	s := strings.TrimSpace(strings.ToLower(norm.NFKC.String(name)))
	s = trailingPunctRegex.ReplaceAllString(s, "")
	s = corporateSuffixRegex.ReplaceAllString(s, "")
	s = leadingTheRegex.ReplaceAllString(s, "")
	s = whitespaceRegex.ReplaceAllString(s, " ")
	s = punctuationRegex.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// statusKeywords in Prioritätsreihenfolge: die erste passende Gruppe gewinnt.
var statusKeywords = []struct {
	status   models.Status
	keywords []string
}{
	{models.StatusCompleted, []string{"complet", "closed", "finalized"}},
	{models.StatusPending, []string{"pending", "review", "regulatory"}},
	{models.StatusWithdrawn, []string{"withdrawn", "cancelled", "terminated"}},
	{models.StatusRumored, []string{"rumor", "rumour", "speculation"}},
}

// ParseStatus ordnet freien Statustext einem Deal-Status zu, Standard ist Announced.
func ParseStatus(text string) models.Status {
	s := strings.ToLower(strings.TrimSpace(text))
	for _, group := range statusKeywords {
		if containsAny(s, group.keywords) {
			return group.status
		}
	}
	return models.StatusAnnounced
}

// ParseValue liest einen Geldbetrag wie "$5.2 billion" oder "750" als USD.
// Best effort: Zahlen ohne Größenangabe unter 1.000 gelten als Milliarden, über
// 1.000.000 als USD; alles dazwischen wird unverändert zurückgegeben.
func ParseValue(text string) (int64, bool) {
	cleaned := strings.TrimSpace(currencyRegex.ReplaceAllString(text, ""))
	if cleaned == "" {
		return 0, false
	}
	match := valueTokenRegex.FindStringSubmatch(cleaned)
	if match == nil {
		return 0, false
	}
	numeric := leadingNumberRe.FindString(strings.ReplaceAll(match[1], ",", ""))
	if numeric == "" {
		return 0, false
	}
	num, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return 0, false
	}

	multiplier := strings.ToLower(match[2])
	switch {
	case strings.HasPrefix(multiplier, "t"):
		num *= 1e12
	case strings.HasPrefix(multiplier, "b"):
		num *= 1e9
	case strings.HasPrefix(multiplier, "m"):
		num *= 1e6
	case num > 1_000_000:
		// bereits in USD
	case num < 1000:
		num *= 1e9
	}
	if num > math.MaxInt64 {
		return 0, false
	}
	return int64(math.Round(num)), true
}

type keywordCategory struct {
	name     string
	keywords []string
}

var sectorTable = []keywordCategory{
	{"Technology", []string{"software", "tech", "cloud", "saas", "ai", "semiconductor", "chip", "digital"}},
	{"Healthcare", []string{"pharma", "biotech", "medical", "health", "hospital", "drug", "therapeutic"}},
	{"Financial Services", []string{"bank", "fintech", "insurance", "asset management", "investment", "financial"}},
	{"Energy", []string{"oil", "gas", "energy", "renewable", "solar", "wind", "utility", "power"}},
	{"Consumer", []string{"retail", "consumer", "food", "beverage", "restaurant", "brand"}},
	{"Industrial", []string{"manufacturing", "industrial", "aerospace", "defense", "automotive"}},
	{"Real Estate", []string{"real estate", "property", "reit", "commercial property"}},
	{"Telecommunications", []string{"telecom", "wireless", "5g", "broadband", "network"}},
	{"Media & Entertainment", []string{"media", "entertainment", "streaming", "gaming", "studio"}},
	{"Mining & Metals", []string{"mining", "metal", "lithium", "copper", "gold", "steel"}},
}

var geographyTable = []keywordCategory{
	{"North America", []string{"united states", "usa", "us", "american", "canada", "canadian", "mexico"}},
	{"Europe", []string{"europe", "european", "uk", "british", "germany", "german", "france", "french", "spain", "italy"}},
	{"Asia Pacific", []string{"asia", "asian", "china", "chinese", "japan", "japanese", "australia", "india", "korea", "singapore"}},
	{"Latin America", []string{"brazil", "argentina", "latin america", "south america"}},
	{"Middle East", []string{"middle east", "uae", "saudi", "israel", "dubai"}},
	{"Africa", []string{"africa", "south africa", "nigeria", "egypt"}},
}

// DetectSector ordnet Text per Schlüsselwort einer Branche zu, Standard "Diversified".
// Es wird nach Teilstrings gesucht, "retail" trifft also auch "ai" (Technology).
func DetectSector(text string) string {
	return detectCategory(text, sectorTable, "Diversified")
}

// DetectGeography ordnet Text per Schlüsselwort einer Region zu, Standard "Global".
func DetectGeography(text string) string {
	return detectCategory(text, geographyTable, "Global")
}

func detectCategory(text string, table []keywordCategory, fallback string) string {
	lower := strings.ToLower(text)
	for _, category := range table {
		if containsAny(lower, category.keywords) {
			return category.name
		}
	}
	return fallback
}

// GenerateSlug erzeugt den natürlichen Schlüssel "käufer-ziel-YYYYMM" eines Deals.
// Zwei Deals mit gleichem Slug gelten beim Speichern als derselbe Deal.
func GenerateSlug(acquirer, target string, announced time.Time) string {
	month := ""
	if !announced.IsZero() {
		month = announced.Format("200601")
	}
	slug := strings.ToLower(fmt.Sprintf("%s-%s-%s", NormalizeCompanyName(acquirer), NormalizeCompanyName(target), month))
	slug = whitespaceRegex.ReplaceAllString(slug, "-")
	slug = slugInvalidRegex.ReplaceAllString(slug, "")
	slug = slugHyphensRegex.ReplaceAllString(slug, "-")
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
	}
	return slug
}

// GenerateTitle erzeugt den Anzeigetitel eines Deals.
func GenerateTitle(acquirer, target string) string {
	return fmt.Sprintf("%s to Acquire %s", acquirer, target)
}

// ParseDate liest ein Datum in den üblichen ISO-Varianten; ohne Treffer die Nullzeit.
func ParseDate(text string) time.Time {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return time.Time{}
	}
	layouts := []string{time.RFC3339, "2006-01-02T15:04:05", models.DateLayout, "2006-01", "2006"}
	for _, layout := range layouts {
		t, err := time.Parse(layout, trimmed)
		if err == nil {
			y, m, d := t.UTC().Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		}
	}
	return time.Time{}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
