package secedgar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"deal-hand/config"
	"deal-hand/providers"
)

const archiveBaseURL = "https://www.sec.gov/Archives/edgar/data"

var (
	httpClient  = &http.Client{Timeout: 60 * time.Second}
	valueRegex  = regexp.MustCompile(`(?i)\$([0-9,.]+)\s*(billion|million|b|m)`)
	numberRegex = regexp.MustCompile(`^(?:\d+\.?\d*|\.\d+)`)
	cikSuffixRe = regexp.MustCompile(`\s*\((?:CIK\s+)?[0-9A-Z.\-]+\)\s*$`)
	maKeywords  = []string{"merger", "acquisition", "acquire", "tender offer", "business combination"}
)

// Fetcher durchsucht die EDGAR-Volltextsuche nach M&A-relevanten Einreichungen.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	Client *http.Client
	now    func() time.Time
}

// NewFetcher erstellt eine neue Instanz des SEC-EDGAR-Fetchers.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger, Client: httpClient, now: time.Now}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "sec_edgar"
}

// Search fragt jede konfigurierte Suchphrase ab und liefert die Einreichungen, die nach
// M&A aussehen und einen Wert ab der Wesentlichkeitsschwelle nennen. Einzelne fehlgeschlagene
// Abfragen werden übersprungen; nur wenn alle fehlschlagen, gibt es einen Fehler.
func (f *Fetcher) Search(ctx context.Context, daysBack int) ([]providers.RawFiling, error) {
	queries := f.Config.SECQueryList()
	end := f.now().UTC()
	start := end.AddDate(0, 0, -daysBack)

	var filings []Filing
	var errs []error
	for _, q := range queries {
		found, err := f.searchQuery(ctx, q, start, end)
		if err != nil {
			f.Logger.Warn("SEC-Suche fehlgeschlagen", zap.String("query", q), zap.Error(err))
			errs = append(errs, fmt.Errorf("%q: %w", q, err))
			continue
		}
		filings = append(filings, found...)
	}
	if len(queries) > 0 && len(errs) == len(queries) {
		return nil, fmt.Errorf("alle SEC-Abfragen fehlgeschlagen: %w", errors.Join(errs...))
	}

	unique := dedupeFilings(filings)
	var out []providers.RawFiling
	for _, filing := range unique {
		raw, ok := ParseFilingForDeal(filing)
		if !ok || raw.ValueUSD == nil || *raw.ValueUSD < f.Config.MaterialityThresholdUSD {
			continue
		}
		out = append(out, raw)
	}
	f.Logger.Info("SEC-Suche abgeschlossen",
		zap.Int("filings", len(unique)),
		zap.Int("deals", len(out)))
	return out, nil
}

func (f *Fetcher) searchQuery(ctx context.Context, query string, start, end time.Time) ([]Filing, error) {
	params := url.Values{}
	params.Set("q", fmt.Sprintf("%q", query))
	params.Set("dateRange", "custom")
	params.Set("startdt", start.Format("2006-01-02"))
	params.Set("enddt", end.Format("2006-01-02"))
	params.Set("forms", f.Config.SECForms)
	params.Set("from", "0")
	params.Set("size", strconv.Itoa(f.Config.SECPageSize))
	searchURL := fmt.Sprintf("%s?%s", f.Config.SECEdgarBaseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	// SEC verlangt einen User-Agent mit Kontaktadresse
	req.Header.Set("User-Agent", f.Config.SECUserAgent)
	req.Header.Set("Accept", "application/json")

	f.Logger.Debug("Rufe EDGAR-Suche auf", zap.String("url", searchURL))
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("edgar search failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var sr SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decoding edgar response: %w", err)
	}

	filings := make([]Filing, 0, len(sr.Hits.Hits))
	for _, hit := range sr.Hits.Hits {
		filings = append(filings, filingFromHit(hit.Source))
	}
	return filings, nil
}

func filingFromHit(src HitSource) Filing {
	accession := firstOf(src.Adsh, src.AccessionNumber)
	cik := src.CIK
	if len(src.Ciks) > 0 {
		cik = src.Ciks[0]
	}
	name := src.CompanyName
	if len(src.DisplayNames) > 0 {
		name = src.DisplayNames[0]
	}
	return Filing{
		AccessionNumber: accession,
		CIK:             cik,
		CompanyName:     cleanCompanyName(name),
		FormType:        firstOf(src.Form, src.FileType),
		FiledAt:         firstOf(src.FileDate, src.FiledAt),
		DocumentURL:     DocumentURL(cik, accession),
		Description:     src.FileDescription,
	}
}

// DocumentURL baut den Archivlink einer Einreichung.
func DocumentURL(cik, accession string) string {
	return fmt.Sprintf("%s/%s/%s", archiveBaseURL, cik, strings.ReplaceAll(accession, "-", ""))
}

// cleanCompanyName entfernt Ticker- und CIK-Anhänge wie "Acme Corp (ACME) (CIK 0000123)".
func cleanCompanyName(name string) string {
	name = strings.TrimSpace(name)
	for {
		cleaned := cikSuffixRe.ReplaceAllString(name, "")
		if cleaned == name {
			return name
		}
		name = cleaned
	}
}

// dedupeFilings entfernt doppelte Accession-Nummern, der erste Treffer bleibt.
func dedupeFilings(filings []Filing) []Filing {
	seen := make(map[string]struct{}, len(filings))
	out := make([]Filing, 0, len(filings))
	for _, filing := range filings {
		if filing.AccessionNumber != "" {
			if _, ok := seen[filing.AccessionNumber]; ok {
				continue
			}
			seen[filing.AccessionNumber] = struct{}{}
		}
		out = append(out, filing)
	}
	return out
}

// ParseFilingForDeal prüft, ob eine Einreichung nach M&A aussieht, und liest einen genannten Wert.
// Der Einreicher gilt als Käufer, das Ziel bleibt leer.
func ParseFilingForDeal(filing Filing) (providers.RawFiling, bool) {
	description := strings.ToLower(filing.Description)
	isDeal := false
	for _, kw := range maKeywords {
		if strings.Contains(description, kw) {
			isDeal = true
			break
		}
	}
	if !isDeal {
		return providers.RawFiling{}, false
	}

	return providers.RawFiling{
		Acquirer:        filing.CompanyName,
		ValueUSD:        extractValue(filing.Description),
		AnnouncedDate:   filing.FiledAt,
		SourceURL:       filing.DocumentURL,
		AccessionNumber: filing.AccessionNumber,
		FormType:        filing.FormType,
		Description:     filing.Description,
	}, true
}

func extractValue(text string) *int64 {
	m := valueRegex.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	numeric := numberRegex.FindString(strings.ReplaceAll(m[1], ",", ""))
	num, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return nil
	}
	multiplier := 1e6
	if strings.HasPrefix(strings.ToLower(m[2]), "b") {
		multiplier = 1e9
	}
	v := int64(math.Round(num * multiplier))
	return &v
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
