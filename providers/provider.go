package providers

import (
	"context"
	"encoding/json"
	"time"
)

// RawFiling ist ein M&A-relevanter Treffer aus einer Behörden-Datenbank (z.B. SEC EDGAR).
type RawFiling struct {
	Acquirer        string
	Target          string // oft unbekannt, wird später angereichert
	ValueUSD        *int64
	AnnouncedDate   string
	SourceURL       string
	AccessionNumber string
	FormType        string
	Description     string
}

// RawSource ist eine Quelle, wie sie die Discovery-API liefert.
type RawSource struct {
	URL         string `json:"url"`
	Publication string `json:"publication"`
}

// RawDeal ist ein Deal, wie ihn die LLM-gestützte Suche liefert. Die Felder sind bewusst
// lose typisiert; die Umwandlung in models.CandidateDeal übernimmt services.
type RawDeal struct {
	Acquirer         string          `json:"acquirer"`
	Target           string          `json:"target"`
	ValueUSD         json.RawMessage `json:"value_usd"`
	Status           string          `json:"status"`
	AnnouncedDate    string          `json:"announced_date"`
	Sector           string          `json:"sector"`
	Geography        string          `json:"geography"`
	Synopsis         string          `json:"synopsis"`
	Rationale        string          `json:"rationale"`
	PaymentStructure string          `json:"payment_structure"`
	BreakupFee       json.RawMessage `json:"breakup_fee"`
	AcquirerDomain   string          `json:"acquirer_domain"`
	TargetDomain     string          `json:"target_domain"`
	Sources          []RawSource     `json:"sources"`
}

// DiscoveryResult ist das Ergebnis einer Regionssuche.
type DiscoveryResult struct {
	Deals     []RawDeal
	Citations []string
}

// VerificationDetails sind optionale Angaben, die eine Verifikation zurückliefert.
type VerificationDetails struct {
	ValueUSD      json.RawMessage `json:"value_usd"`
	Status        string          `json:"status"`
	AnnouncedDate string          `json:"announced_date"`
	Synopsis      string          `json:"synopsis"`
}

// VerificationResult ist die Antwort eines Verifikations-Backends.
type VerificationResult struct {
	Verified bool
	Details  *VerificationDetails
	Sources  []string
}

// FilingSearcher sucht M&A-relevante Einreichungen der letzten daysBack Tage.
// "Keine Treffer" ist eine leere Liste, ein Fehler bedeutet Transportfehler.
type FilingSearcher interface {
	Search(ctx context.Context, daysBack int) ([]RawFiling, error)
	Name() string
}

// DealDiscoverer sucht Deals einer Region. Parse-Fehler liefern ein leeres Ergebnis statt eines Fehlers.
type DealDiscoverer interface {
	Search(ctx context.Context, region string, daysBack int) (DiscoveryResult, error)
	Name() string
}

// DealVerifier prüft einen einzelnen Deal gegen eine externe Quelle.
// Jeder Fehler wird vom Aufrufer als "nicht verifiziert" gewertet.
type DealVerifier interface {
	Verify(ctx context.Context, acquirer, target string, approxDate time.Time) (*VerificationResult, error)
	// Name ist zugleich der Quellentyp der zurückgelieferten Quellen (z.B. "perplexity").
	Name() string
	// DisplayName ist der Publikationsname für zurückgelieferte Quellen (z.B. "Perplexity").
	DisplayName() string
}

// LogoFinder sucht ein Logo für eine Unternehmens-Domain. Leerer String = nichts gefunden.
type LogoFinder interface {
	FindLogo(ctx context.Context, domain string) (string, error)
}
