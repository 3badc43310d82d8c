package models

import (
	"strings"
	"time"
)

// Status ist der Lebenszyklus-Status eines Deals.
type Status string

const (
	StatusAnnounced Status = "Announced"
	StatusPending   Status = "Pending"
	StatusCompleted Status = "Completed"
	StatusWithdrawn Status = "Withdrawn"
	StatusRumored   Status = "Rumored"
)

// statusRank legt fest, welcher Status "weiter fortgeschritten" ist:
// Completed > Withdrawn > Pending > Announced > Rumored.
var statusRank = map[Status]int{
	StatusCompleted: 4,
	StatusWithdrawn: 3,
	StatusPending:   2,
	StatusAnnounced: 1,
	StatusRumored:   0,
}

// Rank gibt die Position des Status in der Fortschrittsordnung zurück. Unbekannte Werte zählen wie Rumored.
func (s Status) Rank() int {
	return statusRank[s]
}

// MoreAdvanced gibt den weiter fortgeschrittenen der beiden Status zurück; bei Gleichstand gewinnt s.
func (s Status) MoreAdvanced(other Status) Status {
	if s.Rank() >= other.Rank() {
		return s
	}
	return other
}

// VerificationStatus ist die Vertrauensstufe eines Deal-Datensatzes.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationPending    VerificationStatus = "pending"
	VerificationVerified   VerificationStatus = "verified"
)

// SourceType markiert, woher eine Quelle stammt.
type SourceType string

const (
	SourceTypeSECEdgar   SourceType = "sec_edgar"
	SourceTypePerplexity SourceType = "perplexity"
	SourceTypeAnthropic  SourceType = "anthropic"
)

// Source ist ein Beleg (URL + Publikation) für einen Deal.
type Source struct {
	URL         string     `json:"url"`
	Publication string     `json:"publication"`
	Type        SourceType `json:"type"`
}

// IsRegulatoryFiling meldet, ob die Quelle eine offizielle Behörden-Einreichung ist.
func (s Source) IsRegulatoryFiling() bool {
	return s.Type == SourceTypeSECEdgar || strings.Contains(s.URL, "sec.gov")
}

// CandidateDeal ist das gemeinsame Format, in das alle Quellen ihre Rohdaten überführen.
// Nach der Deduplizierung beschreibt derselbe Typ einen zusammengeführten Deal.
type CandidateDeal struct {
	Acquirer      string    `json:"acquirer"`
	Target        string    `json:"target"`
	ValueUSD      *int64    `json:"value_usd,omitempty"`
	Status        Status    `json:"status"`
	AnnouncedDate time.Time `json:"announced_date"`
	Sector        string    `json:"sector,omitempty"`
	Geography     string    `json:"geography,omitempty"`
	Synopsis      string    `json:"synopsis,omitempty"`
	Rationale     string    `json:"rationale,omitempty"`
	Sources       []Source  `json:"sources"`

	// Deal-Konditionen und Webseiten der Parteien (nur von der Discovery-Quelle geliefert)
	PaymentStructure string `json:"payment_structure,omitempty"`
	BreakupFee       *int64 `json:"breakup_fee,omitempty"`
	AcquirerDomain   string `json:"acquirer_domain,omitempty"`
	TargetDomain     string `json:"target_domain,omitempty"`
}

// HasValue meldet, ob ein positiver Transaktionswert bekannt ist.
func (d CandidateDeal) HasValue() bool {
	return d.ValueUSD != nil && *d.ValueUSD > 0
}

// HasDate meldet, ob ein Ankündigungsdatum bekannt ist.
func (d CandidateDeal) HasDate() bool {
	return !d.AnnouncedDate.IsZero()
}

// YearMonth gibt den Ankündigungsmonat als "YYYY-MM" zurück, leer ohne Datum.
func (d CandidateDeal) YearMonth() string {
	if !d.HasDate() {
		return ""
	}
	return d.AnnouncedDate.Format("2006-01")
}

// DateString gibt das Ankündigungsdatum als "YYYY-MM-DD" zurück, leer ohne Datum.
func (d CandidateDeal) DateString() string {
	if !d.HasDate() {
		return ""
	}
	return d.AnnouncedDate.Format(DateLayout)
}

// HasTerms meldet, ob Deal-Konditionen vorliegen.
func (d CandidateDeal) HasTerms() bool {
	return d.PaymentStructure != "" || d.BreakupFee != nil
}

// Clone erstellt eine tiefe Kopie, damit Zusammenführungen die Eingabe nicht verändern.
func (d CandidateDeal) Clone() CandidateDeal {
	out := d
	if d.ValueUSD != nil {
		v := *d.ValueUSD
		out.ValueUSD = &v
	}
	if d.BreakupFee != nil {
		v := *d.BreakupFee
		out.BreakupFee = &v
	}
	out.Sources = append([]Source(nil), d.Sources...)
	return out
}

// DateLayout ist das ISO-Kalenderdatum, in dem Deals ausgetauscht werden.
const DateLayout = "2006-01-02"

// DedupeKey ist der grobe Schlüssel für den exakten Abgleich vor dem Fuzzy-Vergleich.
type DedupeKey struct {
	Acquirer    string
	Target      string
	Month       string
	ValueBucket ValueBucket
}

// ValueBucket ordnet Transaktionswerte in Größenklassen ein.
type ValueBucket string

const (
	BucketUnknown ValueBucket = "unknown"
	BucketSmall   ValueBucket = "small"
	BucketMid     ValueBucket = "mid"
	BucketLarge   ValueBucket = "large"
	BucketMega    ValueBucket = "mega"
)

// VerifiedDeal ist ein bewerteter (und ggf. angereicherter) Deal, bereit zum Speichern.
type VerifiedDeal struct {
	CandidateDeal
	ConfidenceScore    int                `json:"confidence_score"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	// ExternalCheck ist true, wenn für diesen Deal ein externer Verifikationsaufruf versucht wurde.
	ExternalCheck bool `json:"external_check"`
}
