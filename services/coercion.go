package services

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"deal-hand/models"
	"deal-hand/providers"
)

const (
	unknownTarget      = "Unknown Target"
	filingPublication  = "SEC EDGAR"
	filingGeography    = "North America"
	unknownPublication = "Unknown Source"
)

// CandidateFromFiling überführt eine Behörden-Einreichung in das gemeinsame Deal-Format.
func CandidateFromFiling(f providers.RawFiling) models.CandidateDeal {
	target := strings.TrimSpace(f.Target)
	if target == "" {
		target = unknownTarget
	}
	deal := models.CandidateDeal{
		Acquirer:      strings.TrimSpace(f.Acquirer),
		Target:        target,
		ValueUSD:      positive(f.ValueUSD),
		Status:        models.StatusAnnounced,
		AnnouncedDate: ParseDate(f.AnnouncedDate),
		Sector:        DetectSector(f.Description),
		Geography:     filingGeography,
		Synopsis:      f.Description,
	}
	if f.SourceURL != "" {
		deal.Sources = []models.Source{{
			URL:         f.SourceURL,
			Publication: filingPublication,
			Type:        models.SourceTypeSECEdgar,
		}}
	}
	return deal
}

// CandidatesFromDiscovery überführt die Deals einer Regionssuche. Fehlende Geografie wird mit der
// Region belegt, Quellen werden mit sourceType markiert. Unbrauchbare Felder werden zu Leerwerten.
func CandidatesFromDiscovery(result providers.DiscoveryResult, region string, sourceType models.SourceType) []models.CandidateDeal {
	out := make([]models.CandidateDeal, 0, len(result.Deals))
	for _, raw := range result.Deals {
		acquirer := strings.TrimSpace(raw.Acquirer)
		target := strings.TrimSpace(raw.Target)
		if acquirer == "" && target == "" {
			continue
		}

		geography := strings.TrimSpace(raw.Geography)
		if geography == "" {
			geography = region
		}

		deal := models.CandidateDeal{
			Acquirer:         acquirer,
			Target:           target,
			ValueUSD:         CoerceValue(raw.ValueUSD),
			Status:           ParseStatus(raw.Status),
			AnnouncedDate:    ParseDate(raw.AnnouncedDate),
			Sector:           strings.TrimSpace(raw.Sector),
			Geography:        geography,
			Synopsis:         strings.TrimSpace(raw.Synopsis),
			Rationale:        strings.TrimSpace(raw.Rationale),
			PaymentStructure: strings.TrimSpace(raw.PaymentStructure),
			BreakupFee:       CoerceValue(raw.BreakupFee),
			AcquirerDomain:   strings.TrimSpace(raw.AcquirerDomain),
			TargetDomain:     strings.TrimSpace(raw.TargetDomain),
		}
		for _, s := range raw.Sources {
			if s.URL == "" {
				continue
			}
			publication := s.Publication
			if publication == "" {
				publication = unknownPublication
			}
			deal.Sources = append(deal.Sources, models.Source{URL: s.URL, Publication: publication, Type: sourceType})
		}
		out = append(out, deal)
	}
	return out
}

// CoerceValue liest einen Geldbetrag, der als JSON-Zahl oder als Text ("$5.2 billion") vorliegt.
// null, leere, nicht lesbare und nicht positive Werte ergeben nil.
func CoerceValue(raw json.RawMessage) *int64 {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	var num float64
	if err := json.Unmarshal(trimmed, &num); err == nil {
		if num <= 0 || num > math.MaxInt64 || math.IsNaN(num) {
			return nil
		}
		v := int64(math.Round(num))
		return &v
	}

	var text string
	if err := json.Unmarshal(trimmed, &text); err != nil {
		return nil
	}
	v, ok := ParseValue(text)
	if !ok {
		return nil
	}
	return positive(&v)
}

func positive(v *int64) *int64 {
	if v == nil || *v <= 0 {
		return nil
	}
	out := *v
	return &out
}
