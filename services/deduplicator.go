package services

import (
	"math"
	"time"

	"go.uber.org/zap"

	"deal-hand/models"
)

const (
	fuzzyNameThreshold = 0.7
	fuzzyMaxDateGap    = 30 * 24 * time.Hour
	fuzzyMinValueRatio = 0.8
	fuzzyMaxValueRatio = 1.2
)

// GenerateDedupeKey bildet den groben Schlüssel eines Deals aus normalisierten Namen,
// Ankündigungsmonat und Wertklasse.
func GenerateDedupeKey(deal models.CandidateDeal) models.DedupeKey {
	return models.DedupeKey{
		Acquirer:    NormalizeCompanyName(deal.Acquirer),
		Target:      NormalizeCompanyName(deal.Target),
		Month:       deal.YearMonth(),
		ValueBucket: valueBucket(deal.ValueUSD),
	}
}

func valueBucket(value *int64) models.ValueBucket {
	if value == nil || *value <= 0 {
		return models.BucketUnknown
	}
	v := *value
	switch {
	case v < 1_000_000_000:
		return models.BucketSmall
	case v < 10_000_000_000:
		return models.BucketMid
	case v < 50_000_000_000:
		return models.BucketLarge
	default:
		return models.BucketMega
	}
}

// AreLikelyDuplicates meldet, ob zwei Deals vermutlich dieselbe Transaktion beschreiben.
// Fehlt ein Datum oder ein Wert, entfällt die jeweilige Prüfung.
func AreLikelyDuplicates(a, b models.CandidateDeal) bool {
	if NameSimilarity(a.Acquirer, b.Acquirer) < fuzzyNameThreshold {
		return false
	}
	if NameSimilarity(a.Target, b.Target) < fuzzyNameThreshold {
		return false
	}

	if a.HasDate() && b.HasDate() {
		gap := a.AnnouncedDate.Sub(b.AnnouncedDate)
		if gap < 0 {
			gap = -gap
		}
		if gap > fuzzyMaxDateGap {
			return false
		}
	}

	if a.HasValue() && b.HasValue() {
		ratio := float64(*a.ValueUSD) / float64(*b.ValueUSD)
		if ratio < fuzzyMinValueRatio || ratio > fuzzyMaxValueRatio || math.IsNaN(ratio) {
			return false
		}
	}
	return true
}

// Deduplicator fasst Kandidaten, die dieselbe Transaktion beschreiben, zu einem Deal zusammen.
type Deduplicator struct {
	Logger *zap.Logger
}

// NewDeduplicator erstellt einen Deduplicator.
func NewDeduplicator(logger *zap.Logger) *Deduplicator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduplicator{Logger: logger}
}

// Deduplicate führt Duplikate in Eingabereihenfolge zusammen. Zuerst wird über den exakten
// Schlüssel gesucht, danach beim ersten ähnlichen Cluster. Die Eingabe wird nicht verändert.
func (d *Deduplicator) Deduplicate(deals []models.CandidateDeal) []models.CandidateDeal {
	clusters := make([]models.CandidateDeal, 0, len(deals))
	seen := make(map[models.DedupeKey]int, len(deals))
	exact, fuzzy := 0, 0

	for _, deal := range deals {
		key := GenerateDedupeKey(deal)

		if idx, ok := seen[key]; ok {
			clusters[idx] = mergeDeals(clusters[idx], deal)
			exact++
			continue
		}

		matched := false
		for i := range clusters {
			if AreLikelyDuplicates(clusters[i], deal) {
				clusters[i] = mergeDeals(clusters[i], deal)
				matched = true
				fuzzy++
				break
			}
		}
		if matched {
			continue
		}

		seen[key] = len(clusters)
		clusters = append(clusters, deal.Clone())
	}

	d.Logger.Info("Deduplizierung abgeschlossen",
		zap.Int("input", len(deals)),
		zap.Int("output", len(clusters)),
		zap.Int("exact_merges", exact),
		zap.Int("fuzzy_merges", fuzzy))
	return clusters
}

// mergeDeals vereinigt zwei Datensätze. Der bestehende Wert hat Vorrang, außer beim Datum
// (das spätere gewinnt) und beim Status (der weiter fortgeschrittene gewinnt).
func mergeDeals(existing, incoming models.CandidateDeal) models.CandidateDeal {
	out := existing.Clone()

	out.Acquirer = firstNonEmpty(existing.Acquirer, incoming.Acquirer)
	out.Target = firstNonEmpty(existing.Target, incoming.Target)
	out.Sector = firstNonEmpty(existing.Sector, incoming.Sector)
	out.Geography = firstNonEmpty(existing.Geography, incoming.Geography)
	out.Synopsis = firstNonEmpty(existing.Synopsis, incoming.Synopsis)
	out.Rationale = firstNonEmpty(existing.Rationale, incoming.Rationale)
	out.PaymentStructure = firstNonEmpty(existing.PaymentStructure, incoming.PaymentStructure)
	out.AcquirerDomain = firstNonEmpty(existing.AcquirerDomain, incoming.AcquirerDomain)
	out.TargetDomain = firstNonEmpty(existing.TargetDomain, incoming.TargetDomain)

	if out.ValueUSD == nil && incoming.ValueUSD != nil {
		v := *incoming.ValueUSD
		out.ValueUSD = &v
	}
	if out.BreakupFee == nil && incoming.BreakupFee != nil {
		v := *incoming.BreakupFee
		out.BreakupFee = &v
	}

	if incoming.AnnouncedDate.After(existing.AnnouncedDate) {
		out.AnnouncedDate = incoming.AnnouncedDate
	}
	out.Status = existing.Status.MoreAdvanced(incoming.Status)

	known := make(map[string]struct{}, len(out.Sources))
	for _, s := range out.Sources {
		known[s.URL] = struct{}{}
	}
	for _, s := range incoming.Sources {
		if _, ok := known[s.URL]; ok {
			continue
		}
		known[s.URL] = struct{}{}
		out.Sources = append(out.Sources, s)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
