package services

import (
	"math"
	"strings"

	"deal-hand/models"
)

// Gewichte der Vertrauensbewertung
const (
	scoreRegulatoryFiling = 40.0
	scorePerExtraSource   = 10.0
	scoreMaxSourceBonus   = 30.0
	scorePerParty         = 7.5
	scoreValuePresent     = 10.0
	scoreDatePresent      = 5.0
	scoreExternalConfirm  = 20.0
	scoreMax              = 100.0

	// ThresholdVerified und ThresholdPending trennen die Vertrauensstufen.
	ThresholdVerified = 70
	ThresholdPending  = 40
)

// Score berechnet die Vertrauensbewertung (0-100) eines Deals allein aus seinen Feldern.
func Score(deal models.CandidateDeal) int {
	return clampScore(rawScore(deal))
}

func rawScore(deal models.CandidateDeal) float64 {
	score := 0.0

	publications := make(map[string]struct{}, len(deal.Sources))
	for _, s := range deal.Sources {
		if s.IsRegulatoryFiling() {
			score += scoreRegulatoryFiling
			break
		}
	}
	for _, s := range deal.Sources {
		publications[s.Publication] = struct{}{}
	}
	if len(publications) > 1 {
		score += math.Min(float64(len(publications)-1)*scorePerExtraSource, scoreMaxSourceBonus)
	}

	if knownParty(deal.Acquirer) {
		score += scorePerParty
	}
	if knownParty(deal.Target) {
		score += scorePerParty
	}
	if deal.HasValue() {
		score += scoreValuePresent
	}
	if deal.HasDate() {
		score += scoreDatePresent
	}
	return score
}

func knownParty(name string) bool {
	return name != "" && !strings.Contains(strings.ToLower(name), "unknown")
}

func clampScore(score float64) int {
	return int(math.Round(math.Min(math.Max(score, 0), scoreMax)))
}

// StatusFromScore leitet die Vertrauensstufe aus der Bewertung ab.
func StatusFromScore(score int) models.VerificationStatus {
	switch {
	case score >= ThresholdVerified:
		return models.VerificationVerified
	case score >= ThresholdPending:
		return models.VerificationPending
	default:
		return models.VerificationUnverified
	}
}

// VerificationSummary zählt die Deals je Vertrauensstufe.
type VerificationSummary struct {
	Verified   int `json:"verified"`
	Pending    int `json:"pending"`
	Unverified int `json:"unverified"`
	AvgScore   int `json:"avg_score"`
}

// Summarize fasst die Bewertungen einer Liste zusammen, AvgScore ist gerundet.
func Summarize(deals []models.VerifiedDeal) VerificationSummary {
	var summary VerificationSummary
	if len(deals) == 0 {
		return summary
	}
	total := 0
	for _, d := range deals {
		total += d.ConfidenceScore
		switch d.VerificationStatus {
		case models.VerificationVerified:
			summary.Verified++
		case models.VerificationPending:
			summary.Pending++
		default:
			summary.Unverified++
		}
	}
	summary.AvgScore = int(math.Round(float64(total) / float64(len(deals))))
	return summary
}

// FilterByVerificationStatus liefert nur Deals der gegebenen Stufe; ein leerer Status liefert alle.
func FilterByVerificationStatus(deals []models.VerifiedDeal, status models.VerificationStatus) []models.VerifiedDeal {
	if status == "" {
		return deals
	}
	out := make([]models.VerifiedDeal, 0, len(deals))
	for _, d := range deals {
		if d.VerificationStatus == status {
			out = append(out, d)
		}
	}
	return out
}
