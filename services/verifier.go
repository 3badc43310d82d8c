package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"deal-hand/models"
	"deal-hand/providers"
)

// Pacer begrenzt die Rate externer Aufrufe. Wait blockiert bis zum nächsten erlaubten Aufruf.
type Pacer interface {
	Wait(ctx context.Context) error
}

// NewRatePacer erlaubt höchstens einen Aufruf pro interval; der erste Aufruf wartet nicht.
// Ein interval <= 0 deaktiviert die Begrenzung.
func NewRatePacer(interval time.Duration) Pacer {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Verifier bewertet Deals und lässt schwach belegte Deals optional extern bestätigen.
type Verifier struct {
	Backend providers.DealVerifier // nil = keine externen Prüfungen
	Pacer   Pacer
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewVerifier erstellt einen Verifier. backend darf nil sein.
func NewVerifier(backend providers.DealVerifier, pacer Pacer, timeout time.Duration, logger *zap.Logger) *Verifier {
	if pacer == nil {
		pacer = NewRatePacer(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		Backend: backend,
		Pacer:   pacer,
		Timeout: timeout,
		Logger:  logger,
	}
}

// Verify bewertet einen Deal. Liegt die Bewertung unter der Schwelle für "verified" und sind
// externe Prüfungen erlaubt, wird das Backend befragt; eine Bestätigung bringt +20 Punkte und
// ergänzt Wert, Status, Datum, Synopsis und Quellen. Fehler des Backends gelten als "nicht bestätigt".
func (v *Verifier) Verify(ctx context.Context, deal models.CandidateDeal, allowExternal bool) models.VerifiedDeal {
	out := models.VerifiedDeal{CandidateDeal: deal.Clone()}
	score := rawScore(deal)

	if allowExternal && v.Backend != nil && clampScore(score) < ThresholdVerified {
		out.ExternalCheck = true
		if v.confirm(ctx, &out.CandidateDeal) {
			score += scoreExternalConfirm
		}
	}

	out.ConfidenceScore = clampScore(score)
	out.VerificationStatus = StatusFromScore(out.ConfidenceScore)
	return out
}

// callBackend ruft das Backend auf und wandelt eine Panic in einen Fehler um.
func (v *Verifier) callBackend(ctx context.Context, deal *models.CandidateDeal) (result *providers.VerificationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return v.Backend.Verify(ctx, deal.Acquirer, deal.Target, deal.AnnouncedDate)
}

// confirm befragt das Backend und reichert deal bei Bestätigung an.
func (v *Verifier) confirm(ctx context.Context, deal *models.CandidateDeal) bool {
	log := v.Logger.With(
		zap.String("backend", v.Backend.Name()),
		zap.String("acquirer", deal.Acquirer),
		zap.String("target", deal.Target))

	callCtx := ctx
	if v.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, v.Timeout)
		defer cancel()
	}

	result, err := v.callBackend(callCtx, deal)
	if err != nil {
		log.Warn("Externe Verifikation fehlgeschlagen", zap.Error(err))
		verificationCallsCounter.WithLabelValues("error").Inc()
		return false
	}
	if result == nil || !result.Verified {
		log.Info("Deal extern nicht bestätigt")
		verificationCallsCounter.WithLabelValues("unconfirmed").Inc()
		return false
	}

	verificationCallsCounter.WithLabelValues("confirmed").Inc()
	applyVerificationDetails(deal, result.Details)

	known := make(map[string]struct{}, len(deal.Sources))
	for _, s := range deal.Sources {
		known[s.URL] = struct{}{}
	}
	for _, url := range result.Sources {
		if url == "" {
			continue
		}
		if _, ok := known[url]; ok {
			continue
		}
		known[url] = struct{}{}
		deal.Sources = append(deal.Sources, models.Source{
			URL:         url,
			Publication: v.Backend.DisplayName(),
			Type:        models.SourceType(v.Backend.Name()),
		})
	}
	log.Info("Deal extern bestätigt", zap.Int("new_sources", len(result.Sources)))
	return true
}

func applyVerificationDetails(deal *models.CandidateDeal, details *providers.VerificationDetails) {
	if details == nil {
		return
	}
	if value := CoerceValue(details.ValueUSD); value != nil {
		deal.ValueUSD = value
	}
	if details.Status != "" && details.Status != "null" {
		deal.Status = ParseStatus(details.Status)
	}
	if date := ParseDate(details.AnnouncedDate); !date.IsZero() {
		deal.AnnouncedDate = date
	}
	if details.Synopsis != "" {
		deal.Synopsis = details.Synopsis
	}
}

// VerifyAll bewertet alle Deals in Eingabereihenfolge. Höchstens budget Deals werden extern
// geprüft; der Zähler steigt, sobald ein Aufruf beschlossen ist, unabhängig vom Ergebnis.
// Zwischen externen Aufrufen wartet der Pacer.
func (v *Verifier) VerifyAll(ctx context.Context, deals []models.CandidateDeal, budget int, allowExternal bool) []models.VerifiedDeal {
	out := make([]models.VerifiedDeal, 0, len(deals))
	calls := 0

	for _, deal := range deals {
		useExternal := allowExternal &&
			v.Backend != nil &&
			calls < budget &&
			Score(deal) < ThresholdVerified

		if useExternal {
			calls++
			if err := v.Pacer.Wait(ctx); err != nil {
				v.Logger.Warn("Warten auf externen Aufruf abgebrochen", zap.Error(err))
				useExternal = false
			}
		}
		out = append(out, v.Verify(ctx, deal, useExternal))
	}

	v.Logger.Info("Verifikation abgeschlossen",
		zap.Int("deals", len(deals)),
		zap.Int("external_calls", calls),
		zap.Int("budget", budget))
	return out
}
