package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"deal-hand/models"
	"deal-hand/providers"
	"deal-hand/storage"
)

// CandidateSource liefert Kandidaten aus einer Quelle im gemeinsamen Deal-Format.
// Bei einem Fehler dürfen bereits gesammelte Kandidaten zusätzlich zurückgegeben werden.
type CandidateSource interface {
	Name() string
	Fetch(ctx context.Context, daysBack int) ([]models.CandidateDeal, error)
}

// DealRepository ist der Teil der Datenbank, den ein Sync-Lauf braucht (siehe storage.DealStore).
type DealRepository interface {
	CreateSyncLog(ctx context.Context, syncType models.SyncType) (*models.SyncLog, error)
	FinishSyncLog(ctx context.Context, id uint, result storage.SyncLogResult) error
	EnsureCompany(ctx context.Context, name, normalized, domain string) (*models.Company, error)
	SetCompanyLogo(ctx context.Context, id uint, logoURL, website string) error
	UpsertDeal(ctx context.Context, in storage.DealUpsert) (storage.UpsertOutcome, error)
}

// Archiver legt die Zusammenfassung eines Laufs ab (z.B. in S3).
type Archiver interface {
	Archive(ctx context.Context, runID string, snapshot interface{}) error
}

// SyncOptions steuern einen einzelnen Lauf.
type SyncOptions struct {
	SyncType                models.SyncType
	MaterialityThresholdUSD int64
	ExternalCallBudget      int
	DaysBack                int
	DisableExternalChecks   bool
}

// SyncSummary ist das Ergebnis eines Laufs.
type SyncSummary struct {
	RunID          string              `json:"run_id"`
	SyncLogID      uint                `json:"sync_log_id,omitempty"`
	SyncType       models.SyncType     `json:"sync_type"`
	StartedAt      time.Time           `json:"started_at"`
	Duration       time.Duration       `json:"-"`
	DurationText   string              `json:"duration"`
	SourcesChecked map[string]int      `json:"sources_checked"`
	TotalFound     int                 `json:"total_found"`
	AfterDedup     int                 `json:"after_dedup"`
	AfterFilter    int                 `json:"after_filter"`
	Verification   VerificationSummary `json:"verification"`
	DealsAdded     int                 `json:"deals_added"`
	DealsUpdated   int                 `json:"deals_updated"`
	Errors         []string            `json:"errors"`
	Warnings       []string            `json:"warnings"`
}

// SyncService orchestriert einen kompletten Lauf: Abrufen, Vereinheitlichen, Deduplizieren,
// Filtern, Verifizieren und Speichern.
type SyncService struct {
	Sources      []CandidateSource
	Deduplicator *Deduplicator
	Verifier     *Verifier
	Repo         DealRepository
	Logos        providers.LogoFinder // optional
	Archive      Archiver             // optional
	Logger       *zap.Logger
}

// NewSyncService erstellt einen neuen SyncService.
func NewSyncService(sources []CandidateSource, verifier *Verifier, repo DealRepository, logos providers.LogoFinder, archive Archiver, logger *zap.Logger) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{
		Sources:      sources,
		Deduplicator: NewDeduplicator(logger),
		Verifier:     verifier,
		Repo:         repo,
		Logos:        logos,
		Archive:      archive,
		Logger:       logger,
	}
}

// RunSync führt einen Lauf aus. Fehler einzelner Quellen werden zu Warnungen, Fehler einzelner
// Datensätze zu Einträgen in Errors. Nur unerwartete Fehler (Abbruch, Panic, Abschluss des
// Protokolls nicht möglich) markieren den Lauf als failed und werden zurückgegeben.
func (s *SyncService) RunSync(ctx context.Context, opts SyncOptions) (summary SyncSummary, err error) {
	if opts.SyncType == "" {
		opts.SyncType = models.SyncTypeManual
	}
	summary = SyncSummary{
		RunID:          uuid.NewString(),
		SyncType:       opts.SyncType,
		StartedAt:      time.Now().UTC(),
		SourcesChecked: make(map[string]int, len(s.Sources)),
		Errors:         []string{},
		Warnings:       []string{},
	}
	log := s.Logger.With(zap.String("run_id", summary.RunID), zap.String("sync_type", string(opts.SyncType)))
	log.Info("Starte Sync-Lauf")

	// 1. Protokoll anlegen; ohne Protokoll läuft der Lauf trotzdem weiter
	var syncLogID uint
	if entry, logErr := s.Repo.CreateSyncLog(ctx, opts.SyncType); logErr != nil {
		log.Error("Sync-Protokoll konnte nicht angelegt werden", zap.Error(logErr))
	} else {
		syncLogID = entry.ID
		summary.SyncLogID = entry.ID
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync panicked: %v", r)
		}
		summary.Duration = time.Since(summary.StartedAt)
		summary.DurationText = fmt.Sprintf("%.1fs", summary.Duration.Seconds())
		if err != nil {
			s.failRun(log, syncLogID, &summary, err)
			syncRunsCounter.WithLabelValues(string(models.SyncFailed)).Inc()
			return
		}
		syncRunsCounter.WithLabelValues(string(models.SyncCompleted)).Inc()
	}()

	// 2. + 3. Quellen abrufen und vereinheitlichen
	candidates := s.fetchAll(ctx, opts.DaysBack, &summary, log)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return summary, fmt.Errorf("sync aborted after fetch: %w", ctxErr)
	}
	summary.TotalFound = len(candidates)

	// 4. Deduplizieren
	unique := s.Deduplicator.Deduplicate(candidates)
	summary.AfterDedup = len(unique)

	// 5. Wesentlichkeit: Deals ohne Wert bleiben erhalten
	material := FilterMaterial(unique, opts.MaterialityThresholdUSD)
	summary.AfterFilter = len(material)
	log.Info("Kandidaten gefiltert",
		zap.Int("total_found", summary.TotalFound),
		zap.Int("after_dedup", summary.AfterDedup),
		zap.Int("after_filter", summary.AfterFilter))

	// 6. Verifizieren
	verified := s.Verifier.VerifyAll(ctx, material, opts.ExternalCallBudget, !opts.DisableExternalChecks)
	summary.Verification = Summarize(verified)
	log.Info("Verifikation zusammengefasst",
		zap.Int("verified", summary.Verification.Verified),
		zap.Int("pending", summary.Verification.Pending),
		zap.Int("unverified", summary.Verification.Unverified),
		zap.Int("avg_score", summary.Verification.AvgScore))

	// 7. Speichern, ein Datensatz nach dem anderen
	for _, deal := range verified {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return summary, fmt.Errorf("sync aborted during persistence: %w", ctxErr)
		}
		s.persist(ctx, deal, &summary, log)
	}
	dealsAddedCounter.Add(float64(summary.DealsAdded))
	dealsUpdatedCounter.Add(float64(summary.DealsUpdated))

	if s.Archive != nil {
		if archErr := s.Archive.Archive(ctx, summary.RunID, summary); archErr != nil {
			log.Warn("Archivierung des Laufs fehlgeschlagen", zap.Error(archErr))
			summary.Warnings = append(summary.Warnings, fmt.Sprintf("archive: %v", archErr))
		}
	}

	// 8. Protokoll abschließen
	if syncLogID != 0 {
		finishErr := s.Repo.FinishSyncLog(ctx, syncLogID, storage.SyncLogResult{
			Status:       models.SyncCompleted,
			DealsAdded:   summary.DealsAdded,
			DealsUpdated: summary.DealsUpdated,
			Errors:       summary.Errors,
			Warnings:     summary.Warnings,
		})
		if finishErr != nil {
			return summary, fmt.Errorf("marking sync completed: %w", finishErr)
		}
	}

	log.Info("Sync-Lauf abgeschlossen",
		zap.Int("deals_added", summary.DealsAdded),
		zap.Int("deals_updated", summary.DealsUpdated),
		zap.Int("errors", len(summary.Errors)),
		zap.Int("warnings", len(summary.Warnings)))
	return summary, nil
}

// failRun markiert den Lauf als failed. Das Protokoll wird mit einem frischen Kontext
// geschrieben, damit auch abgebrochene Läufe abgeschlossen werden.
func (s *SyncService) failRun(log *zap.Logger, syncLogID uint, summary *SyncSummary, runErr error) {
	log.Error("Sync-Lauf fehlgeschlagen", zap.Error(runErr))
	if syncLogID == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	errs := append(append([]string{}, summary.Errors...), runErr.Error())
	finishErr := s.Repo.FinishSyncLog(ctx, syncLogID, storage.SyncLogResult{
		Status:       models.SyncFailed,
		DealsAdded:   summary.DealsAdded,
		DealsUpdated: summary.DealsUpdated,
		Errors:       errs,
		Warnings:     summary.Warnings,
	})
	if finishErr != nil {
		log.Error("Sync-Protokoll konnte nicht als failed markiert werden", zap.Error(finishErr))
	}
}

// fetchAll ruft alle Quellen parallel ab. Jede Quelle schreibt nur in ihren eigenen Slot,
// das Ergebnis folgt der Reihenfolge der Quellen.
func (s *SyncService) fetchAll(ctx context.Context, daysBack int, summary *SyncSummary, log *zap.Logger) []models.CandidateDeal {
	results := make([][]models.CandidateDeal, len(s.Sources))
	errs := make([]error, len(s.Sources))

	var g errgroup.Group
	for i, src := range s.Sources {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("panic: %v", r)
				}
			}()
			results[i], errs[i] = src.Fetch(ctx, daysBack)
			return nil
		})
	}
	_ = g.Wait()

	var all []models.CandidateDeal
	for i, src := range s.Sources {
		summary.SourcesChecked[src.Name()] = len(results[i])
		if errs[i] != nil {
			log.Warn("Quelle fehlgeschlagen", zap.String("source", src.Name()), zap.Error(errs[i]))
			summary.Warnings = append(summary.Warnings, fmt.Sprintf("%s: %v", src.Name(), errs[i]))
		}
		log.Info("Quelle abgerufen", zap.String("source", src.Name()), zap.Int("count", len(results[i])))
		all = append(all, results[i]...)
	}
	return all
}

// FilterMaterial behält Deals ohne bekannten Wert und Deals mit Wert >= threshold.
func FilterMaterial(deals []models.CandidateDeal, threshold int64) []models.CandidateDeal {
	out := make([]models.CandidateDeal, 0, len(deals))
	for _, d := range deals {
		if !d.HasValue() || *d.ValueUSD >= threshold {
			out = append(out, d)
		}
	}
	return out
}

// persist speichert einen Deal samt Unternehmen. Fehler landen in summary.Errors.
func (s *SyncService) persist(ctx context.Context, deal models.VerifiedDeal, summary *SyncSummary, log *zap.Logger) {
	if NormalizeCompanyName(deal.Acquirer) == "" && NormalizeCompanyName(deal.Target) == "" {
		summary.Errors = append(summary.Errors, fmt.Sprintf("Skipping deal without usable names: %q / %q", deal.Acquirer, deal.Target))
		return
	}
	slug := GenerateSlug(deal.Acquirer, deal.Target, deal.AnnouncedDate)

	in := storage.DealUpsert{
		Slug:       slug,
		Title:      GenerateTitle(deal.Acquirer, deal.Target),
		Deal:       deal,
		AcquirerID: s.linkCompany(ctx, deal.Acquirer, deal.AcquirerDomain, log),
		TargetID:   s.linkCompany(ctx, deal.Target, deal.TargetDomain, log),
	}

	outcome, err := s.Repo.UpsertDeal(ctx, in)
	if err != nil {
		log.Warn("Deal konnte nicht gespeichert werden", zap.String("slug", slug), zap.Error(err))
		summary.Errors = append(summary.Errors, fmt.Sprintf("Failed to upsert %s: %v", slug, err))
		return
	}
	if outcome.Created {
		summary.DealsAdded++
	} else {
		summary.DealsUpdated++
	}
	if outcome.StatusChanged {
		log.Info("Status geändert", zap.String("slug", slug), zap.String("status", string(deal.Status)))
	}
}

// linkCompany legt das Unternehmen bei Bedarf an und sucht einmalig ein Logo.
// Platzhalter wie "Unknown Target" werden nicht verknüpft.
func (s *SyncService) linkCompany(ctx context.Context, name, domain string, log *zap.Logger) *uint {
	if !knownParty(name) {
		return nil
	}
	normalized := NormalizeCompanyName(name)
	if normalized == "" {
		return nil
	}
	company, err := s.Repo.EnsureCompany(ctx, name, normalized, domain)
	if err != nil {
		log.Warn("Unternehmen konnte nicht angelegt werden", zap.String("company", name), zap.Error(err))
		return nil
	}

	if !company.LogoFetched && domain != "" && s.Logos != nil {
		logoURL, err := s.Logos.FindLogo(ctx, domain)
		if err != nil {
			log.Warn("Logo-Suche fehlgeschlagen", zap.String("domain", domain), zap.Error(err))
		} else if logoURL != "" {
			if err := s.Repo.SetCompanyLogo(ctx, company.ID, logoURL, domain); err != nil {
				log.Warn("Logo konnte nicht gespeichert werden", zap.String("company", name), zap.Error(err))
			}
		}
	}
	id := company.ID
	return &id
}

// filingSource bindet eine Behörden-Suche als Kandidatenquelle an.
type filingSource struct {
	searcher providers.FilingSearcher
}

// NewFilingSource macht aus einem FilingSearcher eine Kandidatenquelle.
func NewFilingSource(searcher providers.FilingSearcher) CandidateSource {
	return &filingSource{searcher: searcher}
}

func (f *filingSource) Name() string { return f.searcher.Name() }

func (f *filingSource) Fetch(ctx context.Context, daysBack int) ([]models.CandidateDeal, error) {
	filings, err := f.searcher.Search(ctx, daysBack)
	if err != nil {
		return nil, err
	}
	out := make([]models.CandidateDeal, 0, len(filings))
	for _, filing := range filings {
		out = append(out, CandidateFromFiling(filing))
	}
	return out, nil
}

// discoverySource fragt eine Deal-Suche Region für Region ab, mit Pause zwischen den Anfragen.
type discoverySource struct {
	discoverer providers.DealDiscoverer
	regions    []string
	pacer      Pacer
	logger     *zap.Logger
}

// NewDiscoverySource macht aus einem DealDiscoverer eine Kandidatenquelle über mehrere Regionen.
func NewDiscoverySource(discoverer providers.DealDiscoverer, regions []string, pacer Pacer, logger *zap.Logger) CandidateSource {
	if pacer == nil {
		pacer = NewRatePacer(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &discoverySource{discoverer: discoverer, regions: regions, pacer: pacer, logger: logger}
}

func (d *discoverySource) Name() string { return d.discoverer.Name() }

// Fetch liefert die Deals aller erreichbaren Regionen. Fehlgeschlagene Regionen werden gesammelt
// und als ein Fehler zurückgegeben, die übrigen Deals bleiben erhalten.
func (d *discoverySource) Fetch(ctx context.Context, daysBack int) ([]models.CandidateDeal, error) {
	var out []models.CandidateDeal
	var errs []error
	sourceType := models.SourceType(d.discoverer.Name())

	for _, region := range d.regions {
		if err := d.pacer.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", region, err))
			break
		}
		result, err := d.discoverer.Search(ctx, region, daysBack)
		if err != nil {
			d.logger.Warn("Regionssuche fehlgeschlagen", zap.String("region", region), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", region, err))
			continue
		}
		deals := CandidatesFromDiscovery(result, region, sourceType)
		d.logger.Info("Region abgefragt", zap.String("region", region), zap.Int("deals", len(deals)))
		out = append(out, deals...)
	}
	return out, errors.Join(errs...)
}
