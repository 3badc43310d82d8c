package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"deal-hand/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
	statusChangeNote = "Updated via sync"
	visibilityPublic = "public"
	currencyUSD      = "USD"
)

// Erlaubte Sortierspalten für ListDeals
var dealSortColumns = map[string]struct{}{
	"announced_date":   {},
	"value_usd":        {},
	"confidence_score": {},
	"created_at":       {},
}

// DealStore kapselt alle Datenbankzugriffe der Pipeline.
type DealStore struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewDealStore erstellt einen neuen DealStore.
func NewDealStore(db *gorm.DB, logger *zap.Logger) *DealStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DealStore{DB: db, Logger: logger}
}

// AutoMigrate legt alle Tabellen an bzw. aktualisiert sie.
func (s *DealStore) AutoMigrate() error {
	return s.DB.AutoMigrate(
		&models.Company{},
		&models.Deal{},
		&models.DealSource{},
		&models.DealStatusHistory{},
		&models.SyncLog{},
	)
}

// CreateSyncLog legt einen neuen Lauf im Status "running" an.
func (s *DealStore) CreateSyncLog(ctx context.Context, syncType models.SyncType) (*models.SyncLog, error) {
	entry := models.SyncLog{
		SyncType:  syncType,
		Status:    models.SyncRunning,
		StartedAt: time.Now().UTC(),
		Errors:    models.EncodeList(nil),
		Warnings:  models.EncodeList(nil),
	}
	if err := s.DB.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("creating sync log: %w", err)
	}
	return &entry, nil
}

// SyncLogResult ist das Ergebnis, mit dem ein Lauf abgeschlossen wird.
type SyncLogResult struct {
	Status       models.SyncStatus
	DealsAdded   int
	DealsUpdated int
	Errors       []string
	Warnings     []string
}

// FinishSyncLog schließt einen Lauf ab (completed oder failed).
func (s *DealStore) FinishSyncLog(ctx context.Context, id uint, result SyncLogResult) error {
	res := s.DB.WithContext(ctx).Model(&models.SyncLog{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        result.Status,
		"completed_at":  time.Now().UTC(),
		"deals_added":   result.DealsAdded,
		"deals_updated": result.DealsUpdated,
		"errors":        models.EncodeList(result.Errors),
		"warnings":      models.EncodeList(result.Warnings),
	})
	if res.Error != nil {
		return fmt.Errorf("finishing sync log %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("finishing sync log %d: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// ListSyncLogs gibt die letzten Läufe zurück, neueste zuerst.
func (s *DealStore) ListSyncLogs(ctx context.Context, limit int) ([]models.SyncLog, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	var logs []models.SyncLog
	err := s.DB.WithContext(ctx).Order("started_at DESC").Order("id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

// FindDealBySlug lädt einen Deal samt Quellen und Unternehmen.
func (s *DealStore) FindDealBySlug(ctx context.Context, slug string) (*models.Deal, error) {
	var deal models.Deal
	err := s.DB.WithContext(ctx).
		Preload("Sources").
		Preload("Acquirer").
		Preload("Target").
		Where("slug = ?", slug).
		First(&deal).Error
	if err != nil {
		return nil, err
	}
	return &deal, nil
}

// FindCompanyByNormalizedName sucht ein Unternehmen über den normalisierten Namen.
func (s *DealStore) FindCompanyByNormalizedName(ctx context.Context, normalized string) (*models.Company, error) {
	var company models.Company
	if err := s.DB.WithContext(ctx).Where("name_normalized = ?", normalized).First(&company).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

// EnsureCompany gibt das Unternehmen mit dem normalisierten Namen zurück und legt es bei Bedarf an.
func (s *DealStore) EnsureCompany(ctx context.Context, name, normalized, domain string) (*models.Company, error) {
	company, err := s.FindCompanyByNormalizedName(ctx, normalized)
	if err == nil {
		return company, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("looking up company %q: %w", normalized, err)
	}

	created := models.Company{Name: name, NameNormalized: normalized, Website: domain}
	err = s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name_normalized"}}, DoNothing: true}).
		Create(&created).Error
	if err != nil {
		return nil, fmt.Errorf("creating company %q: %w", normalized, err)
	}
	if created.ID == 0 {
		// parallel angelegt
		return s.FindCompanyByNormalizedName(ctx, normalized)
	}
	return &created, nil
}

// SetCompanyLogo speichert ein gefundenes Logo, aber nur einmal pro Unternehmen.
func (s *DealStore) SetCompanyLogo(ctx context.Context, id uint, logoURL, website string) error {
	updates := map[string]interface{}{
		"logo_url":     logoURL,
		"logo_fetched": true,
	}
	if website != "" {
		updates["website"] = website
	}
	return s.DB.WithContext(ctx).Model(&models.Company{}).
		Where("id = ? AND logo_fetched = ?", id, false).
		Updates(updates).Error
}

// DealUpsert ist ein bewerteter Deal samt vorberechnetem Slug, Titel und Unternehmens-IDs.
type DealUpsert struct {
	Slug       string
	Title      string
	Deal       models.VerifiedDeal
	AcquirerID *uint
	TargetID   *uint
}

// UpsertOutcome beschreibt, was UpsertDeal getan hat.
type UpsertOutcome struct {
	DealID        uint
	Created       bool
	StatusChanged bool
	SourcesAdded  int
}

// UpsertDeal legt einen Deal an oder aktualisiert den bestehenden Deal mit gleichem Slug.
// Jeder Datensatz läuft in einer eigenen Transaktion.
func (s *DealStore) UpsertDeal(ctx context.Context, in DealUpsert) (UpsertOutcome, error) {
	var outcome UpsertOutcome
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Deal
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("slug = ?", in.Slug).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return s.insertDeal(tx, in, &outcome)
		case err != nil:
			return err
		default:
			return s.updateDeal(tx, &existing, in, &outcome)
		}
	})
	if err != nil {
		return UpsertOutcome{}, fmt.Errorf("upserting deal %s: %w", in.Slug, err)
	}
	return outcome, nil
}

func (s *DealStore) insertDeal(tx *gorm.DB, in DealUpsert, outcome *UpsertOutcome) error {
	d := in.Deal
	deal := models.Deal{
		Slug:               in.Slug,
		Title:              in.Title,
		Status:             d.Status,
		Visibility:         visibilityPublic,
		ValueUSD:           d.ValueUSD,
		Currency:           currencyUSD,
		Synopsis:           d.Synopsis,
		Rationale:          d.Rationale,
		Sector:             d.Sector,
		Geography:          d.Geography,
		PaymentStructure:   d.PaymentStructure,
		BreakupFee:         d.BreakupFee,
		DealTermsFetched:   true,
		AcquirerID:         in.AcquirerID,
		TargetID:           in.TargetID,
		ConfidenceScore:    d.ConfidenceScore,
		VerificationStatus: d.VerificationStatus,
	}
	if d.HasDate() {
		date := d.AnnouncedDate
		deal.AnnouncedDate = &date
	}
	if err := tx.Create(&deal).Error; err != nil {
		return err
	}

	added, err := insertSources(tx, deal.ID, d.Sources)
	if err != nil {
		return err
	}
	outcome.DealID = deal.ID
	outcome.Created = true
	outcome.SourcesAdded = added
	return nil
}

func (s *DealStore) updateDeal(tx *gorm.DB, existing *models.Deal, in DealUpsert, outcome *UpsertOutcome) error {
	d := in.Deal
	oldStatus := existing.Status
	updates := map[string]interface{}{
		"status":              d.Status,
		"confidence_score":    d.ConfidenceScore,
		"verification_status": d.VerificationStatus,
	}
	if d.ValueUSD != nil {
		updates["value_usd"] = *d.ValueUSD
	}
	if d.Synopsis != "" {
		updates["synopsis"] = d.Synopsis
	}
	if existing.AcquirerID == nil && in.AcquirerID != nil {
		updates["acquirer_id"] = *in.AcquirerID
	}
	if existing.TargetID == nil && in.TargetID != nil {
		updates["target_id"] = *in.TargetID
	}
	// Konditionen werden nur einmal übernommen
	if !existing.DealTermsFetched && d.HasTerms() {
		updates["payment_structure"] = d.PaymentStructure
		if d.BreakupFee != nil {
			updates["breakup_fee"] = *d.BreakupFee
		}
		updates["deal_terms_fetched"] = true
	}

	if err := tx.Model(existing).Updates(updates).Error; err != nil {
		return err
	}

	if oldStatus != d.Status {
		history := models.DealStatusHistory{
			DealID:    existing.ID,
			OldStatus: oldStatus,
			NewStatus: d.Status,
			Notes:     statusChangeNote,
		}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}
		outcome.StatusChanged = true
	}

	added, err := insertSources(tx, existing.ID, d.Sources)
	if err != nil {
		return err
	}
	outcome.DealID = existing.ID
	outcome.SourcesAdded = added
	return nil
}

// insertSources fügt Quellen hinzu, bereits bekannte URLs werden übersprungen.
func insertSources(tx *gorm.DB, dealID uint, sources []models.Source) (int, error) {
	rows := make([]models.DealSource, 0, len(sources))
	seen := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		if src.URL == "" {
			continue
		}
		if _, ok := seen[src.URL]; ok {
			continue
		}
		seen[src.URL] = struct{}{}
		rows = append(rows, models.DealSource{
			DealID:          dealID,
			SourceType:      src.Type,
			SourceURL:       src.URL,
			PublicationName: src.Publication,
			IsPrimary:       src.Type == models.SourceTypeSECEdgar,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

// StatusHistory gibt die Statusänderungen eines Deals in zeitlicher Reihenfolge zurück.
func (s *DealStore) StatusHistory(ctx context.Context, dealID uint) ([]models.DealStatusHistory, error) {
	var history []models.DealStatusHistory
	err := s.DB.WithContext(ctx).Where("deal_id = ?", dealID).Order("id ASC").Find(&history).Error
	return history, err
}

// DealFilter sind die Filter- und Blätterparameter für ListDeals.
type DealFilter struct {
	Status             string `form:"status"`
	Sector             string `form:"sector"`
	Geography          string `form:"geography"`
	VerificationStatus string `form:"verification_status"`
	MinValue           *int64 `form:"min_value" binding:"omitempty,gte=0"`
	MaxValue           *int64 `form:"max_value" binding:"omitempty,gte=0"`
	SortBy             string `form:"sort_by"`
	Order              string `form:"order" binding:"omitempty,oneof=asc desc"`
	Limit              int    `form:"limit" binding:"omitempty,gte=0"`
	Offset             int    `form:"offset" binding:"omitempty,gte=0"`
}

// ListDeals gibt öffentliche Deals gefiltert und sortiert zurück, dazu die Gesamtzahl der Treffer.
func (s *DealStore) ListDeals(ctx context.Context, f DealFilter) ([]models.Deal, int64, error) {
	q := s.DB.WithContext(ctx).Model(&models.Deal{}).Where("visibility = ?", visibilityPublic)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Sector != "" {
		q = q.Where("sector = ?", f.Sector)
	}
	if f.Geography != "" {
		q = q.Where("geography = ?", f.Geography)
	}
	if f.VerificationStatus != "" {
		q = q.Where("verification_status = ?", f.VerificationStatus)
	}
	if f.MinValue != nil {
		q = q.Where("value_usd >= ?", *f.MinValue)
	}
	if f.MaxValue != nil {
		q = q.Where("value_usd <= ?", *f.MaxValue)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortBy := f.SortBy
	if _, ok := dealSortColumns[sortBy]; !ok {
		sortBy = "announced_date"
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var deals []models.Deal
	err := q.
		Preload("Sources").
		Preload("Acquirer").
		Preload("Target").
		Order(clause.OrderByColumn{Column: clause.Column{Name: sortBy}, Desc: f.Order != "asc"}).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&deals).Error
	if err != nil {
		return nil, 0, err
	}
	return deals, total, nil
}
