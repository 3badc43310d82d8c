package models

import (
	"time"
)

// Deal ist der gespeicherte, deduplizierte und bewertete M&A-Deal.
type Deal struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Natürlicher Schlüssel: Käufer-Ziel-Monat
	Slug       string `json:"slug" gorm:"uniqueIndex;size:100;not null"`
	Title      string `json:"title"`
	Status     Status `json:"status" gorm:"index"`
	Visibility string `json:"visibility" gorm:"index;default:'public'"`

	AnnouncedDate *time.Time `json:"announced_date,omitempty" gorm:"index"`
	ValueUSD      *int64     `json:"value_usd,omitempty" gorm:"index"`
	Currency      string     `json:"currency" gorm:"default:'USD'"`
	Synopsis      string     `json:"synopsis,omitempty" gorm:"type:text"`
	Rationale     string     `json:"rationale,omitempty" gorm:"type:text"`
	Sector        string     `json:"sector" gorm:"index"`
	Geography     string     `json:"geography" gorm:"index"`

	// Deal-Konditionen werden nur einmal übernommen (DealTermsFetched)
	PaymentStructure string `json:"payment_structure,omitempty"`
	BreakupFee       *int64 `json:"breakup_fee,omitempty"`
	DealTermsFetched bool   `json:"deal_terms_fetched"`

	AcquirerID *uint    `json:"acquirer_id,omitempty"`
	Acquirer   *Company `json:"acquirer,omitempty" gorm:"foreignKey:AcquirerID"`
	TargetID   *uint    `json:"target_id,omitempty"`
	Target     *Company `json:"target,omitempty" gorm:"foreignKey:TargetID"`

	ConfidenceScore    int                `json:"confidence_score"`
	VerificationStatus VerificationStatus `json:"verification_status" gorm:"index"`

	Sources []DealSource `json:"sources,omitempty" gorm:"foreignKey:DealID"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Deal) TableName() string {
	return "deals"
}

// DealSource verknüpft einen Deal mit einer belegenden Quelle.
type DealSource struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	DealID          uint       `json:"deal_id" gorm:"uniqueIndex:idx_deal_sources_deal_url;not null"`
	SourceType      SourceType `json:"source_type"`
	SourceURL       string     `json:"source_url" gorm:"uniqueIndex:idx_deal_sources_deal_url;size:1024;not null"`
	PublicationName string     `json:"publication_name"`
	IsPrimary       bool       `json:"is_primary"`
}

func (DealSource) TableName() string { return "deal_sources" }

// DealStatusHistory protokolliert jede Statusänderung eines Deals.
type DealStatusHistory struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	DealID    uint   `json:"deal_id" gorm:"index;not null"`
	OldStatus Status `json:"old_status"`
	NewStatus Status `json:"new_status"`
	Notes     string `json:"notes,omitempty"`
}

func (DealStatusHistory) TableName() string { return "deal_status_history" }
