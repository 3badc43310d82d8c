package models

import "time"

// Company repräsentiert ein Unternehmen, das als Käufer oder Ziel auftritt.
type Company struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name           string `json:"name" gorm:"not null"`
	NameNormalized string `json:"name_normalized" gorm:"uniqueIndex;not null"` // z.B. "acme"
	Website        string `json:"website,omitempty"`
	LogoURL        string `json:"logo_url,omitempty"`
	LogoFetched    bool   `json:"logo_fetched" gorm:"default:false"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Company) TableName() string {
	return "companies"
}
