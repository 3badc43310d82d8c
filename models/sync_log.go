package models

import (
	"encoding/json"
	"time"
)

// SyncType unterscheidet manuell ausgelöste von geplanten Läufen.
type SyncType string

const (
	SyncTypeManual    SyncType = "manual"
	SyncTypeScheduled SyncType = "scheduled"
)

// SyncStatus ist der Zustand eines Sync-Laufs: running -> completed | failed.
type SyncStatus string

const (
	SyncRunning   SyncStatus = "running"
	SyncCompleted SyncStatus = "completed"
	SyncFailed    SyncStatus = "failed"
)

// SyncLog protokolliert einen Lauf der Sync-Pipeline.
type SyncLog struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	SyncType    SyncType   `json:"sync_type" gorm:"index"`
	Status      SyncStatus `json:"status" gorm:"index;not null"`
	StartedAt   time.Time  `json:"started_at" gorm:"not null"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	DealsAdded   int `json:"deals_added"`
	DealsUpdated int `json:"deals_updated"`

	// Als JSON-Array gespeichert, damit die Tabelle in Postgres und SQLite gleich aussieht
	Errors   string `json:"-" gorm:"type:text"`
	Warnings string `json:"-" gorm:"type:text"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (SyncLog) TableName() string {
	return "sync_logs"
}

// ErrorList dekodiert die gespeicherten Fehler.
func (l SyncLog) ErrorList() []string {
	return decodeList(l.Errors)
}

// WarningList dekodiert die gespeicherten Warnungen.
func (l SyncLog) WarningList() []string {
	return decodeList(l.Warnings)
}

// EncodeList serialisiert eine Liste für die Spalten Errors/Warnings.
func EncodeList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeList(raw string) []string {
	out := []string{}
	if raw == "" {
		return out
	}
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}

// MarshalJSON liefert Fehler und Warnungen als echte Arrays aus.
func (l SyncLog) MarshalJSON() ([]byte, error) {
	type alias SyncLog
	return json.Marshal(struct {
		alias
		Errors   []string `json:"errors"`
		Warnings []string `json:"warnings"`
	}{
		alias:    alias(l),
		Errors:   l.ErrorList(),
		Warnings: l.WarningList(),
	})
}
