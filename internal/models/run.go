package models

import (
	"time"

	"gorm.io/datatypes"
)

// SyncRun: запись журнала об одном запуске backup/restore/clone/label.
type SyncRun struct {
	ID         string         `gorm:"primaryKey;size:36" json:"id"`
	Kind       string         `gorm:"size:32;index;not null" json:"kind"` // backup|restore|clone|label
	Target     string         `gorm:"size:255" json:"target"`             // URL платформы
	Root       string         `gorm:"size:1024" json:"root"`              // каталог дерева
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	Summary    datatypes.JSON `json:"summary"` // счётчики по категориям
	StartedAt  time.Time      `gorm:"index" json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// SyncFailure: сущность, которую не удалось выгрузить/восстановить.
type SyncFailure struct {
	ID       uint   `gorm:"primaryKey"`
	RunID    string `gorm:"size:36;index;not null"`
	Category string `gorm:"size:64"`
	Name     string `gorm:"size:255"`
	Error    string `gorm:"type:text"`
}
