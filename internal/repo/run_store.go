// Package repo ведёт журнал запусков поверх gorm.
package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"tbmirror/internal/models"
	"tbmirror/internal/workpool"
)

// RunStore пишет итоги запусков. С nil-БД все методы ничего не делают.
type RunStore struct{ db *gorm.DB }

func NewRunStore(db *gorm.DB) *RunStore { return &RunStore{db: db} }

func (s *RunStore) Enabled() bool { return s != nil && s.db != nil }

// Run: описание одного запуска для журнала.
type Run struct {
	Kind    string // backup|restore|clone|label
	Target  string
	Root    string
	Started time.Time
}

// Record сохраняет запуск и все его неудачи одной транзакцией. Возвращает id записи.
func (s *RunStore) Record(ctx context.Context, run Run, rep *workpool.Report) (string, error) {
	if !s.Enabled() {
		return "", nil
	}
	if rep == nil {
		rep = workpool.NewReport()
	}
	summary, err := json.Marshal(rep.ByCategory())
	if err != nil {
		return "", err
	}
	row := models.SyncRun{
		ID:         uuid.NewString(),
		Kind:       run.Kind,
		Target:     run.Target,
		Root:       run.Root,
		Succeeded:  rep.Succeeded(),
		Failed:     rep.Failed(),
		Summary:    datatypes.JSON(summary),
		StartedAt:  run.Started,
		FinishedAt: time.Now(),
	}
	fails := rep.Failures()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if len(fails) == 0 {
			return nil
		}
		rows := make([]models.SyncFailure, 0, len(fails))
		for _, f := range fails {
			rows = append(rows, models.SyncFailure{RunID: row.ID, Category: f.Category, Name: f.Name, Error: f.Err.Error()})
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return "", err
	}
	return row.ID, nil
}

// Recent: последние запуски, новые первыми.
func (s *RunStore) Recent(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if !s.Enabled() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	var runs []models.SyncRun
	if err := s.db.WithContext(ctx).
		Order("started_at desc").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// Failures: неудачи запуска.
func (s *RunStore) Failures(ctx context.Context, runID string) ([]models.SyncFailure, error) {
	if !s.Enabled() {
		return nil, nil
	}
	var out []models.SyncFailure
	if err := s.db.WithContext(ctx).
		Where(&models.SyncFailure{RunID: runID}).
		Order("category asc, name asc").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
