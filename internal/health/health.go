// Package health проверяет доступность платформы и БД журнала для команды status.
package health

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"tbmirror/internal/models"
)

// Result: итог одной проверки.
type Result struct {
	Name   string
	OK     bool
	Detail string
}

// Probe: именованная проверка.
type Probe struct {
	Name  string
	Check func(ctx context.Context) (string, error)
}

// Run выполняет проверки по порядку. Ошибка возвращается, если хоть одна не прошла.
func Run(ctx context.Context, probes ...Probe) ([]Result, error) {
	out := make([]Result, 0, len(probes))
	var errs []error
	for _, p := range probes {
		detail, err := p.Check(ctx)
		if err != nil {
			out = append(out, Result{Name: p.Name, Detail: err.Error()})
			errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))
			continue
		}
		out = append(out, Result{Name: p.Name, OK: true, Detail: detail})
	}
	return out, errors.Join(errs...)
}

// CurrentUser: часть platform.API, нужная для проверки сессии.
type CurrentUser interface {
	CurrentUser(ctx context.Context) (models.Entity, error)
}

// Platform: платформа отвечает и принимает токен.
func Platform(api CurrentUser) Probe {
	return Probe{Name: "platform", Check: func(ctx context.Context) (string, error) {
		u, err := api.CurrentUser(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s (%s)", u.DisplayName(), u.String("authority")), nil
	}}
}

// Database: readiness журнала. Без БД проверка проходит с пометкой disabled.
func Database(db *gorm.DB) Probe {
	return Probe{Name: "database", Check: func(ctx context.Context) (string, error) {
		if db == nil {
			return "disabled", nil
		}
		sqlDB, err := db.DB()
		if err != nil {
			return "", fmt.Errorf("db handle: %w", err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return "", fmt.Errorf("db unreachable: %w", err)
		}
		return "ok", nil
	}}
}
