// Package app собирает зависимости (логи, журнал, клиент платформы) и команды CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"gorm.io/gorm"

	"tbmirror/config"
	"tbmirror/internal/db"
	"tbmirror/internal/logs"
	"tbmirror/internal/platform"
	"tbmirror/internal/repo"
	"tbmirror/internal/workpool"
)

type App struct {
	cfg    *config.Config
	db     *gorm.DB
	runs   *repo.RunStore
	client *platform.Client
	fs     afero.Fs
	log    *logrus.Entry
}

func New() *App { return &App{fs: afero.NewOsFs()} }

func (a *App) Initialize(cfg *config.Config) error {
	a.cfg = cfg

	/* 1) Логи */
	if err := logs.Init(logs.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	}); err != nil {
		return err
	}
	a.log = logs.For("app")

	/* 2) DB журнала (опционально) */
	d, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("db open failed: %w", err)
	}
	if err := db.Migrate(d); err != nil {
		return fmt.Errorf("db migrate failed: %w", err)
	}
	a.db = d
	a.runs = repo.NewRunStore(d)

	/* 3) Клиент платформы, без сессии */
	a.client = platform.New(platform.Options{
		BaseURL:   cfg.Platform.URL,
		Timeout:   cfg.Platform.Timeout,
		Retries:   cfg.Platform.Retries,
		RateLimit: cfg.Platform.RateLimit,
	})
	return nil
}

// Close освобождает соединение журнала.
func (a *App) Close() {
	if a.db == nil {
		return
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// session: клиент с токеном из конфига либо после входа по логину/паролю.
func (a *App) session(ctx context.Context) (platform.API, error) {
	if err := a.cfg.ValidatePlatform(); err != nil {
		return nil, err
	}
	if a.cfg.Platform.Token != "" {
		return a.client.WithToken(a.cfg.Platform.Token), nil
	}
	return a.client.Login(ctx, a.cfg.Platform.Username, a.cfg.Platform.Password)
}

// record пишет запуск в журнал; сбой журнала не меняет итог команды.
func (a *App) record(ctx context.Context, kind, root string, started time.Time, rep *workpool.Report) {
	id, err := a.runs.Record(ctx, repo.Run{Kind: kind, Target: a.cfg.Platform.URL, Root: root, Started: started}, rep)
	if err != nil {
		a.log.WithError(err).Warn("run journal write failed")
		return
	}
	if id != "" {
		a.log.WithField("run", id).Debug("run recorded")
	}
}

// Коды выхода.
const (
	ExitOK      = 0
	ExitFatal   = 1
	ExitPartial = 2
)

// errPartial: прогон завершён, но часть сущностей не обработана.
var errPartial = errors.New("completed with failures")

// ExitCode переводит ошибку команды в код выхода.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errPartial):
		return ExitPartial
	default:
		return ExitFatal
	}
}

// describe: одна строка диагностики для пользователя.
func describe(err error) string {
	switch {
	case errors.Is(err, platform.ErrUnauthorized):
		return fmt.Sprintf("authentication failed: %v (check platform.token or platform.username/platform.password)", err)
	default:
		return err.Error()
	}
}
