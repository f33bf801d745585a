// Package derive содержит разовые операции над дашбордом: клонирование на устройство и подписи виджетов.
package derive

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tbmirror/internal/logs"
	"tbmirror/internal/models"
	"tbmirror/internal/platform"
	"tbmirror/internal/resolver"
)

var ErrNoAliases = errors.New("dashboard has no entity aliases")

// Resolver: поиск по имени без учёта регистра.
type Resolver interface {
	ResolveFold(ctx context.Context, kind platform.Kind, name string) (models.Ref, error)
}

var _ Resolver = (*resolver.Resolver)(nil)

// target: дашборд и устройство, найденные по именам.
func target(ctx context.Context, res Resolver, dashboard, device string) (dash, dev models.Ref, err error) {
	dash, err = res.ResolveFold(ctx, platform.KindDashboard, strings.ToLower(dashboard))
	if err != nil {
		return dash, dev, fmt.Errorf("dashboard: %w", err)
	}
	dev, err = res.ResolveFold(ctx, platform.KindDevice, strings.ToLower(device))
	if err != nil {
		return dash, dev, fmt.Errorf("device: %w", err)
	}
	return dash, dev, nil
}

// Clone создаёт копию дашборда, у которой первый алиас указывает на устройство.
// Имя копии: newName или имя устройства.
func Clone(ctx context.Context, api platform.API, res Resolver, dashboard, device, newName string) (models.Ref, error) {
	dashRef, devRef, err := target(ctx, res, dashboard, device)
	if err != nil {
		return models.Ref{}, err
	}
	dash, err := api.Get(ctx, platform.KindDashboard, dashRef.ID.ID)
	if err != nil {
		return models.Ref{}, fmt.Errorf("fetch dashboard: %w", err)
	}

	if err := pointFirstAlias(dash, devRef); err != nil {
		return models.Ref{}, err
	}
	if newName == "" {
		newName = devRef.Name
	}
	if err := dash.Set("title", newName); err != nil {
		return models.Ref{}, err
	}
	dash.Delete("id", "createdTime")

	created, err := api.Create(ctx, platform.KindDashboard, dash)
	if err != nil {
		return models.Ref{}, fmt.Errorf("create dashboard: %w", err)
	}
	logs.For("clone").WithField("dashboard", newName).Infof("cloned %s onto %s", dashRef.Name, devRef.Name)
	return models.Ref{
		ID:   models.EntityID{EntityType: string(platform.KindDashboard), ID: created.ID()},
		Name: created.DisplayName(),
	}, nil
}

// pointFirstAlias: первый (по порядку в документе) алиас становится singleEntity на устройство.
func pointFirstAlias(dash models.Object, dev models.Ref) error {
	cfg, ok, err := dash.Object("configuration")
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoAliases
	}
	raw, ok := cfg["entityAliases"]
	if !ok {
		return ErrNoAliases
	}
	keys, err := models.Keys(raw)
	if err != nil {
		return fmt.Errorf("entityAliases: %w", err)
	}
	if len(keys) == 0 {
		return ErrNoAliases
	}
	aliases, _, err := cfg.Object("entityAliases")
	if err != nil {
		return err
	}

	first := keys[0]
	alias, _, err := aliases.Object(first)
	if err != nil {
		return err
	}
	filter, ok, err := alias.Object("filter")
	if err != nil {
		return err
	}
	if !ok {
		filter = models.Object{}
	}
	if err := alias.Set("alias", dev.Name); err != nil {
		return err
	}
	if err := filter.Set("type", "singleEntity"); err != nil {
		return err
	}
	if err := filter.Set("singleEntity", dev.ID); err != nil {
		return err
	}
	if err := alias.Set("filter", filter); err != nil {
		return err
	}
	if err := aliases.Set(first, alias); err != nil {
		return err
	}
	if err := cfg.Set("entityAliases", aliases); err != nil {
		return err
	}
	return dash.Set("configuration", cfg)
}
