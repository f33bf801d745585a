package restore

import (
	"context"
	"errors"
	"fmt"

	"tbmirror/internal/models"
	"tbmirror/internal/platform"
	"tbmirror/internal/resolver"
)

// RestoreDashboard создаёт дашборд из файла, переназначая ссылки на устройства
// (алиасы singleEntity) и клиентов по именам на целевой платформе.
// Неразрешённый алиас оставляется со старым id; неразрешённый клиент убирается.
func (im *Importer) RestoreDashboard(ctx context.Context, name string, data []byte) error {
	dash, err := models.ParseObject(data)
	if err != nil {
		return fmt.Errorf("parse dashboard: %w", err)
	}
	dash.StripLocal()

	if err := im.rewriteAliases(ctx, dash); err != nil {
		return err
	}
	if err := im.rewriteCustomers(ctx, dash); err != nil {
		return err
	}
	if _, err := im.api.Create(ctx, platform.KindDashboard, dash); err != nil {
		return fmt.Errorf("create dashboard: %w", err)
	}
	return nil
}

func (im *Importer) rewriteAliases(ctx context.Context, dash models.Object) error {
	cfg, ok, err := dash.Object("configuration")
	if err != nil || !ok {
		return err
	}
	aliases, ok, err := cfg.Object("entityAliases")
	if err != nil || !ok {
		return err
	}
	for aliasID := range aliases {
		alias, _, err := aliases.Object(aliasID)
		if err != nil {
			return fmt.Errorf("alias %s: %w", aliasID, err)
		}
		filter, ok, err := alias.Object("filter")
		if err != nil || !ok || filter.String("type") != "singleEntity" {
			continue
		}
		single, ok, err := filter.Object("singleEntity")
		if err != nil || !ok || single.String("entityType") != string(platform.KindDevice) {
			continue
		}

		deviceName := alias.String("alias")
		ref, err := im.res.Resolve(ctx, platform.KindDevice, deviceName)
		if err != nil {
			im.log.WithError(err).WithField("alias", deviceName).Warn("alias left unresolved")
			if !errors.Is(err, resolver.ErrNotFound) {
				return err
			}
			continue
		}
		if err := single.Set("id", ref.ID.ID); err != nil {
			return err
		}
		if err := setChain(aliases, aliasID, alias, filter, single); err != nil {
			return err
		}
	}
	if err := cfg.Set("entityAliases", aliases); err != nil {
		return err
	}
	return dash.Set("configuration", cfg)
}

// setChain записывает изменённые вложенные объекты alias.filter.singleEntity обратно.
func setChain(aliases models.Object, aliasID string, alias, filter, single models.Object) error {
	if err := filter.Set("singleEntity", single); err != nil {
		return err
	}
	if err := alias.Set("filter", filter); err != nil {
		return err
	}
	return aliases.Set(aliasID, alias)
}

func (im *Importer) rewriteCustomers(ctx context.Context, dash models.Object) error {
	assigned, ok, err := dash.Objects("assignedCustomers")
	if err != nil || !ok {
		return err
	}
	kept := make([]models.Object, 0, len(assigned))
	for _, c := range assigned {
		title := c.String("title")
		ref, err := im.res.Resolve(ctx, platform.KindCustomer, title)
		if err != nil {
			if !errors.Is(err, resolver.ErrNotFound) {
				return err
			}
			im.log.WithField("customer", title).Warn("dropping assignment to unknown customer")
			continue
		}
		if err := c.Set("customerId", ref.ID); err != nil {
			return err
		}
		kept = append(kept, c)
	}
	return dash.Set("assignedCustomers", kept)
}
