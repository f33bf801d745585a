package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"tbmirror/internal/models"
	"tbmirror/internal/platform"
	"tbmirror/internal/treestore"
	"tbmirror/internal/workpool"
)

// tenantWalk: выгрузка категорий одного арендатора в его сессии.
type tenantWalk struct {
	*Exporter
	api      platform.API
	tenantID string
	dir      string
	rep      *workpool.Report
	log      *logrus.Entry
}

func byName(e models.Entity) string { return e.DisplayName() }

func (w *tenantWalk) list(ctx context.Context, category string, fetch platform.PageFunc) ([]models.Entity, bool) {
	items, err := platform.ListAll(ctx, w.opts.PageSize, fetch)
	if err != nil {
		w.log.WithError(err).WithField("category", category).Error("listing failed")
		w.rep.Fail(category, "*", fmt.Errorf("list: %w", err))
		return nil, false
	}
	return items, true
}

// each: общий пул категории; ошибки пишутся в лог с именем сущности.
func (w *tenantWalk) each(ctx context.Context, category string, items []models.Entity, fn func(context.Context, models.Entity) error) {
	workpool.Each(ctx, w.rep, category, w.opts.Concurrency, items, byName, func(ctx context.Context, e models.Entity) error {
		err := fn(ctx, e)
		if err != nil {
			w.log.WithError(err).WithFields(logrus.Fields{"category": category, "name": e.DisplayName()}).Error("export failed")
		}
		return err
	})
}

func (w *tenantWalk) path(category, name string) string {
	warnRenamed(w.log, category, name)
	return treestore.Join(w.dir, category, treestore.FileName(name))
}

func warnRenamed(log *logrus.Entry, category, name string) {
	if treestore.Renamed(name) {
		log.WithFields(logrus.Fields{"category": category, "name": name, "file": treestore.FileName(name)}).
			Warn("name is not a valid file name, restore will use the file name")
	}
}

// ruleChains: {ruleChain, metadata}.
func (w *tenantWalk) ruleChains(ctx context.Context) {
	items, ok := w.list(ctx, treestore.DirRuleChains, platform.Lister(w.api, platform.KindRuleChain))
	if !ok {
		return
	}
	w.each(ctx, treestore.DirRuleChains, items, func(ctx context.Context, rc models.Entity) error {
		full, err := w.api.Get(ctx, platform.KindRuleChain, rc.ID())
		if err != nil {
			return err
		}
		md, err := w.api.RuleChainMetadata(ctx, rc.ID())
		if err != nil {
			return fmt.Errorf("metadata: %w", err)
		}
		md.Delete("ruleChainId")
		out := models.Object{}
		if err := out.Set("ruleChain", full.StripLocal()); err != nil {
			return err
		}
		if err := out.Set("metadata", md); err != nil {
			return err
		}
		return w.store.WriteJSON(w.path(treestore.DirRuleChains, rc.DisplayName()), out)
	})
}

// widgets: только бандлы арендатора, вместе с типами виджетов.
func (w *tenantWalk) widgets(ctx context.Context) {
	items, ok := w.list(ctx, treestore.DirWidgets, platform.Lister(w.api, platform.KindWidgetBundle))
	if !ok {
		return
	}
	own := items[:0]
	for _, b := range items {
		if b.TenantID() != w.tenantID {
			w.log.WithField("bundle", b.DisplayName()).Debug("skipping system widget bundle")
			continue
		}
		own = append(own, b)
	}
	w.each(ctx, treestore.DirWidgets, own, func(ctx context.Context, b models.Entity) error {
		types, err := w.api.WidgetTypes(ctx, b.String("alias"), false)
		if err != nil {
			return fmt.Errorf("widget types: %w", err)
		}
		for _, t := range types {
			t.StripLocal()
		}
		if types == nil {
			types = []models.Entity{}
		}
		out := models.Object{}
		if err := out.Set("widgetsBundle", copyObject(b).StripLocal()); err != nil {
			return err
		}
		if err := out.Set("widgetTypes", types); err != nil {
			return err
		}
		return w.store.WriteJSON(w.path(treestore.DirWidgets, b.DisplayName()), out)
	})
}

func (w *tenantWalk) dashboards(ctx context.Context) {
	items, ok := w.list(ctx, treestore.DirDashboards, platform.Lister(w.api, platform.KindDashboard))
	if !ok {
		return
	}
	w.each(ctx, treestore.DirDashboards, items, func(ctx context.Context, d models.Entity) error {
		full, err := w.api.Get(ctx, platform.KindDashboard, d.ID())
		if err != nil {
			return err
		}
		return w.store.WriteJSON(w.path(treestore.DirDashboards, d.DisplayName()), full.StripLocal())
	})
}

// devices: {accessToken, attributes:{server,shared,client}}.
func (w *tenantWalk) devices(ctx context.Context) {
	items, ok := w.list(ctx, treestore.DirDevices, platform.Lister(w.api, platform.KindDevice))
	if !ok {
		return
	}
	w.each(ctx, treestore.DirDevices, items, func(ctx context.Context, d models.Entity) error {
		f, err := w.deviceFile(ctx, d.ID())
		if err != nil {
			return err
		}
		return w.store.WriteJSON(w.path(treestore.DirDevices, d.DisplayName()), f)
	})
}

func (w *tenantWalk) deviceFile(ctx context.Context, deviceID string) (*models.DeviceFile, error) {
	cr, err := w.api.DeviceCredentials(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("credentials: %w", err)
	}
	f := &models.DeviceFile{AccessToken: cr.CredentialsID}
	for _, scope := range models.Scopes {
		attrs, err := w.api.DeviceAttributes(ctx, deviceID, scope)
		if err != nil {
			return nil, fmt.Errorf("%s attributes: %w", scope, err)
		}
		f.Attributes.SetScope(scope, models.StripTimestamps(attrs))
	}
	return f, nil
}

// customers: файл клиента плюс каталог с его пользователями.
func (w *tenantWalk) customers(ctx context.Context) {
	items, ok := w.list(ctx, treestore.DirCustomers, platform.Lister(w.api, platform.KindCustomer))
	if !ok {
		return
	}
	w.each(ctx, treestore.DirCustomers, items, func(ctx context.Context, c models.Entity) error {
		name := c.DisplayName()
		customerID := c.ID()
		if err := w.store.WriteJSON(w.path(treestore.DirCustomers, name), copyObject(c).StripLocal()); err != nil {
			return err
		}
		users, err := platform.ListAll(ctx, w.opts.PageSize, func(ctx context.Context, q platform.PageQuery) (models.Page[models.Entity], error) {
			return w.api.CustomerUsers(ctx, customerID, q)
		})
		if err != nil {
			return fmt.Errorf("users: %w", err)
		}
		udir := treestore.Join(w.dir, treestore.DirCustomers, treestore.DirName(name))
		var errs []error
		for _, u := range users {
			u := copyObject(u).StripLocal()
			u.Delete("customerId")
			if err := w.store.WriteJSON(treestore.Join(udir, treestore.FileName(u.DisplayName())), u); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
