// Package export выгружает конфигурацию платформы в дерево файлов.
package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"tbmirror/internal/logs"
	"tbmirror/internal/models"
	"tbmirror/internal/platform"
	"tbmirror/internal/treestore"
	"tbmirror/internal/workpool"
)

var errNoTenantAdmin = errors.New("tenant has no tenant admin to continue the walk as")

// Options: политика обхода.
type Options struct {
	PageSize    int // размер страницы списков
	Concurrency int // ширина пула внутри категории
}

type Exporter struct {
	api   platform.API
	store *treestore.Store
	opts  Options
	log   *logrus.Entry
}

func New(api platform.API, store *treestore.Store, opts Options) *Exporter {
	if opts.PageSize <= 0 {
		opts.PageSize = 1000
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	return &Exporter{api: api, store: store, opts: opts, log: logs.For("export")}
}

// Run выгружает всё, что видит текущая сессия: системный администратор
// выгружает всех арендаторов, администратор арендатора только свой.
// Ошибка возвращается только если обход нельзя даже начать.
func (e *Exporter) Run(ctx context.Context) (*workpool.Report, error) {
	me, err := e.api.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}
	rep := workpool.NewReport()
	switch me.String("authority") {
	case models.AuthoritySysAdmin:
		err = e.ExportSystem(ctx, rep)
	case models.AuthorityTenantAdmin:
		var tenant models.Entity
		tenant, err = e.api.Get(ctx, platform.KindTenant, me.TenantID())
		if err != nil {
			return rep, fmt.Errorf("tenant of %s: %w", me.DisplayName(), err)
		}
		err = e.ExportTenant(ctx, e.api, tenant, rep)
	default:
		err = fmt.Errorf("authority %q cannot run a backup", me.String("authority"))
	}
	return rep, err
}

// ExportSystem обходит всех арендаторов. Для каждого выпускается токен
// его первого администратора, и категории выгружаются уже в этой сессии.
func (e *Exporter) ExportSystem(ctx context.Context, rep *workpool.Report) error {
	tenants, err := platform.ListAll(ctx, e.opts.PageSize, platform.Lister(e.api, platform.KindTenant))
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}
	// снимок полный: удалённые арендаторы и арендаторы без администратора не оставляют старых файлов
	if err := e.store.Reset(treestore.DirTenants); err != nil {
		return err
	}
	e.log.Infof("exporting %d tenants", len(tenants))
	for _, tenant := range tenants {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := tenant.DisplayName()
		if err := e.exportTenantAsAdmin(ctx, tenant, rep); err != nil {
			e.log.WithError(err).WithField("tenant", name).Error("tenant export failed")
			rep.Fail(treestore.DirTenants, name, err)
			continue
		}
		rep.Add(workpool.Outcome{Category: treestore.DirTenants, Name: name})
	}
	return nil
}

func (e *Exporter) exportTenantAsAdmin(ctx context.Context, tenant models.Entity, rep *workpool.Report) error {
	name := tenant.DisplayName()
	dir := treestore.TenantDir(name)
	tenantID := tenant.ID()

	body := copyObject(tenant).StripLocal()
	warnRenamed(e.log, treestore.DirTenants, name)
	if err := e.store.WriteJSON(treestore.Join(treestore.DirTenants, treestore.FileName(name)), body); err != nil {
		return err
	}

	adminsDir := treestore.Join(dir, treestore.DirTenantAdmins)
	if err := e.store.Reset(adminsDir); err != nil {
		return err
	}
	admins, err := platform.ListAll(ctx, e.opts.PageSize, func(ctx context.Context, q platform.PageQuery) (models.Page[models.Entity], error) {
		return e.api.TenantAdmins(ctx, tenantID, q)
	})
	if err != nil {
		return fmt.Errorf("list tenant admins: %w", err)
	}
	for _, u := range admins {
		uname := u.DisplayName()
		err := e.store.WriteJSON(treestore.Join(adminsDir, treestore.FileName(uname)), copyObject(u).StripLocal())
		rep.Add(workpool.Outcome{Category: treestore.DirTenantAdmins, Name: name + "/" + uname, Err: err})
	}
	if len(admins) == 0 {
		return errNoTenantAdmin
	}

	pair, err := e.api.UserToken(ctx, admins[0].ID())
	if err != nil {
		return fmt.Errorf("issue token for %s: %w", admins[0].DisplayName(), err)
	}
	return e.ExportTenant(ctx, e.api.WithToken(pair.Token), tenant, rep)
}

// ExportTenant пересоздаёт каталоги категорий арендатора и выгружает их параллельно.
// api должен быть сессией этого арендатора.
func (e *Exporter) ExportTenant(ctx context.Context, api platform.API, tenant models.Entity, rep *workpool.Report) error {
	name := tenant.DisplayName()
	dir := treestore.TenantDir(name)
	for _, c := range treestore.Categories {
		if err := e.store.Reset(treestore.Join(dir, c)); err != nil {
			return err
		}
	}
	log := e.log.WithField("tenant", name)
	log.Info("exporting tenant")

	w := tenantWalk{Exporter: e, api: api, tenantID: tenant.ID(), dir: dir, rep: rep, log: log}
	var g errgroup.Group
	g.Go(func() error { w.ruleChains(ctx); return nil })
	g.Go(func() error { w.widgets(ctx); return nil })
	g.Go(func() error { w.dashboards(ctx); return nil })
	g.Go(func() error { w.devices(ctx); return nil })
	g.Go(func() error { w.customers(ctx); return nil })
	_ = g.Wait()
	return nil
}

func copyObject(o models.Object) models.Object {
	out := make(models.Object, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}
