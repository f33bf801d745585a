// Package restore воссоздаёт сущности из дерева бэкапа на целевой платформе.
package restore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"tbmirror/internal/logs"
	"tbmirror/internal/platform"
	"tbmirror/internal/resolver"
	"tbmirror/internal/treestore"
	"tbmirror/internal/workpool"
)

// Category: каталог дерева, который умеет восстанавливать импорт.
type Category string

const (
	Widgets    Category = treestore.DirWidgets
	Devices    Category = treestore.DirDevices
	Dashboards Category = treestore.DirDashboards
	RuleChains Category = treestore.DirRuleChains
	Customers  Category = treestore.DirCustomers
)

// DefaultCategories: что восстанавливается, если ничего не выбрано.
var DefaultCategories = []Category{Dashboards, RuleChains, Widgets, Devices}

// ParseCategory принимает имя каталога без учёта регистра.
func ParseCategory(s string) (Category, error) {
	for _, c := range []Category{Widgets, Devices, Dashboards, RuleChains, Customers} {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown restore category %q", s)
}

type Options struct {
	Concurrency   int
	DuplicateCode int // код ошибки платформы «уже существует»
}

// Importer читает каталог арендатора (tenants/<name>) и восстанавливает выбранные категории.
type Importer struct {
	api   platform.API
	store *treestore.Store
	res   *resolver.Resolver
	opts  Options
	log   *logrus.Entry
}

func New(api platform.API, store *treestore.Store, res *resolver.Resolver, opts Options) *Importer {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.DuplicateCode == 0 {
		opts.DuplicateCode = platform.DefaultDuplicateCode
	}
	return &Importer{api: api, store: store, res: res, opts: opts, log: logs.For("restore")}
}

// Run восстанавливает категории в две фазы: сначала всё, на что могут ссылаться
// дашборды (устройства, клиенты, виджеты, цепочки правил), затем дашборды.
func (im *Importer) Run(ctx context.Context, cats []Category) *workpool.Report {
	if len(cats) == 0 {
		cats = DefaultCategories
	}
	want := map[Category]bool{}
	for _, c := range cats {
		want[c] = true
	}
	rep := workpool.NewReport()

	var g errgroup.Group
	for _, c := range []Category{Widgets, Customers, Devices, RuleChains} {
		if want[c] {
			g.Go(func() error { im.category(ctx, c, rep); return nil })
		}
	}
	_ = g.Wait()

	if want[Dashboards] {
		im.category(ctx, Dashboards, rep)
	}
	return rep
}

func (im *Importer) category(ctx context.Context, c Category, rep *workpool.Report) {
	dir := string(c)
	files, err := im.store.List(dir)
	if errors.Is(err, os.ErrNotExist) {
		im.log.WithField("category", c).Info("nothing to restore")
		return
	}
	if err != nil {
		rep.Fail(dir, "*", err)
		return
	}
	im.log.WithField("category", c).Infof("restoring %d entities", len(files))

	restore := im.restorer(c)
	workpool.Each(ctx, rep, dir, im.opts.Concurrency, files, treestore.NameFromFile, func(ctx context.Context, file string) error {
		data, err := im.store.ReadFile(treestore.Join(dir, file))
		if err == nil {
			err = restore(ctx, treestore.NameFromFile(file), data)
		}
		if err != nil {
			im.log.WithError(err).WithFields(logrus.Fields{"category": c, "file": file}).Error("restore failed")
		}
		return err
	})
}

func (im *Importer) restorer(c Category) func(ctx context.Context, name string, data []byte) error {
	switch c {
	case Widgets:
		return im.RestoreWidgetBundle
	case Devices:
		return func(ctx context.Context, name string, data []byte) error {
			_, err := im.RestoreDevice(ctx, name, data)
			return err
		}
	case Dashboards:
		return im.RestoreDashboard
	case RuleChains:
		return im.RestoreRuleChain
	case Customers:
		return im.RestoreCustomer
	}
	return func(context.Context, string, []byte) error { return fmt.Errorf("unsupported category %q", c) }
}
