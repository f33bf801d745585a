// Package resolver переводит отображаемое имя сущности в её живой id на целевой платформе.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"tbmirror/internal/logs"
	"tbmirror/internal/models"
	"tbmirror/internal/platform"
)

// ErrNotFound: сущности с таким именем нет. Для clone/label это фатально, для restore нет.
var ErrNotFound = errors.New("not found by name")

// DefaultPageSize: сколько кандидатов смотреть по textSearch за один запрос.
const DefaultPageSize = 10

// MaxPages ограничивает перебор страниц textSearch для одного имени.
const MaxPages = 100

// Lister: часть platform.API, нужная для поиска.
type Lister interface {
	List(ctx context.Context, kind platform.Kind, q platform.PageQuery) (models.Page[models.Entity], error)
}

type Resolver struct {
	api      Lister
	pageSize int
	log      *logrus.Entry
}

func New(api Lister, pageSize int) *Resolver {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Resolver{api: api, pageSize: pageSize, log: logs.For("resolver")}
}

// Resolve ищет сущность по точному совпадению имени.
func (r *Resolver) Resolve(ctx context.Context, kind platform.Kind, name string) (models.Ref, error) {
	return r.find(ctx, kind, name, func(a, b string) bool { return a == b })
}

// ResolveFold: то же без учёта регистра (clone/label нормализуют ввод).
func (r *Resolver) ResolveFold(ctx context.Context, kind platform.Kind, name string) (models.Ref, error) {
	return r.find(ctx, kind, name, strings.EqualFold)
}

func (r *Resolver) find(ctx context.Context, kind platform.Kind, name string, eq func(a, b string) bool) (models.Ref, error) {
	if strings.TrimSpace(name) == "" {
		return models.Ref{}, fmt.Errorf("%s with empty name: %w", kind, ErrNotFound)
	}
	var matches []models.Ref
	for p := 0; p < MaxPages; p++ {
		page, err := r.api.List(ctx, kind, platform.PageQuery{Page: p, PageSize: r.pageSize, TextSearch: name})
		if err != nil {
			return models.Ref{}, fmt.Errorf("lookup %s %q: %w", kind, name, err)
		}
		for _, e := range page.Data {
			if eq(e.DisplayName(), name) {
				matches = append(matches, models.Ref{
					ID:   models.EntityID{EntityType: string(kind), ID: e.ID()},
					Name: e.DisplayName(),
				})
			}
		}
		if !page.HasNext || len(page.Data) == 0 {
			break
		}
	}
	if len(matches) == 0 {
		return models.Ref{}, fmt.Errorf("%s %q: %w", kind, name, ErrNotFound)
	}
	if len(matches) > 1 {
		r.log.WithFields(logrus.Fields{"kind": kind, "name": name, "matches": len(matches)}).
			Warn("name is not unique, using the first match")
	}
	return matches[0], nil
}
