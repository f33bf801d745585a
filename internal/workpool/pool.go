// Package workpool делает ограниченный по ширине параллельный обход с отчётом по каждому элементу.
package workpool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Run вызывает fn для каждого item не более чем в width горутинах и ждёт всех.
// Ошибки одного элемента не останавливают остальные: каждая попадает в свой Outcome.
// После отмены ctx оставшиеся элементы получают ctx.Err().
func Run[T any](ctx context.Context, width int, items []T, fn func(context.Context, T) Outcome) []Outcome {
	if width < 1 {
		width = 1
	}
	out := make([]Outcome, len(items))
	var g errgroup.Group
	g.SetLimit(width)
	for i, it := range items {
		if err := ctx.Err(); err != nil {
			out[i] = Outcome{Err: err}
			continue
		}
		g.Go(func() error {
			out[i] = fn(ctx, it)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Each: Run, складывающий исходы в отчёт под категорией.
func Each[T any](ctx context.Context, r *Report, category string, width int, items []T, name func(T) string, fn func(context.Context, T) error) {
	outs := Run(ctx, width, items, func(ctx context.Context, it T) Outcome {
		return Outcome{Name: name(it), Err: fn(ctx, it)}
	})
	for i, o := range outs {
		o.Category = category
		if o.Name == "" {
			o.Name = name(items[i])
		}
		r.Add(o)
	}
}
