package workpool

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Outcome: результат обработки одной сущности.
type Outcome struct {
	Category string
	Name     string
	Err      error
}

func (o Outcome) Failed() bool { return o.Err != nil }

// Counts: счётчики по категории.
type Counts struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Report собирает исходы всего запуска; безопасен для параллельного Add.
type Report struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func NewReport() *Report { return &Report{} }

func (r *Report) Add(o Outcome) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, o)
	r.mu.Unlock()
}

// Fail: короткая запись неудачи.
func (r *Report) Fail(category, name string, err error) {
	r.Add(Outcome{Category: category, Name: name, Err: err})
}

func (r *Report) Outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.outcomes...)
}

func (r *Report) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes() {
		if o.Failed() {
			out = append(out, o)
		}
	}
	return out
}

func (r *Report) Succeeded() int { return len(r.Outcomes()) - len(r.Failures()) }

func (r *Report) Failed() int { return len(r.Failures()) }

func (r *Report) ByCategory() map[string]Counts {
	out := map[string]Counts{}
	for _, o := range r.Outcomes() {
		c := out[o.Category]
		if o.Failed() {
			c.Failed++
		} else {
			c.Succeeded++
		}
		out[o.Category] = c
	}
	return out
}

// Err: все ошибки одним значением (nil, если неудач нет).
func (r *Report) Err() error {
	fails := r.Failures()
	if len(fails) == 0 {
		return nil
	}
	sort.Slice(fails, func(i, j int) bool {
		if fails[i].Category != fails[j].Category {
			return fails[i].Category < fails[j].Category
		}
		return fails[i].Name < fails[j].Name
	})
	errs := make([]error, 0, len(fails))
	for _, o := range fails {
		errs = append(errs, fmt.Errorf("%s/%s: %w", o.Category, o.Name, o.Err))
	}
	return errors.Join(errs...)
}
