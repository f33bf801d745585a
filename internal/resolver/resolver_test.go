package resolver

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tbmirror/internal/models"
	"tbmirror/internal/platform"
)

type stubLister struct {
	data  []models.Entity
	err   error
	calls []platform.PageQuery
}

func (s *stubLister) List(_ context.Context, _ platform.Kind, q platform.PageQuery) (models.Page[models.Entity], error) {
	s.calls = append(s.calls, q)
	return models.Page[models.Entity]{Data: s.data}, s.err
}

// pagedLister отдаёт data страницами по PageSize.
type pagedLister struct {
	data  []models.Entity
	calls int
}

func (p *pagedLister) List(_ context.Context, _ platform.Kind, q platform.PageQuery) (models.Page[models.Entity], error) {
	p.calls++
	from := q.Page * q.PageSize
	if from > len(p.data) {
		from = len(p.data)
	}
	to := from + q.PageSize
	if to > len(p.data) {
		to = len(p.data)
	}
	return models.Page[models.Entity]{Data: p.data[from:to], HasNext: to < len(p.data)}, nil
}

func entity(t *testing.T, id, name string) models.Entity {
	t.Helper()
	e := models.Entity{}
	require.NoError(t, e.Set("id", models.EntityID{EntityType: "DEVICE", ID: id}))
	require.NoError(t, e.Set("name", name))
	return e
}

func TestResolve_ExactMatchAmongPrefixResults(t *testing.T) {
	l := &stubLister{data: []models.Entity{entity(t, "1", "D10"), entity(t, "2", "D1")}}
	r := New(l, 0)

	ref, err := r.Resolve(context.Background(), platform.KindDevice, "D1")
	require.NoError(t, err)
	assert.Equal(t, "2", ref.ID.ID)
	assert.Equal(t, "DEVICE", ref.ID.EntityType)
	assert.Equal(t, "D1", ref.Name)
	require.Len(t, l.calls, 1)
	assert.Equal(t, DefaultPageSize, l.calls[0].PageSize)
	assert.Equal(t, "D1", l.calls[0].TextSearch)
}

func TestResolve_NotFound(t *testing.T) {
	r := New(&stubLister{data: []models.Entity{entity(t, "1", "d1")}}, 5)
	_, err := r.Resolve(context.Background(), platform.KindDevice, "D1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveFold_IgnoresCase(t *testing.T) {
	r := New(&stubLister{data: []models.Entity{entity(t, "7", "Sensor-7")}}, 5)
	ref, err := r.ResolveFold(context.Background(), platform.KindDevice, "sensor-7")
	require.NoError(t, err)
	assert.Equal(t, "Sensor-7", ref.Name)
}

func TestResolve_NonUniqueUsesFirst(t *testing.T) {
	r := New(&stubLister{data: []models.Entity{entity(t, "a", "Dup"), entity(t, "b", "Dup")}}, 5)
	ref, err := r.Resolve(context.Background(), platform.KindDevice, "Dup")
	require.NoError(t, err)
	assert.Equal(t, "a", ref.ID.ID)
}

func TestResolve_ListError(t *testing.T) {
	boom := errors.New("boom")
	r := New(&stubLister{err: boom}, 5)
	_, err := r.Resolve(context.Background(), platform.KindDevice, "D1")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestResolve_EmptyName(t *testing.T) {
	l := &stubLister{}
	_, err := New(l, 5).Resolve(context.Background(), platform.KindDevice, "  ")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, l.calls)
}

func TestResolve_ExactMatchOnLaterPage(t *testing.T) {
	l := &pagedLister{}
	for i := 10; i < 20; i++ {
		l.data = append(l.data, entity(t, fmt.Sprint(i), fmt.Sprintf("D%d", i)))
	}
	l.data = append(l.data, entity(t, "exact", "D1"))

	ref, err := New(l, 4).Resolve(context.Background(), platform.KindDevice, "D1")
	require.NoError(t, err)
	assert.Equal(t, "exact", ref.ID.ID)
	assert.Equal(t, 3, l.calls)
}

func TestResolve_StopsAtMaxPages(t *testing.T) {
	l := &pagedLister{}
	for i := 0; i < (MaxPages+1)*2; i++ {
		l.data = append(l.data, entity(t, fmt.Sprint(i), "Dx"))
	}
	_, err := New(l, 2).Resolve(context.Background(), platform.KindDevice, "D1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, MaxPages, l.calls)
}
