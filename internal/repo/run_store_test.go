package repo

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tbmirror/internal/workpool"
)

func setupMockDB(t *testing.T) (sqlmock.Sqlmock, *RunStore) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return mock, NewRunStore(gdb)
}

func TestRunStore_Disabled(t *testing.T) {
	ctx := context.Background()
	rep := workpool.NewReport()
	rep.Fail("devices", "D1", errors.New("boom"))

	for _, s := range []*RunStore{nil, NewRunStore(nil)} {
		assert.False(t, s.Enabled())
		id, err := s.Record(ctx, Run{Kind: "backup", Started: time.Now()}, rep)
		require.NoError(t, err)
		assert.Empty(t, id)

		runs, err := s.Recent(ctx, 5)
		require.NoError(t, err)
		assert.Empty(t, runs)

		fails, err := s.Failures(ctx, "x")
		require.NoError(t, err)
		assert.Empty(t, fails)
	}
}

func TestRecord_RunAndFailuresInOneTransaction(t *testing.T) {
	mock, s := setupMockDB(t)
	rep := workpool.NewReport()
	rep.Add(workpool.Outcome{Category: "devices", Name: "D1"})
	rep.Fail("devices", "D2", errors.New("duplicate"))
	rep.Fail("dashboards", "Main", errors.New("bad json"))

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "sync_runs"`).
		WithArgs(sqlmock.AnyArg(), "restore", "http://tb", "/backup/tenants/Acme", 1, 2,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "sync_failures"`).
		WithArgs(sqlmock.AnyArg(), "devices", "D2", "duplicate",
			sqlmock.AnyArg(), "dashboards", "Main", "bad json").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
	mock.ExpectCommit()

	id, err := s.Record(context.Background(), Run{
		Kind: "restore", Target: "http://tb", Root: "/backup/tenants/Acme", Started: time.Now(),
	}, rep)
	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecord_NoFailuresWritesOnlyRun(t *testing.T) {
	mock, s := setupMockDB(t)
	rep := workpool.NewReport()
	rep.Add(workpool.Outcome{Category: "devices", Name: "D1"})

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "sync_runs"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := s.Record(context.Background(), Run{Kind: "backup", Started: time.Now()}, rep)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecord_RollsBackOnFailureRows(t *testing.T) {
	mock, s := setupMockDB(t)
	rep := workpool.NewReport()
	rep.Fail("devices", "D2", errors.New("duplicate"))

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "sync_runs"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "sync_failures"`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	id, err := s.Record(context.Background(), Run{Kind: "restore", Started: time.Now()}, rep)
	require.ErrorContains(t, err, "disk full")
	assert.Empty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecent_NewestFirst(t *testing.T) {
	mock, s := setupMockDB(t)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "kind", "target", "root", "succeeded", "failed", "summary", "started_at", "finished_at"}).
		AddRow("r-2", "restore", "http://tb", "/b/tenants/Acme", 3, 1, []byte(`{"devices":{"succeeded":3,"failed":1}}`), now, now).
		AddRow("r-1", "backup", "http://tb", "/b", 10, 0, []byte(`{}`), now.Add(-time.Hour), now.Add(-time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "sync_runs" ORDER BY started_at desc LIMIT`)).
		WillReturnRows(rows)

	runs, err := s.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r-2", runs[0].ID)
	assert.Equal(t, 1, runs[0].Failed)
	assert.JSONEq(t, `{"devices":{"succeeded":3,"failed":1}}`, string(runs[0].Summary))
	assert.Equal(t, "backup", runs[1].Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailures_ByRun(t *testing.T) {
	mock, s := setupMockDB(t)
	rows := sqlmock.NewRows([]string{"id", "run_id", "category", "name", "error"}).
		AddRow(2, "r-2", "dashboards", "Main", "bad json").
		AddRow(1, "r-2", "devices", "D2", "duplicate")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "sync_failures" WHERE "sync_failures"."run_id" = $1 ORDER BY category asc, name asc`)).
		WithArgs("r-2").
		WillReturnRows(rows)

	fails, err := s.Failures(context.Background(), "r-2")
	require.NoError(t, err)
	require.Len(t, fails, 2)
	assert.Equal(t, "dashboards", fails[0].Category)
	assert.Equal(t, "duplicate", fails[1].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailures_QueryError(t *testing.T) {
	mock, s := setupMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "sync_failures"`).WillReturnError(errors.New("connection reset"))

	_, err := s.Failures(context.Background(), "r-2")
	require.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}
