package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tbmirror/internal/models"
)

type userStub struct {
	user models.Entity
	err  error
}

func (u userStub) CurrentUser(context.Context) (models.Entity, error) { return u.user, u.err }

func TestRun(t *testing.T) {
	user, err := models.ParseObject([]byte(`{"email":"admin@acme.io","authority":"TENANT_ADMIN"}`))
	require.NoError(t, err)

	res, err := Run(context.Background(), Platform(userStub{user: user}), Database(nil))
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.True(t, res[0].OK)
	assert.Equal(t, "admin@acme.io (TENANT_ADMIN)", res[0].Detail)
	assert.Equal(t, Result{Name: "database", OK: true, Detail: "disabled"}, res[1])
}

func TestRun_Failure(t *testing.T) {
	boom := errors.New("connection refused")
	res, err := Run(context.Background(), Platform(userStub{err: boom}), Database(nil))
	require.ErrorIs(t, err, boom)
	assert.False(t, res[0].OK)
	assert.True(t, res[1].OK)
}
