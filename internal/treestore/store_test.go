package treestore

import (
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_WriteReadList(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := New(fs, "/backup")

	require.NoError(t, s.WriteJSON("tenants/Acme/devices/b.json", map[string]int{"x": 1}))
	require.NoError(t, s.WriteFile("tenants/Acme/devices/a.json", []byte(`{}`)))
	require.NoError(t, s.WriteFile("tenants/Acme/devices/notes.txt", []byte(`skip`)))
	require.NoError(t, s.MkdirAll("tenants/Acme/devices/sub.json"))

	names, err := s.List("tenants/Acme/devices")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.json", "b.json"}, names)

	raw, err := afero.ReadFile(fs, "/backup/tenants/Acme/devices/b.json")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"x\": 1\n}\n", string(raw))

	var got map[string]int
	require.NoError(t, s.ReadJSON("tenants/Acme/devices/b.json", &got))
	assert.Equal(t, 1, got["x"])

	ok, err := s.Exists("tenants/Acme/devices/a.json")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_ListMissing(t *testing.T) {
	s := New(afero.NewMemMapFs(), "/backup")
	_, err := s.List("tenants/Nope/devices")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStore_Reset(t *testing.T) {
	s := New(afero.NewMemMapFs(), "/backup")
	require.NoError(t, s.WriteFile("dashboards/old.json", []byte(`{}`)))
	require.NoError(t, s.Reset("dashboards"))

	names, err := s.List("dashboards")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestStore_ReadJSONError(t *testing.T) {
	s := New(afero.NewMemMapFs(), "/backup")
	require.NoError(t, s.WriteFile("bad.json", []byte(`{`)))
	var v map[string]any
	assert.ErrorContains(t, s.ReadJSON("bad.json", &v), "parse bad.json")
}

func TestNames(t *testing.T) {
	assert.Equal(t, "Floor 1_2.json", FileName("Floor 1/2"))
	assert.Equal(t, "a_b", DirName(`a\b`))
	assert.Equal(t, "_..", DirName(".."))
	assert.Equal(t, "Floor 1_2", NameFromFile("x/Floor 1_2.json"))
	assert.Equal(t, "tenants/Acme.json", Join("tenants", "Acme.json"))
	assert.Equal(t, "tenants/Acme", TenantDir("Acme"))
	assert.True(t, Renamed("Floor 1/2"))
	assert.True(t, Renamed(".."))
	assert.False(t, Renamed("Floor 1"))
}
