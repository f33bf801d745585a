package restore

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tbmirror/internal/platform"
	"tbmirror/internal/platform/platformtest"
	"tbmirror/internal/resolver"
	"tbmirror/internal/treestore"
)

const token = "restore-token"

type fixture struct {
	srv      *platformtest.Server
	tenantID string
	store    *treestore.Store
	im       *Importer
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	srv := platformtest.New()
	t.Cleanup(srv.Close)
	tenantID := srv.AddTenant("Target")
	srv.AddTenantAdmin(tenantID, "admin@target.io", "secret", token)

	api := platform.New(platform.Options{BaseURL: srv.URL}).WithToken(token)
	store := treestore.New(afero.NewMemMapFs(), "/tenants/Source")
	return &fixture{
		srv:      srv,
		tenantID: tenantID,
		store:    store,
		im:       New(api, store, resolver.New(api, 0), opts),
	}
}

func (f *fixture) devices(t *testing.T, name string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, d := range f.srv.Entities(platform.KindDevice, f.tenantID) {
		if d["name"] == name {
			out = append(out, d)
		}
	}
	return out
}

func idOf(e map[string]any) string {
	return e["id"].(map[string]any)["id"].(string)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

/* ───── устройства ───── */

const deviceFile = `{
	"accessToken": "TOKEN-D1",
	"attributes": {
		"server": [{"key": "threshold", "value": 42}],
		"shared": [],
		"client": []
	}
}`

func TestRestoreDevice_Idempotent(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	state, err := f.im.RestoreDevice(ctx, "D1", []byte(deviceFile))
	require.NoError(t, err)
	assert.Equal(t, Created, state)

	state, err = f.im.RestoreDevice(ctx, "D1", []byte(deviceFile))
	require.NoError(t, err)
	assert.Equal(t, CredentialRepaired, state)

	devs := f.devices(t, "D1")
	require.Len(t, devs, 1)
	id := idOf(devs[0])
	assert.Equal(t, "TOKEN-D1", f.srv.Credentials(id))
	assert.Equal(t, map[string]string{"threshold": "42"}, f.srv.Attributes(id, "SERVER_SCOPE"))
}

func TestRestoreDevice_RepairsTokenOfExistingDevice(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.srv.Seed(platform.KindDevice, f.tenantID, map[string]any{"name": "D1", "type": "default"})
	f.srv.SetCredentials(id, "OLD")

	state, err := f.im.RestoreDevice(context.Background(), "D1", []byte(deviceFile))
	require.NoError(t, err)
	assert.Equal(t, CredentialRepaired, state)
	assert.Equal(t, "TOKEN-D1", f.srv.Credentials(id))
	assert.Len(t, f.devices(t, "D1"), 1)
}

func TestRestoreDevice_RepairsTokenBehindManyPrefixMatches(t *testing.T) {
	f := newFixture(t, Options{})
	for i := 10; i < 20; i++ {
		f.srv.Seed(platform.KindDevice, f.tenantID, map[string]any{"name": fmt.Sprintf("D%d", i)})
	}
	f.srv.Seed(platform.KindDevice, f.tenantID, map[string]any{"name": "D1"})
	id := f.srv.Seed(platform.KindDevice, f.tenantID, map[string]any{"name": "d1"})
	f.srv.SetCredentials(id, "OLD")

	// "d1" сортируется после D1 и D10..D19 и попадает на вторую страницу поиска
	state, err := f.im.RestoreDevice(context.Background(), "d1", []byte(deviceFile))
	require.NoError(t, err)
	assert.Equal(t, CredentialRepaired, state)
	assert.Equal(t, "TOKEN-D1", f.srv.Credentials(id))
}

func TestRestoreDevice_EmptyScopeDoesNotClobber(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.srv.Seed(platform.KindDevice, f.tenantID, map[string]any{"name": "D1"})
	f.srv.SetAttributes(id, "SERVER_SCOPE", map[string]any{"kept": true})

	file := `{"accessToken":"T","attributes":{"server":[],"shared":[{"key":"mode","value":"eco"}],"client":[]}}`
	_, err := f.im.RestoreDevice(context.Background(), "D1", []byte(file))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"kept": "true"}, f.srv.Attributes(id, "SERVER_SCOPE"))
	assert.Equal(t, map[string]string{"mode": `"eco"`}, f.srv.Attributes(id, "SHARED_SCOPE"))
	assert.Equal(t, 1, f.srv.Requests("POST /api/plugins/telemetry/DEVICE/{id}/attributes/{scope}"),
		"only the shared scope is written")
}

func TestRestoreDevice_OtherCreateErrorSkipsAttributes(t *testing.T) {
	// платформа сообщает о дубликате кодом 31, а импорт настроен на другой код
	f := newFixture(t, Options{DuplicateCode: 99})
	id := f.srv.Seed(platform.KindDevice, f.tenantID, map[string]any{"name": "D1"})
	f.srv.SetCredentials(id, "OLD")

	state, err := f.im.RestoreDevice(context.Background(), "D1", []byte(deviceFile))
	require.Error(t, err)
	assert.Equal(t, Failed, state)
	assert.Equal(t, "OLD", f.srv.Credentials(id))
	assert.Empty(t, f.srv.Attributes(id, "SERVER_SCOPE"))
}

func TestRestoreDevice_BadFile(t *testing.T) {
	f := newFixture(t, Options{})
	state, err := f.im.RestoreDevice(context.Background(), "D1", []byte("{"))
	require.Error(t, err)
	assert.Equal(t, Failed, state)
	assert.Empty(t, f.devices(t, "D1"))
}

/* ───── дашборды ───── */

func dashboardFile(t *testing.T, aliasName, staleID string, customers ...string) []byte {
	t.Helper()
	assigned := []any{}
	for _, c := range customers {
		assigned = append(assigned, map[string]any{
			"customerId": map[string]any{"entityType": "CUSTOMER", "id": "stale-" + c},
			"title":      c,
			"public":     false,
		})
	}
	return mustJSON(t, map[string]any{
		"id":          map[string]any{"entityType": "DASHBOARD", "id": "source-dash"},
		"createdTime": 1600000000000,
		"tenantId":    map[string]any{"entityType": "TENANT", "id": "source-tenant"},
		"title":       "Overview",
		"configuration": map[string]any{
			"description": "kept verbatim",
			"entityAliases": map[string]any{
				"alias-1": map[string]any{
					"id":    "alias-1",
					"alias": aliasName,
					"filter": map[string]any{
						"type":            "singleEntity",
						"resolveMultiple": false,
						"singleEntity":    map[string]any{"entityType": "DEVICE", "id": staleID},
					},
				},
			},
		},
		"assignedCustomers": assigned,
	})
}

func singleEntityID(t *testing.T, dash map[string]any) string {
	t.Helper()
	cfg := dash["configuration"].(map[string]any)
	alias := cfg["entityAliases"].(map[string]any)["alias-1"].(map[string]any)
	return alias["filter"].(map[string]any)["singleEntity"].(map[string]any)["id"].(string)
}

func TestRestoreDashboard_RewritesDeviceReference(t *testing.T) {
	f := newFixture(t, Options{})
	live := f.srv.Seed(platform.KindDevice, f.tenantID, map[string]any{"name": "D1"})
	f.srv.Seed(platform.KindDevice, f.tenantID, map[string]any{"name": "D10"})

	require.NoError(t, f.im.RestoreDashboard(context.Background(), "Overview", dashboardFile(t, "D1", "stale-device")))

	dashes := f.srv.Entities(platform.KindDashboard, f.tenantID)
	require.Len(t, dashes, 1)
	assert.Equal(t, live, singleEntityID(t, dashes[0]))
	assert.NotEqual(t, "source-dash", idOf(dashes[0]))
	assert.Equal(t, "kept verbatim", dashes[0]["configuration"].(map[string]any)["description"])
}

func TestRestoreDashboard_UnresolvedAliasKeepsStaleID(t *testing.T) {
	f := newFixture(t, Options{})

	require.NoError(t, f.im.RestoreDashboard(context.Background(), "Overview", dashboardFile(t, "Missing", "stale-device")))

	dashes := f.srv.Entities(platform.KindDashboard, f.tenantID)
	require.Len(t, dashes, 1)
	assert.Equal(t, "stale-device", singleEntityID(t, dashes[0]))
}

func TestRestoreDashboard_CustomerAssignments(t *testing.T) {
	f := newFixture(t, Options{})
	cust := f.srv.Seed(platform.KindCustomer, f.tenantID, map[string]any{"title": "Known"})

	require.NoError(t, f.im.RestoreDashboard(context.Background(), "Overview",
		dashboardFile(t, "D1", "stale-device", "Known", "Unknown")))

	dashes := f.srv.Entities(platform.KindDashboard, f.tenantID)
	require.Len(t, dashes, 1)
	assigned := dashes[0]["assignedCustomers"].([]any)
	require.Len(t, assigned, 1)
	c := assigned[0].(map[string]any)
	assert.Equal(t, "Known", c["title"])
	assert.Equal(t, cust, c["customerId"].(map[string]any)["id"])
}

/* ───── виджеты, цепочки, клиенты ───── */

func TestRestoreWidgetBundle(t *testing.T) {
	f := newFixture(t, Options{})
	file := mustJSON(t, map[string]any{
		"widgetsBundle": map[string]any{"title": "My Widgets", "alias": "old_alias", "id": map[string]any{"id": "x"}},
		"widgetTypes": []any{
			map[string]any{"name": "Gauge", "alias": "gauge", "bundleAlias": "old_alias", "tenantId": map[string]any{"id": "src"}},
			map[string]any{"name": "Chart", "alias": "chart", "bundleAlias": "old_alias"},
		},
	})

	require.NoError(t, f.im.RestoreWidgetBundle(context.Background(), "My Widgets", file))

	bundles := f.srv.Entities(platform.KindWidgetBundle, f.tenantID)
	require.Len(t, bundles, 1)
	assert.Equal(t, "my_widgets", bundles[0]["alias"])
	types := f.srv.Entities(platform.KindWidgetType, f.tenantID)
	require.Len(t, types, 2)
	for _, wt := range types {
		assert.Equal(t, "my_widgets", wt["bundleAlias"])
	}
}

func TestRestoreRuleChain(t *testing.T) {
	f := newFixture(t, Options{})
	file := mustJSON(t, map[string]any{
		"ruleChain": map[string]any{"name": "Root", "root": true, "firstRuleNodeId": map[string]any{"id": "n0"}},
		"metadata": map[string]any{
			"firstNodeIndex": 0,
			"nodes": []any{
				map[string]any{"id": map[string]any{"id": "n0"}, "name": "Save", "type": "TbMsgTimeseriesNode"},
			},
			"connections": []any{},
		},
	})

	require.NoError(t, f.im.RestoreRuleChain(context.Background(), "Root", file))

	chains := f.srv.Entities(platform.KindRuleChain, f.tenantID)
	require.Len(t, chains, 1)
	assert.Equal(t, false, chains[0]["root"])
	md := f.srv.RuleChainMetadata(idOf(chains[0]))
	require.NotNil(t, md)
	nodes := md["nodes"].([]any)
	require.Len(t, nodes, 1)
	assert.NotEqual(t, "n0", nodes[0].(map[string]any)["id"].(map[string]any)["id"])
}

func TestRestoreCustomer_DuplicateIsNotAnError(t *testing.T) {
	f := newFixture(t, Options{})
	f.srv.Seed(platform.KindCustomer, f.tenantID, map[string]any{"title": "Known"})

	require.NoError(t, f.im.RestoreCustomer(context.Background(), "Known", []byte(`{"title":"Known"}`)))
	require.NoError(t, f.im.RestoreCustomer(context.Background(), "New", []byte(`{"title":"New"}`)))
	assert.Len(t, f.srv.Entities(platform.KindCustomer, f.tenantID), 2)
}

/* ───── полный прогон ───── */

func TestRun_IsolatesFailuresAndOrdersDashboardsLast(t *testing.T) {
	f := newFixture(t, Options{Concurrency: 2})
	require.NoError(t, f.store.WriteFile("devices/D1.json", []byte(deviceFile)))
	require.NoError(t, f.store.WriteFile("devices/Broken.json", []byte("not json")))
	require.NoError(t, f.store.WriteFile("dashboards/Overview.json", dashboardFile(t, "D1", "stale-device")))

	rep := f.im.Run(context.Background(), nil)

	assert.Equal(t, 1, rep.Failed())
	assert.Equal(t, "Broken", rep.Failures()[0].Name)
	assert.Equal(t, 2, rep.Succeeded())

	devs := f.devices(t, "D1")
	require.Len(t, devs, 1)
	dashes := f.srv.Entities(platform.KindDashboard, f.tenantID)
	require.Len(t, dashes, 1)
	assert.Equal(t, idOf(devs[0]), singleEntityID(t, dashes[0]))
}

func TestRun_SelectedCategoriesOnly(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.store.WriteFile("devices/D1.json", []byte(deviceFile)))
	require.NoError(t, f.store.WriteFile("dashboards/Overview.json", dashboardFile(t, "D1", "x")))

	rep := f.im.Run(context.Background(), []Category{Devices})

	require.NoError(t, rep.Err())
	assert.Len(t, f.devices(t, "D1"), 1)
	assert.Empty(t, f.srv.Entities(platform.KindDashboard, f.tenantID))
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("rulechains")
	require.NoError(t, err)
	assert.Equal(t, RuleChains, c)
	_, err = ParseCategory("alarms")
	assert.Error(t, err)
}

func TestBundleAlias(t *testing.T) {
	assert.Equal(t, "my_widgets", BundleAlias("My Widgets"))
}
