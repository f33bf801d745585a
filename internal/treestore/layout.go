package treestore

// Раскладка дерева бэкапа:
//
//	tenants/<tenant>.json
//	tenants/<tenant>/tenantAdmins/<user>.json
//	tenants/<tenant>/{ruleChains,widgets,dashboards,devices,customers}/<name>.json
//	tenants/<tenant>/customers/<customer>/<user>.json
const (
	DirTenants      = "tenants"
	DirTenantAdmins = "tenantAdmins"
	DirRuleChains   = "ruleChains"
	DirWidgets      = "widgets"
	DirDashboards   = "dashboards"
	DirDevices      = "devices"
	DirCustomers    = "customers"
)

// Categories: каталоги арендатора, которые пересоздаёт каждый экспорт.
var Categories = []string{DirRuleChains, DirWidgets, DirDashboards, DirDevices, DirCustomers}

// TenantDir: каталог арендатора относительно корня дерева.
func TenantDir(tenantName string) string {
	return Join(DirTenants, DirName(tenantName))
}
