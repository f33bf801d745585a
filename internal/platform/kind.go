package platform

// Kind: вид сущности платформы.
type Kind string

const (
	KindDevice       Kind = "DEVICE"
	KindDashboard    Kind = "DASHBOARD"
	KindCustomer     Kind = "CUSTOMER"
	KindRuleChain    Kind = "RULE_CHAIN"
	KindWidgetBundle Kind = "WIDGETS_BUNDLE"
	KindWidgetType   Kind = "WIDGET_TYPE"
	KindTenant       Kind = "TENANT"
	KindUser         Kind = "USER"
)

// REST-пути по видам: list для постраничного списка, item для get/{id} и save.
type kindPaths struct {
	list string
	item string
}

var paths = map[Kind]kindPaths{
	KindDevice:       {list: "/api/tenant/devices", item: "/api/device"},
	KindDashboard:    {list: "/api/tenant/dashboards", item: "/api/dashboard"},
	KindCustomer:     {list: "/api/customers", item: "/api/customer"},
	KindRuleChain:    {list: "/api/ruleChains", item: "/api/ruleChain"},
	KindWidgetBundle: {list: "/api/widgetsBundles", item: "/api/widgetsBundle"},
	KindWidgetType:   {item: "/api/widgetType"},
	KindTenant:       {list: "/api/tenants", item: "/api/tenant"},
	KindUser:         {item: "/api/user"},
}

// ListPath и ItemPath нужны тестовому серверу, чтобы не дублировать таблицу.
func ListPath(k Kind) string { return paths[k].list }
func ItemPath(k Kind) string { return paths[k].item }

// Kinds: все виды, у которых есть REST-путь.
func Kinds() []Kind {
	return []Kind{KindDevice, KindDashboard, KindCustomer, KindRuleChain,
		KindWidgetBundle, KindWidgetType, KindTenant, KindUser}
}
