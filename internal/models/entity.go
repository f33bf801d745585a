package models

// Entity хранит тело сущности платформы с типизированным доступом к id/name/tenantId,
// а остальное (configuration и т.п.) держит без интерпретации.
type Entity = Object

// Поля, которые не имеют смысла вне исходной инсталляции.
var LocalFields = []string{"id", "createdTime", "tenantId"}

// EntityID: ссылка на сущность в пространстве id платформы.
type EntityID struct {
	EntityType string `json:"entityType"`
	ID         string `json:"id"`
}

// Ref: результат разрешения имени в живой id.
type Ref struct {
	ID   EntityID
	Name string
}

// ID возвращает id сущности ("" если его нет).
func (o Object) ID() string {
	return o.idField("id")
}

func (o Object) TenantID() string {
	return o.idField("tenantId")
}

func (o Object) CustomerID() string {
	return o.idField("customerId")
}

func (o Object) idField(key string) string {
	var id EntityID
	if ok, err := o.Decode(key, &id); !ok || err != nil {
		return ""
	}
	return id.ID
}

// DisplayName возвращает человекочитаемое имя: name, затем title, затем email.
func (o Object) DisplayName() string {
	for _, k := range []string{"name", "title", "email"} {
		if s := o.String(k); s != "" {
			return s
		}
	}
	return ""
}

// StripLocal удаляет id, createdTime и tenantId.
func (o Object) StripLocal() Object {
	o.Delete(LocalFields...)
	return o
}

// Page: страница ответа списка платформы.
type Page[T any] struct {
	Data          []T  `json:"data"`
	TotalPages    int  `json:"totalPages"`
	TotalElements int  `json:"totalElements"`
	HasNext       bool `json:"hasNext"`
}

// JWTPair: сессионный токен платформы.
type JWTPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// Authority текущего пользователя.
const (
	AuthoritySysAdmin    = "SYS_ADMIN"
	AuthorityTenantAdmin = "TENANT_ADMIN"
)
