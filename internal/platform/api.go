package platform

import (
	"context"
	"encoding/json"

	"tbmirror/internal/models"
)

// PageQuery: параметры постраничного списка.
type PageQuery struct {
	Page       int
	PageSize   int
	TextSearch string
}

// API: контракт клиента сущностей, от которого зависят экспорт, импорт и производные операции.
type API interface {
	WithToken(token string) API

	List(ctx context.Context, kind Kind, q PageQuery) (models.Page[models.Entity], error)
	Get(ctx context.Context, kind Kind, id string) (models.Entity, error)
	Create(ctx context.Context, kind Kind, body models.Entity) (models.Entity, error)
	Update(ctx context.Context, kind Kind, body models.Entity) (models.Entity, error)
	CreateDevice(ctx context.Context, body models.Entity, accessToken string) (models.Entity, error)

	CustomerUsers(ctx context.Context, customerID string, q PageQuery) (models.Page[models.Entity], error)
	TenantAdmins(ctx context.Context, tenantID string, q PageQuery) (models.Page[models.Entity], error)
	WidgetTypes(ctx context.Context, bundleAlias string, system bool) ([]models.Entity, error)
	RuleChainMetadata(ctx context.Context, ruleChainID string) (models.Entity, error)
	SaveRuleChainMetadata(ctx context.Context, metadata models.Entity) (models.Entity, error)

	DeviceAttributes(ctx context.Context, deviceID, scope string) ([]models.Attribute, error)
	DeviceAttributesByKeys(ctx context.Context, deviceID string, keys ...string) ([]models.Attribute, error)
	SaveDeviceAttributes(ctx context.Context, deviceID, scope string, values map[string]json.RawMessage) error
	DeviceCredentials(ctx context.Context, deviceID string) (*models.DeviceCredentials, error)
	SaveDeviceCredentials(ctx context.Context, cr *models.DeviceCredentials) (*models.DeviceCredentials, error)

	CurrentUser(ctx context.Context) (models.Entity, error)
	UserToken(ctx context.Context, userID string) (*models.JWTPair, error)
}

// PageFunc: одна страница какого-либо списка.
type PageFunc func(ctx context.Context, q PageQuery) (models.Page[models.Entity], error)

// ListAll проходит все страницы, пока платформа сообщает hasNext.
func ListAll(ctx context.Context, pageSize int, fetch PageFunc) ([]models.Entity, error) {
	if pageSize <= 0 {
		pageSize = 1000
	}
	var all []models.Entity
	for page := 0; ; page++ {
		p, err := fetch(ctx, PageQuery{Page: page, PageSize: pageSize})
		if err != nil {
			return all, err
		}
		all = append(all, p.Data...)
		if !p.HasNext || len(p.Data) == 0 {
			return all, nil
		}
	}
}

// Lister: List, привязанный к виду сущности.
func Lister(api API, kind Kind) PageFunc {
	return func(ctx context.Context, q PageQuery) (models.Page[models.Entity], error) {
		return api.List(ctx, kind, q)
	}
}
