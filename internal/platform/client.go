package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"tbmirror/internal/logs"
	"tbmirror/internal/models"
)

const authHeader = "X-Authorization"

// Options: параметры HTTP-клиента платформы.
type Options struct {
	BaseURL   string
	Timeout   time.Duration // на один запрос
	Retries   int
	RateLimit float64 // запросов в секунду на процесс, 0 = без ограничения
}

// Client: REST-клиент платформы. Учётные данные не глобальные:
// WithToken возвращает копию клиента, привязанную к одной сессии.
type Client struct {
	rc    *resty.Client
	token string
	log   *logrus.Entry
}

var _ API = (*Client)(nil)

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	log := logs.For("platform")

	rc := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		AddRetryCondition(retryable)

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	rc.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if limiter != nil {
			if err := limiter.Wait(r.Context()); err != nil {
				return err
			}
		}
		if r.Header.Get("X-Request-Id") == "" {
			r.SetHeader("X-Request-Id", uuid.NewString())
		}
		return nil
	})
	rc.OnAfterResponse(func(_ *resty.Client, r *resty.Response) error {
		log.Debugf("reqid=%s method=%s url=%s status=%d dur=%s",
			r.Request.Header.Get("X-Request-Id"), r.Request.Method, r.Request.URL, r.StatusCode(), r.Time())
		return nil
	})

	return &Client{rc: rc, log: log}
}

// retryable: повторяем только GET. POST мог дойти до платформы и уже создать сущность.
func retryable(r *resty.Response, err error) bool {
	if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
		return false
	}
	return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
}

// WithToken: клиент той же платформы с другой сессией.
func (c *Client) WithToken(token string) API {
	cp := *c
	cp.token = token
	return &cp
}

// Login выполняет вход по логину/паролю и возвращает клиент с полученной сессией.
func (c *Client) Login(ctx context.Context, username, password string) (API, error) {
	var pair models.JWTPair
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, body, &pair); err != nil {
		return nil, fmt.Errorf("login %s: %w", username, err)
	}
	return c.WithToken(pair.Token), nil
}

/* ───── общий вызов ───── */

func (c *Client) do(ctx context.Context, method, path string, query map[string]string, body, out any) error {
	req := c.rc.R().SetContext(ctx)
	if c.token != "" {
		req.SetHeader(authHeader, "Bearer "+c.token)
	}
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr := &APIError{}
		if uerr := json.Unmarshal(resp.Body(), apiErr); uerr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(resp.Body()))
			if apiErr.Message == "" {
				apiErr.Message = http.StatusText(resp.StatusCode())
			}
		}
		apiErr.Status = resp.StatusCode()
		return apiErr
	}
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func pageQuery(q PageQuery) map[string]string {
	m := map[string]string{
		"page":     strconv.Itoa(q.Page),
		"pageSize": strconv.Itoa(q.PageSize),
	}
	if q.TextSearch != "" {
		m["textSearch"] = q.TextSearch
	}
	return m
}

/* ───── сущности ───── */

func (c *Client) List(ctx context.Context, kind Kind, q PageQuery) (models.Page[models.Entity], error) {
	var page models.Page[models.Entity]
	p, ok := paths[kind]
	if !ok || p.list == "" {
		return page, fmt.Errorf("list %s: %w", kind, ErrUnknownKind)
	}
	err := c.do(ctx, http.MethodGet, p.list, pageQuery(q), nil, &page)
	return page, err
}

func (c *Client) Get(ctx context.Context, kind Kind, id string) (models.Entity, error) {
	p, ok := paths[kind]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", kind, ErrUnknownKind)
	}
	var e models.Entity
	if err := c.do(ctx, http.MethodGet, p.item+"/"+id, nil, nil, &e); err != nil {
		return nil, err
	}
	return e, nil
}

// Save создаёт сущность (без id) или обновляет существующую (с id).
func (c *Client) save(ctx context.Context, kind Kind, body models.Entity, query map[string]string) (models.Entity, error) {
	p, ok := paths[kind]
	if !ok {
		return nil, fmt.Errorf("save %s: %w", kind, ErrUnknownKind)
	}
	var e models.Entity
	if err := c.do(ctx, http.MethodPost, p.item, query, body, &e); err != nil {
		return nil, err
	}
	return e, nil
}

func (c *Client) Create(ctx context.Context, kind Kind, body models.Entity) (models.Entity, error) {
	if body.Has("id") {
		return nil, fmt.Errorf("create %s %q: body already has an id", kind, body.DisplayName())
	}
	return c.save(ctx, kind, body, nil)
}

func (c *Client) Update(ctx context.Context, kind Kind, body models.Entity) (models.Entity, error) {
	if !body.Has("id") {
		return nil, fmt.Errorf("update %s %q: body has no id", kind, body.DisplayName())
	}
	return c.save(ctx, kind, body, nil)
}

// CreateDevice создаёт устройство сразу с токеном доступа.
func (c *Client) CreateDevice(ctx context.Context, body models.Entity, accessToken string) (models.Entity, error) {
	var q map[string]string
	if accessToken != "" {
		q = map[string]string{"accessToken": accessToken}
	}
	return c.save(ctx, KindDevice, body, q)
}

func (c *Client) CustomerUsers(ctx context.Context, customerID string, q PageQuery) (models.Page[models.Entity], error) {
	var page models.Page[models.Entity]
	err := c.do(ctx, http.MethodGet, "/api/customer/"+customerID+"/users", pageQuery(q), nil, &page)
	return page, err
}

func (c *Client) TenantAdmins(ctx context.Context, tenantID string, q PageQuery) (models.Page[models.Entity], error) {
	var page models.Page[models.Entity]
	err := c.do(ctx, http.MethodGet, "/api/tenant/"+tenantID+"/users", pageQuery(q), nil, &page)
	return page, err
}

func (c *Client) WidgetTypes(ctx context.Context, bundleAlias string, system bool) ([]models.Entity, error) {
	var out []models.Entity
	q := map[string]string{"isSystem": strconv.FormatBool(system), "bundleAlias": bundleAlias}
	err := c.do(ctx, http.MethodGet, "/api/widgetTypes", q, nil, &out)
	return out, err
}

func (c *Client) RuleChainMetadata(ctx context.Context, ruleChainID string) (models.Entity, error) {
	var e models.Entity
	if err := c.do(ctx, http.MethodGet, "/api/ruleChain/"+ruleChainID+"/metadata", nil, nil, &e); err != nil {
		return nil, err
	}
	return e, nil
}

func (c *Client) SaveRuleChainMetadata(ctx context.Context, metadata models.Entity) (models.Entity, error) {
	var e models.Entity
	if err := c.do(ctx, http.MethodPost, "/api/ruleChain/metadata", nil, metadata, &e); err != nil {
		return nil, err
	}
	return e, nil
}

/* ───── устройства: атрибуты и учётные данные ───── */

func (c *Client) DeviceAttributes(ctx context.Context, deviceID, scope string) ([]models.Attribute, error) {
	var out []models.Attribute
	path := "/api/plugins/telemetry/DEVICE/" + deviceID + "/values/attributes/" + scope
	err := c.do(ctx, http.MethodGet, path, nil, nil, &out)
	return out, err
}

func (c *Client) DeviceAttributesByKeys(ctx context.Context, deviceID string, keys ...string) ([]models.Attribute, error) {
	var out []models.Attribute
	path := "/api/plugins/telemetry/DEVICE/" + deviceID + "/values/attributes"
	err := c.do(ctx, http.MethodGet, path, map[string]string{"keys": strings.Join(keys, ",")}, nil, &out)
	return out, err
}

func (c *Client) SaveDeviceAttributes(ctx context.Context, deviceID, scope string, values map[string]json.RawMessage) error {
	path := "/api/plugins/telemetry/DEVICE/" + deviceID + "/attributes/" + scope
	return c.do(ctx, http.MethodPost, path, nil, values, nil)
}

func (c *Client) DeviceCredentials(ctx context.Context, deviceID string) (*models.DeviceCredentials, error) {
	var cr models.DeviceCredentials
	if err := c.do(ctx, http.MethodGet, "/api/device/"+deviceID+"/credentials", nil, nil, &cr); err != nil {
		return nil, err
	}
	return &cr, nil
}

func (c *Client) SaveDeviceCredentials(ctx context.Context, cr *models.DeviceCredentials) (*models.DeviceCredentials, error) {
	var out models.DeviceCredentials
	if err := c.do(ctx, http.MethodPost, "/api/device/credentials", nil, cr, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

/* ───── пользователи и сессии ───── */

func (c *Client) CurrentUser(ctx context.Context) (models.Entity, error) {
	var e models.Entity
	if err := c.do(ctx, http.MethodGet, "/api/auth/user", nil, nil, &e); err != nil {
		return nil, err
	}
	return e, nil
}

func (c *Client) UserToken(ctx context.Context, userID string) (*models.JWTPair, error) {
	var pair models.JWTPair
	if err := c.do(ctx, http.MethodGet, "/api/user/"+userID+"/token", nil, nil, &pair); err != nil {
		return nil, err
	}
	return &pair, nil
}
