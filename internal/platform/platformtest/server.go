// Package platformtest поднимает in-memory платформу для тестов, REST API поверх gorilla/mux
// в httptest.Server. Покрывает ровно те эндпоинты, которые использует platform.Client.
package platformtest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"tbmirror/internal/models"
	"tbmirror/internal/platform"
)

// NullTenantID: tenantId системных сущностей.
const NullTenantID = "13814000-1dd2-11b2-8080-808080808080"

type principal struct {
	authority string
	tenantID  string
	userID    string
}

type ctxKey struct{}

// Server: фейковая платформа.
type Server struct {
	*httptest.Server

	// DuplicateCode: код ошибки «уже существует».
	DuplicateCode int

	mu        sync.Mutex
	tokens    map[string]principal
	passwords map[string]string // email → пароль
	entities  map[platform.Kind]map[string]map[string]any
	creds     map[string]*models.DeviceCredentials
	attrs     map[string]map[string]map[string]models.Attribute
	metadata  map[string]map[string]any
	requests  map[string]int
	clientIDs map[string]bool
}

func New() *Server {
	s := &Server{
		DuplicateCode: platform.DefaultDuplicateCode,
		tokens:        map[string]principal{},
		passwords:     map[string]string{},
		entities:      map[platform.Kind]map[string]map[string]any{},
		creds:         map[string]*models.DeviceCredentials{},
		attrs:         map[string]map[string]map[string]models.Attribute{},
		metadata:      map[string]map[string]any{},
		requests:      map[string]int{},
		clientIDs:     map[string]bool{},
	}
	for _, k := range platform.Kinds() {
		s.entities[k] = map[string]map[string]any{}
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

/* ───── наполнение из тестов ───── */

// AddSysAdmin регистрирует системного администратора с готовым токеном.
func (s *Server) AddSysAdmin(email, token string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.putLocked(platform.KindUser, NullTenantID, map[string]any{"email": email, "authority": models.AuthoritySysAdmin})
	s.tokens[token] = principal{authority: models.AuthoritySysAdmin, tenantID: NullTenantID, userID: id}
	return id
}

func (s *Server) AddTenant(title string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putLocked(platform.KindTenant, "", map[string]any{"title": title, "region": "Global"})
}

// AddTenantAdmin регистрирует администратора арендатора; пароль для /api/auth/login равен password.
func (s *Server) AddTenantAdmin(tenantID, email, password, token string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.putLocked(platform.KindUser, tenantID, map[string]any{"email": email, "authority": models.AuthorityTenantAdmin, "firstName": "Admin"})
	if token != "" {
		s.tokens[token] = principal{authority: models.AuthorityTenantAdmin, tenantID: tenantID, userID: id}
	}
	s.passwords[email] = password
	return id
}

// AddCustomerUser: пользователь клиента.
func (s *Server) AddCustomerUser(tenantID, customerID, email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putLocked(platform.KindUser, tenantID, map[string]any{
		"email": email, "authority": "CUSTOMER_USER",
		"customerId": map[string]any{"entityType": string(platform.KindCustomer), "id": customerID},
	})
}

// Seed кладёт сущность арендатора (или системную при NullTenantID) и возвращает её id.
func (s *Server) Seed(kind platform.Kind, tenantID string, body map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.putLocked(kind, tenantID, body)
	if kind == platform.KindDevice {
		s.creds[id] = newCreds(id, uuid.NewString())
	}
	return id
}

func (s *Server) SetCredentials(deviceID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[deviceID] = newCreds(deviceID, token)
}

func (s *Server) SetAttributes(deviceID, scope string, values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		b, _ := json.Marshal(v)
		s.setAttrLocked(deviceID, scope, k, b)
	}
}

func (s *Server) SetRuleChainMetadata(ruleChainID string, md map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	md["ruleChainId"] = map[string]any{"entityType": string(platform.KindRuleChain), "id": ruleChainID}
	s.metadata[ruleChainID] = md
}

/* ───── чтение из тестов ───── */

// Entities: все сущности вида у арендатора, по имени.
func (s *Server) Entities(kind platform.Kind, tenantID string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []map[string]any
	for _, e := range s.sortedLocked(kind) {
		if tenantID == "" || tenantOf(e) == tenantID {
			out = append(out, clone(e))
		}
	}
	return out
}

func (s *Server) Entity(kind platform.Kind, id string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entities[kind][id]; ok {
		return clone(e)
	}
	return nil
}

func (s *Server) Credentials(deviceID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.creds[deviceID]; ok {
		return c.CredentialsID
	}
	return ""
}

// Attributes: значения области как map key → JSON.
func (s *Server) Attributes(deviceID, scope string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]string{}
	for k, a := range s.attrs[deviceID][scope] {
		out[k] = string(a.Value)
	}
	return out
}

func (s *Server) RuleChainMetadata(ruleChainID string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.metadata[ruleChainID])
}

// Requests: число запросов по шаблону маршрута "METHOD /path/{var}".
func (s *Server) Requests(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[route]
}

// ClientRequestIDs: сколько разных X-Request-Id прислали клиенты.
func (s *Server) ClientRequestIDs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clientIDs)
}

/* ───── маршруты ───── */

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestID, recoverer, accessLog, s.count)
	r.HandleFunc("/api/auth/login", s.login).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.auth)
	api.HandleFunc("/auth/user", s.currentUser).Methods(http.MethodGet)

	// конкретные пути раньше /{id}
	api.HandleFunc("/tenant/devices", s.list(platform.KindDevice)).Methods(http.MethodGet)
	api.HandleFunc("/tenant/dashboards", s.list(platform.KindDashboard)).Methods(http.MethodGet)
	api.HandleFunc("/tenant/{tenantId}/users", s.tenantAdmins).Methods(http.MethodGet)
	api.HandleFunc("/customer/{customerId}/users", s.customerUsers).Methods(http.MethodGet)
	api.HandleFunc("/customers", s.list(platform.KindCustomer)).Methods(http.MethodGet)
	api.HandleFunc("/ruleChains", s.list(platform.KindRuleChain)).Methods(http.MethodGet)
	api.HandleFunc("/widgetsBundles", s.list(platform.KindWidgetBundle)).Methods(http.MethodGet)
	api.HandleFunc("/tenants", s.list(platform.KindTenant)).Methods(http.MethodGet)
	api.HandleFunc("/widgetTypes", s.widgetTypes).Methods(http.MethodGet)

	api.HandleFunc("/device/credentials", s.saveCredentials).Methods(http.MethodPost)
	api.HandleFunc("/device/{id}/credentials", s.getCredentials).Methods(http.MethodGet)
	api.HandleFunc("/ruleChain/metadata", s.saveMetadata).Methods(http.MethodPost)
	api.HandleFunc("/ruleChain/{id}/metadata", s.getMetadata).Methods(http.MethodGet)
	api.HandleFunc("/user/{id}/token", s.userToken).Methods(http.MethodGet)

	api.HandleFunc("/plugins/telemetry/DEVICE/{id}/values/attributes/{scope}", s.getAttributes).Methods(http.MethodGet)
	api.HandleFunc("/plugins/telemetry/DEVICE/{id}/values/attributes", s.getAttributes).Methods(http.MethodGet)
	api.HandleFunc("/plugins/telemetry/DEVICE/{id}/attributes/{scope}", s.saveAttributes).Methods(http.MethodPost)

	for _, k := range platform.Kinds() {
		item := strings.TrimPrefix(platform.ItemPath(k), "/api")
		api.HandleFunc(item+"/{id}", s.get(k)).Methods(http.MethodGet)
		api.HandleFunc(item, s.save(k)).Methods(http.MethodPost)
	}
	return r
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if route := mux.CurrentRoute(r); route != nil {
			tpl, _ := route.GetPathTemplate()
			s.mu.Lock()
			s.requests[r.Method+" "+tpl]++
			s.mu.Unlock()
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := strings.TrimPrefix(r.Header.Get("X-Authorization"), "Bearer ")
		s.mu.Lock()
		p, ok := s.tokens[tok]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, platform.CodeAuthentication, "Authentication failed")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, p)))
	})
}

func who(r *http.Request) principal {
	p, _ := r.Context().Value(ctxKey{}).(principal)
	return p
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in struct{ Username, Password string }
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, platform.CodeBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if pw, ok := s.passwords[in.Username]; !ok || pw != in.Password {
		writeError(w, http.StatusUnauthorized, platform.CodeAuthentication, "Invalid username or password")
		return
	}
	for id, u := range s.entities[platform.KindUser] {
		if u["email"] == in.Username {
			tok := uuid.NewString()
			s.tokens[tok] = principal{authority: str(u["authority"]), tenantID: tenantOf(u), userID: id}
			writeJSON(w, http.StatusOK, models.JWTPair{Token: tok, RefreshToken: uuid.NewString()})
			return
		}
	}
	writeError(w, http.StatusUnauthorized, platform.CodeAuthentication, "Invalid username or password")
}

func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.entities[platform.KindUser][who(r).userID])
}

func (s *Server) userToken(w http.ResponseWriter, r *http.Request) {
	if who(r).authority != models.AuthoritySysAdmin {
		writeError(w, http.StatusForbidden, 20, "You don't have permission to perform this operation!")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := mux.Vars(r)["id"]
	u, ok := s.entities[platform.KindUser][id]
	if !ok {
		writeError(w, http.StatusNotFound, platform.CodeItemNotFound, "Requested item wasn't found!")
		return
	}
	tok := uuid.NewString()
	s.tokens[tok] = principal{authority: str(u["authority"]), tenantID: tenantOf(u), userID: id}
	writeJSON(w, http.StatusOK, models.JWTPair{Token: tok, RefreshToken: uuid.NewString()})
}

/* ───── списки ───── */

func (s *Server) list(kind platform.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := who(r)
		s.mu.Lock()
		defer s.mu.Unlock()
		var items []map[string]any
		for _, e := range s.sortedLocked(kind) {
			switch {
			case kind == platform.KindTenant:
				if p.authority != models.AuthoritySysAdmin {
					continue
				}
			case kind == platform.KindWidgetBundle:
				if t := tenantOf(e); t != p.tenantID && t != NullTenantID {
					continue
				}
			default:
				if tenantOf(e) != p.tenantID {
					continue
				}
			}
			info := clone(e)
			if kind == platform.KindDashboard {
				delete(info, "configuration")
			}
			items = append(items, info)
		}
		writePage(w, r, items)
	}
}

func (s *Server) tenantAdmins(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantId"]
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []map[string]any
	for _, u := range s.sortedLocked(platform.KindUser) {
		if tenantOf(u) == tenantID && u["authority"] == models.AuthorityTenantAdmin {
			items = append(items, clone(u))
		}
	}
	writePage(w, r, items)
}

func (s *Server) customerUsers(w http.ResponseWriter, r *http.Request) {
	customerID := mux.Vars(r)["customerId"]
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []map[string]any
	for _, u := range s.sortedLocked(platform.KindUser) {
		if idOf(u["customerId"]) == customerID {
			items = append(items, clone(u))
		}
	}
	writePage(w, r, items)
}

func (s *Server) widgetTypes(w http.ResponseWriter, r *http.Request) {
	p := who(r)
	alias := r.URL.Query().Get("bundleAlias")
	tenant := p.tenantID
	if r.URL.Query().Get("isSystem") == "true" {
		tenant = NullTenantID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	items := []map[string]any{}
	for _, t := range s.sortedLocked(platform.KindWidgetType) {
		if t["bundleAlias"] == alias && tenantOf(t) == tenant {
			items = append(items, clone(t))
		}
	}
	writeJSON(w, http.StatusOK, items)
}

/* ───── get / save ───── */

func (s *Server) get(kind platform.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		e, ok := s.entities[kind][mux.Vars(r)["id"]]
		if !ok || !s.visibleLocked(who(r), e) {
			writeError(w, http.StatusNotFound, platform.CodeItemNotFound, "Requested item wasn't found!")
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func (s *Server) save(kind platform.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, platform.CodeBadRequest, err.Error())
			return
		}
		p := who(r)
		s.mu.Lock()
		defer s.mu.Unlock()

		if id := idOf(body["id"]); id != "" {
			old, ok := s.entities[kind][id]
			if !ok || !s.visibleLocked(p, old) {
				writeError(w, http.StatusNotFound, platform.CodeItemNotFound, "Requested item wasn't found!")
				return
			}
			body["tenantId"] = old["tenantId"]
			body["createdTime"] = old["createdTime"]
			s.entities[kind][id] = body
			writeJSON(w, http.StatusOK, body)
			return
		}

		if kind == platform.KindDevice || kind == platform.KindCustomer {
			name := displayName(body)
			for _, e := range s.entities[kind] {
				if tenantOf(e) == p.tenantID && displayName(e) == name {
					writeError(w, http.StatusBadRequest, s.DuplicateCode, fmt.Sprintf("%s with such name already exists!", kind))
					return
				}
			}
		}
		id := s.putLocked(kind, p.tenantID, body)
		if kind == platform.KindDevice {
			tok := r.URL.Query().Get("accessToken")
			if tok == "" {
				tok = uuid.NewString()
			}
			s.creds[id] = newCreds(id, tok)
		}
		writeJSON(w, http.StatusOK, s.entities[kind][id])
	}
}

/* ───── учётные данные, атрибуты, метаданные ───── */

func (s *Server) getCredentials(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[mux.Vars(r)["id"]]
	if !ok {
		writeError(w, http.StatusNotFound, platform.CodeItemNotFound, "Requested item wasn't found!")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) saveCredentials(w http.ResponseWriter, r *http.Request) {
	var c models.DeviceCredentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil || c.DeviceID == nil {
		writeError(w, http.StatusBadRequest, platform.CodeBadRequest, "Incorrect deviceId")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[platform.KindDevice][c.DeviceID.ID]; !ok {
		writeError(w, http.StatusNotFound, platform.CodeItemNotFound, "Requested item wasn't found!")
		return
	}
	s.creds[c.DeviceID.ID] = &c
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) getAttributes(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var keys map[string]bool
	if k := r.URL.Query().Get("keys"); k != "" {
		keys = map[string]bool{}
		for _, key := range strings.Split(k, ",") {
			keys[key] = true
		}
	}
	scopes := models.Scopes
	if sc := vars["scope"]; sc != "" {
		scopes = []string{sc}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Attribute{}
	for _, sc := range scopes {
		byKey := s.attrs[vars["id"]][sc]
		names := make([]string, 0, len(byKey))
		for k := range byKey {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			if keys == nil || keys[k] {
				out = append(out, byKey[k])
			}
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) saveAttributes(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var in map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || len(in) == 0 {
		writeError(w, http.StatusBadRequest, platform.CodeBadRequest, "No attributes data found in request body!")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range in {
		s.setAttrLocked(vars["id"], vars["scope"], k, v)
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) getMetadata(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := mux.Vars(r)["id"]
	md, ok := s.metadata[id]
	if !ok {
		md = map[string]any{
			"ruleChainId": map[string]any{"entityType": string(platform.KindRuleChain), "id": id},
			"nodes":       []any{}, "connections": []any{},
		}
	}
	writeJSON(w, http.StatusOK, md)
}

func (s *Server) saveMetadata(w http.ResponseWriter, r *http.Request) {
	var md map[string]any
	if err := json.NewDecoder(r.Body).Decode(&md); err != nil {
		writeError(w, http.StatusBadRequest, platform.CodeBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := idOf(md["ruleChainId"])
	if _, ok := s.entities[platform.KindRuleChain][id]; !ok {
		writeError(w, http.StatusNotFound, platform.CodeItemNotFound, "Requested item wasn't found!")
		return
	}
	if nodes, ok := md["nodes"].([]any); ok {
		for _, n := range nodes {
			if node, ok := n.(map[string]any); ok && node["id"] == nil {
				node["id"] = map[string]any{"entityType": "RULE_NODE", "id": uuid.NewString()}
			}
		}
	}
	s.metadata[id] = md
	writeJSON(w, http.StatusOK, md)
}

/* ───── helpers ───── */

func (s *Server) putLocked(kind platform.Kind, tenantID string, body map[string]any) string {
	body = clone(body)
	id := uuid.NewString()
	body["id"] = map[string]any{"entityType": string(kind), "id": id}
	body["createdTime"] = time.Now().UnixMilli()
	if tenantID != "" {
		body["tenantId"] = map[string]any{"entityType": string(platform.KindTenant), "id": tenantID}
	}
	s.entities[kind][id] = body
	return id
}

func (s *Server) setAttrLocked(deviceID, scope, key string, value json.RawMessage) {
	if s.attrs[deviceID] == nil {
		s.attrs[deviceID] = map[string]map[string]models.Attribute{}
	}
	if s.attrs[deviceID][scope] == nil {
		s.attrs[deviceID][scope] = map[string]models.Attribute{}
	}
	s.attrs[deviceID][scope][key] = models.Attribute{Key: key, Value: value, LastUpdateTs: time.Now().UnixMilli()}
}

func (s *Server) visibleLocked(p principal, e map[string]any) bool {
	if p.authority == models.AuthoritySysAdmin {
		return true
	}
	t := tenantOf(e)
	return t == "" || t == p.tenantID || t == NullTenantID
}

func (s *Server) sortedLocked(kind platform.Kind) []map[string]any {
	out := make([]map[string]any, 0, len(s.entities[kind]))
	for _, e := range s.entities[kind] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		ni, nj := displayName(out[i]), displayName(out[j])
		if ni != nj {
			return ni < nj
		}
		return idOf(out[i]["id"]) < idOf(out[j]["id"])
	})
	return out
}

func writePage(w http.ResponseWriter, r *http.Request, items []map[string]any) {
	q := r.URL.Query()
	if ts := strings.ToLower(q.Get("textSearch")); ts != "" {
		filtered := items[:0]
		for _, it := range items {
			if strings.HasPrefix(strings.ToLower(displayName(it)), ts) {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("pageSize"))
	if size <= 0 {
		writeError(w, http.StatusBadRequest, platform.CodeBadRequest, "Page size should be greater than 0!")
		return
	}
	total := len(items)
	from := page * size
	if from > total {
		from = total
	}
	to := from + size
	if to > total {
		to = total
	}
	data := items[from:to]
	if data == nil {
		data = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":          data,
		"totalPages":    (total + size - 1) / size,
		"totalElements": total,
		"hasNext":       to < total,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status, code int, msg string) {
	writeJSON(w, status, map[string]any{
		"status": status, "message": msg, "errorCode": code, "timestamp": time.Now().UnixMilli(),
	})
}

func newCreds(deviceID, token string) *models.DeviceCredentials {
	return &models.DeviceCredentials{
		ID:              &models.EntityID{ID: uuid.NewString()},
		DeviceID:        &models.EntityID{EntityType: string(platform.KindDevice), ID: deviceID},
		CredentialsType: "ACCESS_TOKEN",
		CredentialsID:   token,
	}
}

func clone(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	b, _ := json.Marshal(m)
	var out map[string]any
	_ = json.Unmarshal(b, &out)
	return out
}

func idOf(v any) string {
	if m, ok := v.(map[string]any); ok {
		return str(m["id"])
	}
	return ""
}

func tenantOf(e map[string]any) string { return idOf(e["tenantId"]) }

func displayName(e map[string]any) string {
	for _, k := range []string{"name", "title", "email"} {
		if s := str(e[k]); s != "" {
			return s
		}
	}
	return ""
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
