package models

import "encoding/json"

// Области атрибутов устройства.
const (
	ScopeServer = "SERVER_SCOPE"
	ScopeShared = "SHARED_SCOPE"
	ScopeClient = "CLIENT_SCOPE"
)

var Scopes = []string{ScopeServer, ScopeShared, ScopeClient}

// Attribute: атрибут в том виде, в каком его отдаёт платформа.
type Attribute struct {
	Key          string          `json:"key"`
	Value        json.RawMessage `json:"value"`
	LastUpdateTs int64           `json:"lastUpdateTs,omitempty"`
}

// KV: атрибут в файле бэкапа (lastUpdateTs отброшен).
type KV struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// DeviceAttributes: три независимые области.
type DeviceAttributes struct {
	Server []KV `json:"server"`
	Shared []KV `json:"shared"`
	Client []KV `json:"client"`
}

// DeviceFile: формат devices/<name>.json. Менять нельзя: его читают старые бэкапы.
type DeviceFile struct {
	AccessToken string           `json:"accessToken"`
	Attributes  DeviceAttributes `json:"attributes"`
}

// Scope возвращает атрибуты области в виде списка.
func (a DeviceAttributes) Scope(scope string) []KV {
	switch scope {
	case ScopeServer:
		return a.Server
	case ScopeShared:
		return a.Shared
	case ScopeClient:
		return a.Client
	}
	return nil
}

func (a *DeviceAttributes) SetScope(scope string, kv []KV) {
	if kv == nil {
		kv = []KV{}
	}
	switch scope {
	case ScopeServer:
		a.Server = kv
	case ScopeShared:
		a.Shared = kv
	case ScopeClient:
		a.Client = kv
	}
}

// StripTimestamps переводит ответ платформы в формат файла.
func StripTimestamps(in []Attribute) []KV {
	out := make([]KV, 0, len(in))
	for _, a := range in {
		out = append(out, KV{Key: a.Key, Value: a.Value})
	}
	return out
}

// AsMap: тело запроса сохранения атрибутов.
func AsMap(kv []KV) map[string]json.RawMessage {
	m := make(map[string]json.RawMessage, len(kv))
	for _, a := range kv {
		m[a.Key] = a.Value
	}
	return m
}

// DeviceCredentials: учётные данные устройства (ACCESS_TOKEN).
type DeviceCredentials struct {
	ID               *EntityID `json:"id,omitempty"`
	CreatedTime      int64     `json:"createdTime,omitempty"`
	DeviceID         *EntityID `json:"deviceId,omitempty"`
	CredentialsType  string    `json:"credentialsType"`
	CredentialsID    string    `json:"credentialsId"`
	CredentialsValue *string   `json:"credentialsValue"`
}
