package platform

import (
	"errors"
	"fmt"
	"net/http"
)

// Коды ошибок платформы.
const (
	CodeGeneral          = 2
	CodeAuthentication   = 10
	CodeJWTExpired       = 11
	CodeBadRequest       = 31 // в т.ч. «сущность с таким именем уже существует»
	CodeItemNotFound     = 32
	DefaultDuplicateCode = CodeBadRequest
)

var (
	ErrUnauthorized = errors.New("platform: authentication required")
	ErrNotFound     = errors.New("platform: item not found")
	ErrUnknownKind  = errors.New("platform: unsupported entity kind")
)

// APIError: тело ошибки платформы {status, message, errorCode}.
type APIError struct {
	Status  int    `json:"status"`
	Code    int    `json:"errorCode"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform error %d (code %d): %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Code == CodeAuthentication || e.Code == CodeJWTExpired
	case ErrNotFound:
		return e.Status == http.StatusNotFound || e.Code == CodeItemNotFound
	}
	return false
}

// IsDuplicate: ошибка «уже существует» по настроенному коду.
func IsDuplicate(err error, code int) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == code
}
