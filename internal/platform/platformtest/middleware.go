package platformtest

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"tbmirror/internal/logs"
	"tbmirror/internal/platform"
)

type reqIDKey struct{}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) { w.status = code; w.ResponseWriter.WriteHeader(code) }
func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// requestID принимает X-Request-Id клиента (или выдаёт свой) и возвращает его в ответе.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id != "" {
			s.mu.Lock()
			s.clientIDs[id] = true
			s.mu.Unlock()
		} else {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), reqIDKey{}, id)))
	})
}

func requestIDOf(r *http.Request) string {
	id, _ := r.Context().Value(reqIDKey{}).(string)
	return id
}

// recoverer превращает панику обработчика в ошибку платформы с кодом General.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logs.For("platformtest").Errorf("panic: %v reqid=%s uri=%s\n%s", rec, requestIDOf(r), r.RequestURI, debug.Stack())
				writeError(w, http.StatusInternalServerError, platform.CodeGeneral, fmt.Sprintf("panic: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(sw, r)
		logs.For("platformtest").Debugf("reqid=%s method=%s uri=%s status=%d dur=%s",
			requestIDOf(r), r.Method, r.RequestURI, sw.status, time.Since(start))
	})
}
