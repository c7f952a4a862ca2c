package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/metorial/minidash/internal/cache"
	"github.com/metorial/minidash/internal/connections"
	"github.com/metorial/minidash/internal/glances"
)

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID returns the id assigned to the request carrying ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Handler is the front door. Requests get an id, an access log line and
// panic recovery, then CORS and the GET-only check before exact-path
// dispatch.
func (a *API) Handler() http.Handler {
	return a.withRequestID(a.withAccessLog(a.withRecovery(http.HandlerFunc(a.dispatch))))
}

func (a *API) dispatch(w http.ResponseWriter, r *http.Request) {
	applyCORS(w, r)

	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api")
	if !strings.HasPrefix(path, "/") {
		respondError(w, http.StatusNotFound, "Not found", "")
		return
	}

	if name, ok := strings.CutPrefix(path, "/glances/"); ok {
		a.proxyGlances(w, r, name)
		return
	}

	if handler, ok := a.routes[path]; ok {
		handler(w, r)
		return
	}

	respondError(w, http.StatusNotFound, "Not found", "")
}

// proxyGlances relays an allow-listed Glances plugin with its upstream
// content type.
func (a *API) proxyGlances(w http.ResponseWriter, r *http.Request, name string) {
	if !glances.Allowed(name) {
		respondError(w, http.StatusNotFound, "Unknown Glances endpoint", name)
		return
	}

	resp, err := cache.Fetch(r.Context(), a.cache, "glances:"+name, a.ttl.Glances.Duration,
		func(ctx context.Context) (*glances.Response, error) {
			return a.glances.Fetch(ctx, name)
		}, cache.AllowStaleOnError())
	if err != nil {
		a.logger.Warn("Glances request failed", zap.String("endpoint", name), zap.Error(err))
		respondError(w, http.StatusBadGateway, "Glances unavailable", err.Error())
		return
	}

	w.Header().Set("Content-Type", resp.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(resp.Body)
}

// applyCORS allows an origin only when it names the host the request was
// sent to or a loopback address. Other origins get no CORS headers.
func applyCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	w.Header().Add("Vary", "Origin")

	if originAllowed(origin, r.Host) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	}
}

func originAllowed(origin, requestHost string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Hostname() == "" {
		return false
	}
	hostname := u.Hostname()
	if connections.IsLoopback(hostname) {
		return true
	}

	host := requestHost
	if h, _, err := net.SplitHostPort(requestHost); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	return host != "" && strings.EqualFold(hostname, host)
}

func (a *API) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			a.logger.Error("Handler panic",
				zap.String("path", r.URL.Path),
				zap.String("request_id", RequestID(r.Context())),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()))
			respondError(w, http.StatusInternalServerError, "Internal server error", fmt.Sprint(rec))
		}()
		next.ServeHTTP(w, r)
	})
}

func (a *API) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (a *API) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", RequestID(r.Context())),
		}
		if rec.status >= http.StatusInternalServerError {
			a.logger.Warn("Request failed", fields...)
			return
		}
		a.logger.Debug("Request", fields...)
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(map[string]string{
			"error":  "Internal server error",
			"detail": err.Error(),
		})
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body)
}

func respondError(w http.ResponseWriter, status int, message, detail string) {
	payload := map[string]string{"error": message}
	if detail != "" {
		payload["detail"] = detail
	}
	respondJSON(w, status, payload)
}
