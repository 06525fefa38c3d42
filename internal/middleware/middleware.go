package middleware

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"fieldops/internal/apperr"
	"fieldops/internal/audit"
	"fieldops/internal/models"
)

type TokenParser interface {
	Parse(token string) (models.Actor, error)
}

type PermissionChecker interface {
	Allowed(role, key string) bool
}

type RequestObserver interface {
	ObserveRequest(route string, code int, d time.Duration)
}

type actorKey struct{}

// actorSlot lets handlers further in report the caller back to the log middleware.
type actorSlot struct {
	actor models.Actor
}

type slotKey struct{}

func WithActor(ctx context.Context, a models.Actor) context.Context {
	if slot, ok := ctx.Value(slotKey{}).(*actorSlot); ok {
		slot.actor = a
	}
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFrom(ctx context.Context) (models.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(models.Actor)
	return a, ok
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack hands the connection to the websocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.code = http.StatusSwitchingProtocols
	return h.Hijack()
}

func record(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w, code: http.StatusOK}
}

// LogMiddleware logs every request and sends an audit record for the listed methods.
func LogMiddleware(log *slog.Logger, auditor audit.Auditor, methods ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			slot := &actorSlot{}
			rec := record(w)
			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), slotKey{}, slot)))

			log.Info("http_request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.code,
				"actor", slot.actor.UserID,
				"duration", time.Since(start),
			)
			if slices.Contains(methods, r.Method) {
				auditor.Log(audit.AuditLog{
					Timestamp:  time.Now().UTC(),
					EntityType: "http",
					Actor:      slot.actor.UserID,
					Endpoint:   r.URL.Path,
					Request:    r.Method + " " + r.URL.String(),
					Message:    http.StatusText(rec.code),
				})
			}
		})
	}
}

// BearerAuthMiddleware resolves the caller from "Authorization: Bearer <jwt>"
// or, for websocket clients, the access_token query parameter.
func BearerAuthMiddleware(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.URL.Query().Get("access_token")
			if h := r.Header.Get("Authorization"); h != "" {
				scheme, value, ok := strings.Cut(h, " ")
				if !ok || !strings.EqualFold(scheme, "Bearer") {
					WriteError(w, apperr.Unauthenticated("expected a bearer token"))
					return
				}
				token = strings.TrimSpace(value)
			}
			if token == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="fieldops"`)
				WriteError(w, apperr.Unauthenticated("missing token"))
				return
			}
			actor, err := tokens.Parse(token)
			if err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// PermissionMiddleware admits the request when the caller's role holds key.
func PermissionMiddleware(authz PermissionChecker, key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFrom(r.Context())
			if !ok {
				WriteError(w, apperr.Unauthenticated("no caller"))
				return
			}
			if !authz.Allowed(actor.Role, key) {
				WriteError(w, apperr.PermissionDenied("role %s lacks %s", actor.Role, key))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func MetricsMiddleware(obs RequestObserver, route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := record(w)
			next.ServeHTTP(rec, r)
			obs.ObserveRequest(route, rec.code, time.Since(start))
		})
	}
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteError answers with the status and code of err's kind.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, apperr.HTTPStatus(err), errorBody{Error: err.Error(), Code: apperr.Kind(err)})
}

func WriteJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}
