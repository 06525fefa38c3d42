package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldops/internal/apperr"
	"fieldops/internal/audit"
	"fieldops/internal/logger"
	"fieldops/internal/models"
)

type staticTokens map[string]models.Actor

func (s staticTokens) Parse(token string) (models.Actor, error) {
	a, ok := s[token]
	if !ok {
		return models.Actor{}, apperr.Unauthenticated("bad token")
	}
	return a, nil
}

type roleKeys map[string][]string

func (r roleKeys) Allowed(role, key string) bool {
	for _, k := range r[role] {
		if k == key {
			return true
		}
	}
	return false
}

type memAuditor struct {
	mu   sync.Mutex
	logs []audit.AuditLog
}

func (m *memAuditor) Log(l audit.AuditLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, l)
}

type observed struct {
	route string
	code  int
}

type obs struct{ got []observed }

func (o *obs) ObserveRequest(route string, code int, _ time.Duration) {
	o.got = append(o.got, observed{route, code})
}

var tokens = staticTokens{"t-d1": {UserID: "d1", Role: "delivery"}}

func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func decodeCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Code
}

func TestBearerAuth(t *testing.T) {
	var seen models.Actor
	h := BearerAuthMiddleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ActorFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		query  string
		code   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", "", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", "", http.StatusUnauthorized},
		{"header", "Bearer t-d1", "", http.StatusNoContent},
		{"query", "", "?access_token=t-d1", http.StatusNoContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/orders"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, tc.code, rr.Code)
			if tc.code == http.StatusUnauthorized {
				assert.Equal(t, "UNAUTHENTICATED", decodeCode(t, rr))
			}
		})
	}
	assert.Equal(t, "d1", seen.UserID)
}

func TestPermission(t *testing.T) {
	authz := roleKeys{"delivery": {"orders.deliver"}}
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	allowed := chain(ok, BearerAuthMiddleware(tokens), PermissionMiddleware(authz, "orders.deliver"))
	denied := chain(ok, BearerAuthMiddleware(tokens), PermissionMiddleware(authz, "orders.assign"))

	req := httptest.NewRequest(http.MethodPost, "/orders/o1/deliver", nil)
	req.Header.Set("Authorization", "Bearer t-d1")

	rr := httptest.NewRecorder()
	allowed.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	denied.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "PERMISSION_DENIED", decodeCode(t, rr))
}

func TestLogAndMetrics(t *testing.T) {
	aud := &memAuditor{}
	o := &obs{}
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, apperr.InvalidTransition("already delivered"))
	}),
		MetricsMiddleware(o, "POST /orders/{id}/deliver"),
		LogMiddleware(logger.Discard(), aud, http.MethodPost),
		BearerAuthMiddleware(tokens),
	)

	req := httptest.NewRequest(http.MethodPost, "/orders/o1/deliver", nil)
	req.Header.Set("Authorization", "Bearer t-d1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	require.Len(t, aud.logs, 1)
	assert.Equal(t, "d1", aud.logs[0].Actor)
	assert.Equal(t, "/orders/o1/deliver", aud.logs[0].Endpoint)
	assert.Equal(t, []observed{{"POST /orders/{id}/deliver", http.StatusConflict}}, o.got)

	req = httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer t-d1")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Len(t, aud.logs, 1, "GET is not audited")
}

func TestWriteError_Internal(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, errors.New("db down"))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "INTERNAL", decodeCode(t, rr))
}
