package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"heeecker-lists-backend/pkg/config"
	"heeecker-lists-backend/pkg/utils"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func decodeError(t *testing.T, body io.Reader) *utils.APIError {
	t.Helper()
	var resp utils.APIResponse
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	require.NotNil(t, resp.Error)
	assert.False(t, resp.Success)
	return resp.Error
}

func TestRequireToken(t *testing.T) {
	var seen string
	h := RequireToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetTokenFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/space/x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", decodeError(t, rec.Body).Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/space/x?token=abc-_", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc-_", seen)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/space/x?token=%20abc%20", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, " abc ", seen, "token is passed on verbatim")
}

func TestContentTypeJSON(t *testing.T) {
	h := ContentTypeJSON(ok)

	tests := []struct {
		method, contentType string
		want                int
	}{
		{http.MethodPost, "application/json; charset=utf-8", http.StatusNoContent},
		{http.MethodPost, "text/plain", http.StatusBadRequest},
		{http.MethodPost, "", http.StatusBadRequest},
		{http.MethodGet, "", http.StatusNoContent},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, "/", nil)
		if tt.contentType != "" {
			req.Header.Set("Content-Type", tt.contentType)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, tt.want, rec.Code, "%s %q", tt.method, tt.contentType)
	}
}

func TestMaxBodySize(t *testing.T) {
	var readErr error
	h := MaxBodySize(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("0123456789")))

	var maxErr *http.MaxBytesError
	assert.ErrorAs(t, readErr, &maxErr)
}

func TestIPLimiter(t *testing.T) {
	l := NewIPLimiter(2)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	allowed, _ := l.Allow("1.1.1.1")
	assert.True(t, allowed)
	allowed, _ = l.Allow("1.1.1.1")
	assert.True(t, allowed)
	allowed, wait := l.Allow("1.1.1.1")
	assert.False(t, allowed)
	assert.InDelta(t, 30, wait.Seconds(), 0.01)

	allowed, _ = l.Allow("2.2.2.2")
	assert.True(t, allowed, "buckets are per IP")

	now = now.Add(30 * time.Second)
	allowed, _ = l.Allow("1.1.1.1")
	assert.True(t, allowed)

	now = now.Add(time.Hour)
	l.Allow("3.3.3.3")
	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.buckets, 1, "stale full buckets are swept")
}

func TestRateLimitByIP(t *testing.T) {
	h := RateLimitByIP(1)(ok)
	req := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, req().Code)
	rec := req()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMITED", decodeError(t, rec.Body).Code)

	unlimited := RateLimitByIP(0)(ok)
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		unlimited.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	cfg := &config.Config{Environment: "production"}
	h := Recovery(cfg, zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	apiErr := decodeError(t, rec.Body)
	assert.Empty(t, apiErr.Details)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "panic recovered", logs.All()[0].Message)
}

func TestLoggerOmitsQuery(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	h := Logger(zap.New(core))(ok)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/space/x?token=secret", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "/api/space/x", entry.ContextMap()["path"])
	assert.EqualValues(t, http.StatusNoContent, entry.ContextMap()["status"])
	for _, v := range entry.ContextMap() {
		if s, isString := v.(string); isString {
			assert.NotContains(t, s, "secret")
		}
	}
}

func TestRequestBaseURL(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/space", nil)
	r.Header.Set("X-Forwarded-Proto", "https")
	r.Header.Set("X-Forwarded-Host", "lists.example")

	var got string
	Normalize()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = RequestBaseURL(r)
	})).ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "https://lists.example", got)
}
