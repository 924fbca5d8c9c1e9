package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/careconnect-platform/internal/identity"
)

func TestRateLimiterPerClient(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		ok, _ := rl.Reserve("ip:10.0.0.1")
		assert.True(t, ok)
	}
	ok, wait := rl.Reserve("ip:10.0.0.1")
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))

	ok, _ = rl.Reserve("ip:10.0.0.2")
	assert.True(t, ok)

	now = now.Add(time.Second)
	ok, _ = rl.Reserve("ip:10.0.0.1")
	assert.True(t, ok)

	now = now.Add(limiterIdleTTL + time.Second)
	assert.Equal(t, 2, rl.Sweep())
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	called := 0
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/providers", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, 1, called)

	authed := req.WithContext(identity.WithSession(req.Context(), identity.Session{UserID: uuid.New(), Role: identity.RolePatient}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authed)
	assert.Equal(t, http.StatusOK, rec.Code)
}
