package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/devotee-admin/hierarchy/pkg/composables"
)

func TestRateLimit_KeysByInitiator(t *testing.T) {
	t.Parallel()

	h := RateLimit(RateLimitConfig{
		RequestsPerPeriod: 2,
		Period:            time.Minute,
		Store:             NewMemoryStore(),
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(initiator uuid.UUID) int {
		req := httptest.NewRequest(http.MethodGet, "/hierarchy/api/candidates", nil)
		req = req.WithContext(composables.WithInitiator(req.Context(), initiator))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	alice, bob := uuid.New(), uuid.New()
	require.Equal(t, http.StatusNoContent, send(alice))
	require.Equal(t, http.StatusNoContent, send(alice))
	require.Equal(t, http.StatusTooManyRequests, send(alice))
	require.Equal(t, http.StatusNoContent, send(bob))
}

func TestNewRedisStore_RejectsBadURL(t *testing.T) {
	_, err := NewRedisStore("not a url")
	require.Error(t, err)
}

func TestCors_Preflight(t *testing.T) {
	t.Parallel()

	h := Cors(CORSConfig{
		AllowedOrigins: []string{"http://admin.local"},
		Headers:        []string{"X-Initiator-ID"},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/hierarchy/api/appoint", nil)
	req.Header.Set("Origin", "http://admin.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "X-Initiator-ID")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, "http://admin.local", rec.Header().Get("Access-Control-Allow-Origin"))
	require.NotEqual(t, http.StatusTeapot, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/hierarchy/api/nodes/x", nil)
	req.Header.Set("Origin", "http://evil.local")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, http.StatusTeapot, rec.Code)
}
