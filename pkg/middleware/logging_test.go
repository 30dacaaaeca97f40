package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/devotee-admin/hierarchy/pkg/composables"
	"github.com/devotee-admin/hierarchy/pkg/httpapi"
)

func testOptions() LoggerOptions {
	return LoggerOptions{
		RequestIDHeader: "X-Request-ID",
		InitiatorHeader: "X-Initiator-ID",
		RealIPHeader:    "X-Real-IP",
	}
}

func TestWithLogger_BindsRequestContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.InfoLevel)

	admin := uuid.New()
	var gotRequestID string
	var gotInitiator uuid.UUID
	h := WithLogger(logger, testOptions())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequestID, _ = composables.UseRequestID(r.Context())
		gotInitiator = composables.UseInitiator(r.Context())
		require.NotNil(t, composables.UseLogger(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/hierarchy/api/nodes/x", nil)
	req.Header.Set("X-Request-ID", "req-42")
	req.Header.Set("X-Initiator-ID", admin.String())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "req-42", gotRequestID)
	require.Equal(t, admin, gotInitiator)
	require.Equal(t, "req-42", rec.Header().Get("X-Request-Id"))
	require.Contains(t, buf.String(), "request completed")
}

func TestWithLogger_GeneratesRequestID(t *testing.T) {
	t.Parallel()

	h := WithLogger(logrus.New(), testOptions())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	_, err := uuid.Parse(rec.Header().Get("X-Request-Id"))
	require.NoError(t, err)
}

func TestWithLogger_RejectsBadInitiator(t *testing.T) {
	t.Parallel()

	called := false
	h := WithLogger(logrus.New(), testOptions())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Initiator-ID", "root")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.False(t, called)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWithLogger_RecoversPanics(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)

	h := WithLogger(logger, testOptions())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-p")
	rec := httptest.NewRecorder()
	require.NotPanics(t, func() { h.ServeHTTP(rec, req) })

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var env httpapi.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, httpapi.CodeInternal, env.Code)
	require.Equal(t, "req-p", env.Meta["request_id"])
	require.Contains(t, buf.String(), "panic recovered")
}
