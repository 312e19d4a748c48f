package logging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext_FallbackIsShared(t *testing.T) {
	ctx := context.Background()

	first := FromContext(ctx)
	second := FromContext(ctx)

	require.NotNil(t, first)
	assert.Same(t, first, second, "fallback logger is a shared instance")
}

func TestRequestLogger_AttachesLoggerToContext(t *testing.T) {
	logger := NewLogger(true)

	var seen *Logger
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.NotNil(t, seen)
	assert.NotSame(t, defaultLogger, seen, "handlers get the request-scoped logger, not the fallback")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
