package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gameshelf/api/internal/logging"
)

func TestServer_StartAndShutdown(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := NewServer("127.0.0.1:0", handler, time.Second, time.Second, logging.NewLogger(true))

	done := make(chan error, 1)
	go func() {
		done <- srv.Start()
	}()

	// Give the listener a moment, then shut down
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err, "a clean shutdown is not a startup failure")
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after shutdown")
	}
}
