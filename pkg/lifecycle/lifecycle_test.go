package lifecycle

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carverauto/feedsync/pkg/logger"
)

func TestRunHTTPServerShutsDownCleanly(t *testing.T) {
	srv := &http.Server{
		Addr:        "127.0.0.1:0",
		Handler:     http.NewServeMux(),
		ReadTimeout: time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		done <- RunHTTPServer(ctx, srv, logger.NewTestLogger())
	}()

	// Let the listener come up, then trigger shutdown.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
