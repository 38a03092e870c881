package health_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/health"
)

type healthyDeps struct{}

func (healthyDeps) PingDB(context.Context, time.Duration) error    { return nil }
func (healthyDeps) PingRedis(context.Context, time.Duration) error { return nil }

func TestReadyReportsDrainingDuringShutdown(t *testing.T) {
	t.Cleanup(func() { health.SetReady(true) })
	handler := health.Handler{Checker: healthyDeps{}}
	ready := func() int {
		rr := httptest.NewRecorder()
		handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		return rr.Code
	}

	require.Equal(t, http.StatusOK, ready())

	health.SetReady(false)
	require.Equal(t, http.StatusServiceUnavailable, ready())

	health.SetReady(true)
	require.Equal(t, http.StatusOK, ready())
}
