package telemetry

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_Disabled(t *testing.T) {
	tel, shutdown, err := New(Config{})
	require.NoError(t, err)
	require.NotNil(t, tel.Meter)
	require.NotNil(t, tel.Tracer)
	require.Empty(t, tel.MetricsAddr)

	counter, err := tel.Meter.Int64Counter("ignored")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	require.NoError(t, shutdown(context.Background()))
}

func TestNew_ServesMetrics(t *testing.T) {
	tel, shutdown, err := New(Config{
		Enabled:     true,
		ServiceName: "xidledger-test",
		MetricsAddr: "127.0.0.1:0",
	})
	require.NoError(t, err)
	defer shutdown(context.Background())
	require.NotEmpty(t, tel.MetricsAddr)

	counter, err := tel.Meter.Int64Counter("test_requests")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	_, span := tel.Tracer.Start(context.Background(), "probe")
	require.True(t, span.SpanContext().IsValid())
	span.End()

	resp, err := http.Get("http://" + tel.MetricsAddr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "test_requests")
}

func TestNew_MetricsWithoutEndpoint(t *testing.T) {
	tel, shutdown, err := New(Config{Enabled: true, ServiceName: "xidledger-test"})
	require.NoError(t, err)
	require.Empty(t, tel.MetricsAddr)
	require.NoError(t, shutdown(context.Background()))
}
