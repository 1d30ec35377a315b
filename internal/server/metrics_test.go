package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/freebusy/internal/instrumentation"
)

func TestNewMetricsServer(t *testing.T) {
	tests := []struct {
		name        string
		config      func(t *testing.T) MetricsServerConfig
		wantAddr    string
		errContains string
	}{
		{
			name: "valid config",
			config: func(t *testing.T) MetricsServerConfig {
				return MetricsServerConfig{Addr: ":9091", InstrumentationProvider: createTestProvider(t)}
			},
			wantAddr: ":9091",
		},
		{
			name: "default addr",
			config: func(t *testing.T) MetricsServerConfig {
				return MetricsServerConfig{InstrumentationProvider: createTestProvider(t)}
			},
			wantAddr: DefaultMetricsAddr,
		},
		{
			name: "nil provider",
			config: func(*testing.T) MetricsServerConfig {
				return MetricsServerConfig{Addr: ":9090"}
			},
			errContains: "instrumentation provider is required",
		},
		{
			name: "disabled provider",
			config: func(t *testing.T) MetricsServerConfig {
				return MetricsServerConfig{Addr: ":9090", InstrumentationProvider: createDisabledProvider(t)}
			},
			errContains: "instrumentation provider is not enabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, err := NewMetricsServer(tt.config(t))
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAddr, server.Addr())
		})
	}
}

func TestMetricsServer_StartAndShutdown(t *testing.T) {
	server, err := NewMetricsServer(MetricsServerConfig{
		Addr:                    "127.0.0.1:0",
		InstrumentationProvider: createTestProvider(t),
		Logger:                  quietLogger,
	})
	require.NoError(t, err)

	ready := make(chan struct{})
	serverErr := make(chan error, 1)
	go func() { serverErr <- server.StartWithReadySignal(ready) }()

	select {
	case <-ready:
	case err := <-serverErr:
		t.Fatalf("metrics server failed to start: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server startup timed out")
	}

	for _, path := range []string{"/healthz", "/metrics"} {
		resp, err := http.Get("http://" + server.Addr() + path)
		require.NoError(t, err)
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))

	select {
	case err := <-serverErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}

func TestMetricsServer_ShutdownWithoutStart(t *testing.T) {
	server, err := NewMetricsServer(MetricsServerConfig{InstrumentationProvider: createTestProvider(t)})
	require.NoError(t, err)

	assert.NoError(t, server.Shutdown(context.Background()))
}

func TestMetricsServer_ListenError(t *testing.T) {
	server, err := NewMetricsServer(MetricsServerConfig{
		Addr:                    "256.0.0.1:0",
		InstrumentationProvider: createTestProvider(t),
		Logger:                  quietLogger,
	})
	require.NoError(t, err)

	assert.Error(t, server.StartWithReadySignal(make(chan struct{})))
}

func createTestProvider(t *testing.T) *instrumentation.Provider {
	t.Helper()
	ctx := context.Background()
	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
		ServiceName:     "freebusy-test",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: instrumentation.ExporterPrometheus,
		TracingExporter: instrumentation.ExporterNone,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })
	return provider
}

func createDisabledProvider(t *testing.T) *instrumentation.Provider {
	t.Helper()
	provider, err := instrumentation.NewProvider(context.Background(), instrumentation.Config{
		ServiceName: "freebusy-test",
		Enabled:     false,
	})
	require.NoError(t, err)
	return provider
}
