package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/freebusy/internal/availability"
	"github.com/teemow/freebusy/internal/google"
	"github.com/teemow/freebusy/internal/instrumentation"
	"github.com/teemow/freebusy/internal/logging"
	"github.com/teemow/freebusy/internal/server"
)

const (
	defaultHTTPAddr   = "127.0.0.1:8080"
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 120 * time.Second
)

// ServeConfig holds the serve command's settings.
type ServeConfig struct {
	HTTPAddr       string
	MetricsEnabled bool
	MetricsAddr    string
	TimeZone       string
	WorkStart      string
	WorkEnd        string
}

func newServeCmd() *cobra.Command {
	var sc ServeConfig

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve free/busy and availability over HTTP",
		Long: `Start an HTTP server answering:

  GET /availability?id=u1,u2[&start&end&tz&work_start&work_end]
  GET /freebusy/{user}

The server never runs the browser consent flow. Users must be authorized
beforehand with "freebusy auth --user <id>"; others answer 404.

Metrics are served on a separate address when instrumentation is enabled
(INSTRUMENTATION_ENABLED=true, METRICS_EXPORTER=prometheus).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc.HTTPAddr = settings.GetString("http-addr")
			sc.MetricsEnabled = settings.GetBool("metrics-enabled")
			sc.MetricsAddr = settings.GetString("metrics-addr")
			sc.TimeZone = settings.GetString("tz")
			sc.WorkStart = settings.GetString("work-start")
			sc.WorkEnd = settings.GetString("work-end")
			return runServe(cmd, sc)
		},
	}

	def := availability.DefaultWorkingHours
	cmd.Flags().String("http-addr", defaultHTTPAddr, "HTTP API listen address. Can also use FREEBUSY_HTTP_ADDR")
	cmd.Flags().Bool("metrics-enabled", true, "Serve Prometheus metrics on a dedicated port. Can also use FREEBUSY_METRICS_ENABLED")
	cmd.Flags().String("metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use FREEBUSY_METRICS_ADDR")
	cmd.Flags().String("tz", server.DefaultTimeZone, "Default time zone for /availability")
	cmd.Flags().String("work-start", def.Start.String(), "Default start of working hours for /availability")
	cmd.Flags().String("work-end", def.End.String(), "Default end of working hours for /availability")

	return cmd
}

func runServe(cmd *cobra.Command, sc ServeConfig) error {
	shutdownCtx, cancel := commandContext(cmd)
	defer cancel()

	cfg, err := loadConfig(settings)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(cmd.ErrOrStderr(), logging.FormatJSON, cfg.Debug)
	slog.SetDefault(logger)

	if _, err := time.LoadLocation(sc.TimeZone); err != nil {
		return fmt.Errorf("unknown time zone %q: %w", sc.TimeZone, err)
	}
	hours, err := availability.ParseWorkingHours(sc.WorkStart, sc.WorkEnd)
	if err != nil {
		return err
	}

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Error("instrumentation shutdown failed", logging.Err(err))
		}
	}()
	metrics := provider.Metrics()

	a, err := newApp(cmd, logger, google.NonInteractive(), google.WithMetrics(metrics))
	if err != nil {
		return err
	}
	defer a.Close()

	var metricsServer *server.MetricsServer
	if sc.MetricsEnabled && provider.Enabled() && instrConfig.MetricsExporter == instrumentation.ExporterPrometheus {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    sc.MetricsAddr,
			InstrumentationProvider: provider,
			Logger:                  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			metricsErr <- metricsServer.StartWithReadySignal(metricsReady)
		}()

		select {
		case <-metricsReady:
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server startup timed out")
		}
	}

	health := server.NewHealthChecker()
	api := server.NewAPI(a.service(metrics),
		server.WithAPILogger(logger),
		server.WithAPIMetrics(metrics),
		server.WithDefaultTimeZone(sc.TimeZone),
		server.WithDefaultWorkingHours(hours),
	)

	httpServer := &http.Server{
		Addr:              sc.HTTPAddr,
		Handler:           server.NewRouter(api, health),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server",
			"addr", sc.HTTPAddr,
			"token_store", a.cfg.TokenStore,
			"timezone", sc.TimeZone,
			"working_hours", hours.String())
		if err := listenAndServe(httpServer, health); err != nil {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received")
	}

	health.MarkShuttingDown()

	ctx, cancelShutdown := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancelShutdown()

	var errs []error
	if err := httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// listenAndServe binds srv.Addr and serves until srv is shut down. health
// reports ready only while the listener is bound.
func listenAndServe(srv *http.Server, health *server.HealthChecker) error {
	health.SetReady(false)

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
	}
	health.SetReady(true)

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		health.SetReady(false)
		return err
	}
	return nil
}
