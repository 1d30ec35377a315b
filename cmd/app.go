package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/teemow/freebusy/internal/calendar"
	"github.com/teemow/freebusy/internal/freebusy"
	"github.com/teemow/freebusy/internal/google"
	"github.com/teemow/freebusy/internal/instrumentation"
	"github.com/teemow/freebusy/internal/logging"
	"github.com/teemow/freebusy/internal/tokenstore"
)

// app holds what every command needs: configuration, logger, token store and
// authorizer.
type app struct {
	cfg        Config
	logger     *slog.Logger
	store      tokenstore.Store
	closeStore func() error
	auth       *google.Authorizer
}

func newApp(cmd *cobra.Command, logger *slog.Logger, opts ...google.Option) (*app, error) {
	cfg, err := loadConfig(settings)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = newCLILogger(cmd.ErrOrStderr(), cfg)
	}

	store, closeStore, err := openTokenStore(cfg)
	if err != nil {
		return nil, err
	}

	opts = append([]google.Option{google.WithOutput(cmd.OutOrStdout())}, opts...)
	auth, err := newAuthorizer(cfg, store, logger, opts...)
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		closeStore: closeStore,
		auth:       auth,
	}, nil
}

func (a *app) service(metrics *instrumentation.Metrics) *freebusy.Service {
	return freebusy.NewService(a.auth,
		freebusy.ClientFactory(calendar.WithMetrics(metrics)),
		freebusy.WithLogger(a.logger),
		freebusy.WithMetrics(metrics),
	)
}

func (a *app) Close() {
	if err := a.closeStore(); err != nil {
		a.logger.Warn("failed to close token store", logging.Err(err))
	}
}
