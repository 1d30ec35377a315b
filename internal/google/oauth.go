package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/teemow/freebusy/internal/instrumentation"
	"github.com/teemow/freebusy/internal/logging"
	"github.com/teemow/freebusy/internal/tokenstore"
)

// ErrNotAuthorized is returned in non-interactive mode when a user has no
// usable stored credential.
var ErrNotAuthorized = errors.New("user has not authorized calendar access")

// Authorizer hands out token sources for users, running the loopback consent
// flow when no usable token is stored.
type Authorizer struct {
	config      *oauth2.Config
	store       tokenstore.Store
	receiver    CodeReceiver
	openBrowser func(url string) error
	interactive bool
	out         io.Writer
	logger      *slog.Logger
	metrics     *instrumentation.Metrics
}

const logService = "oauth"

// Option configures an Authorizer.
type Option func(*Authorizer)

// WithReceiver replaces the loopback receiver on DefaultCallbackPort.
func WithReceiver(r CodeReceiver) Option {
	return func(a *Authorizer) { a.receiver = r }
}

// WithBrowser sets the function used to open the consent URL. nil disables it.
func WithBrowser(open func(url string) error) Option {
	return func(a *Authorizer) { a.openBrowser = open }
}

// WithOutput sets where the consent URL is printed.
func WithOutput(w io.Writer) Option {
	return func(a *Authorizer) { a.out = w }
}

// WithLogger sets the logger. Records carry service=oauth.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authorizer) { a.logger = logger }
}

// WithMetrics records authorization and token refresh outcomes on m.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(a *Authorizer) { a.metrics = m }
}

// NonInteractive makes the Authorizer fail with ErrNotAuthorized instead of
// prompting. Servers use this.
func NonInteractive() Option {
	return func(a *Authorizer) { a.interactive = false }
}

// NewAuthorizer returns an interactive Authorizer for config that persists
// tokens in store.
func NewAuthorizer(config *oauth2.Config, store tokenstore.Store, opts ...Option) *Authorizer {
	a := &Authorizer{
		config:      config,
		store:       store,
		receiver:    NewLocalServerReceiver(DefaultCallbackPort),
		openBrowser: OpenBrowser,
		interactive: true,
		out:         os.Stdout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logging.WithService(a.logger, logService)
	return a
}

// TokenSource returns a token source for userID. A stored token is reused
// when it carries a refresh token or has not expired; otherwise the consent
// flow runs and its token is stored. Refreshed tokens are written back.
func (a *Authorizer) TokenSource(ctx context.Context, userID string) (oauth2.TokenSource, error) {
	logger := logging.WithOperation(logging.WithUser(a.logger, userID), "acquire_credential")

	token, err := a.store.Load(ctx, userID)
	switch {
	case err == nil && usable(token):
		logger.Debug("reusing stored credential")
		a.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultReused)

	case err == nil || errors.Is(err, tokenstore.ErrNotFound):
		if !a.interactive {
			a.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
			return nil, ErrNotAuthorized
		}

		token, err = a.authorize(ctx, logger)
		if err != nil {
			a.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
			logger.Warn("authorization failed", logging.Err(err))
			return nil, err
		}
		if err := a.store.Save(ctx, userID, token); err != nil {
			return nil, fmt.Errorf("failed to store credential: %w", err)
		}
		a.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)
		logger.Info("stored new credential", "token", logging.SanitizeToken(token.AccessToken))

	default:
		return nil, fmt.Errorf("failed to load stored credential: %w", err)
	}

	return oauth2.ReuseTokenSource(token, &persistingTokenSource{
		ctx:     ctx,
		base:    a.config.TokenSource(ctx, token),
		userID:  userID,
		last:    token.AccessToken,
		store:   a.store,
		logger:  logger,
		metrics: a.metrics,
	}), nil
}

// Authorize runs the consent flow for userID even when a token is stored,
// replacing it.
func (a *Authorizer) Authorize(ctx context.Context, userID string) error {
	logger := logging.WithOperation(logging.WithUser(a.logger, userID), "authorize")

	token, err := a.authorize(ctx, logger)
	if err != nil {
		a.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		return err
	}
	if err := a.store.Save(ctx, userID, token); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	a.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)
	logger.Info("stored new credential", "token", logging.SanitizeToken(token.AccessToken))
	return nil
}

// Forget removes the stored credential for userID.
func (a *Authorizer) Forget(ctx context.Context, userID string) error {
	return a.store.Delete(ctx, userID)
}

func usable(token *oauth2.Token) bool {
	return token != nil && (token.RefreshToken != "" || token.Valid())
}

func (a *Authorizer) authorize(ctx context.Context, logger *slog.Logger) (*oauth2.Token, error) {
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	config := *a.config

	code, err := a.receiver.Receive(ctx, state, func(redirectURL string) error {
		config.RedirectURL = redirectURL
		authURL := config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))

		fmt.Fprintf(a.out, "Open the following link in your browser to authorize calendar access:\n%s\n", authURL)
		if a.openBrowser != nil {
			if err := a.openBrowser(authURL); err != nil {
				logger.Debug("could not open browser", logging.Err(err))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive authorization code: %w", err)
	}

	start := time.Now()
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceOAuth, instrumentation.OperationTokenExchange)
	token, err := config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	instrumentation.EndSpan(span, err)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	a.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceOAuth, instrumentation.OperationTokenExchange, status, time.Since(start))

	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return token, nil
}
