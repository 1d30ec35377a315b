package google

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"

	"github.com/teemow/freebusy/internal/instrumentation"
	"github.com/teemow/freebusy/internal/logging"
	"github.com/teemow/freebusy/internal/tokenstore"
)

// persistingTokenSource writes every token with a new access token back to
// the store. It sits behind oauth2.ReuseTokenSource, so it only runs when
// the cached token has expired.
type persistingTokenSource struct {
	ctx     context.Context
	base    oauth2.TokenSource
	userID  string
	store   tokenstore.Store
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	mu   sync.Mutex
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		s.metrics.RecordOAuthTokenRefresh(s.ctx, instrumentation.OAuthResultFailure)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if token.AccessToken == s.last {
		return token, nil
	}
	s.last = token.AccessToken
	s.metrics.RecordOAuthTokenRefresh(s.ctx, instrumentation.OAuthResultSuccess)

	if err := s.store.Save(s.ctx, s.userID, token); err != nil {
		s.logger.Warn("failed to persist refreshed token", logging.Err(err))
	} else {
		s.logger.Debug("persisted refreshed token", "token", logging.SanitizeToken(token.AccessToken))
	}
	return token, nil
}
