package tokenstore

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/oauth2"
)

var (
	// ErrNotFound is returned when no token is stored for a user.
	ErrNotFound = errors.New("token not found")

	// ErrInvalidUserID is returned for an empty user id.
	ErrInvalidUserID = errors.New("invalid user id")
)

// Store persists one OAuth token per user id.
type Store interface {
	Load(ctx context.Context, userID string) (*oauth2.Token, error)
	Save(ctx context.Context, userID string, token *oauth2.Token) error
	Delete(ctx context.Context, userID string) error
}

func validateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidUserID
	}
	return nil
}
