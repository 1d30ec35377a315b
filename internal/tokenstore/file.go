package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

// DefaultDir is the token directory used when none is configured, relative
// to the working directory.
const DefaultDir = "tokens"

// FileStore keeps each token as a JSON file named google-<user>.token.
type FileStore struct {
	Dir string
}

// NewFileStore returns a FileStore rooted at dir, or DefaultDir when dir is empty.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = DefaultDir
	}
	return &FileStore{Dir: dir}
}

// Path returns the token file for userID. The id is path-escaped so that it
// cannot leave Dir.
func (s *FileStore) Path(userID string) string {
	return filepath.Join(s.Dir, "google-"+url.PathEscape(userID)+".token")
}

func (s *FileStore) Load(_ context.Context, userID string) (*oauth2.Token, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path(userID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to decode token file: %w", err)
	}
	return &token, nil
}

// Save writes the token atomically through a temp file in the same directory.
func (s *FileStore) Save(_ context.Context, userID string, token *oauth2.Token) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	if token == nil {
		return errors.New("token is nil")
	}

	if err := os.MkdirAll(s.Dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, ".token-*")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set token file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.Path(userID)); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, userID string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}

	err := os.Remove(s.Path(userID))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete token file: %w", err)
	}
	return nil
}
