package apiclient

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/NotCoffee418/telem_cli/pkg/pathing"
)

// TokenStore keeps the bearer token in a plain file readable only by the
// owner.
type TokenStore struct {
	path string
}

func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

func (s *TokenStore) Path() string {
	return s.path
}

// Load returns "" without error when no token has been saved yet.
func (s *TokenStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading token file %s: %w", s.path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *TokenStore) Save(token string) error {
	if err := pathing.EnsureParentDir(s.path, 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(s.path, []byte(token), 0o600); err != nil {
		return fmt.Errorf("writing token file %s: %w", s.path, err)
	}
	// WriteFile keeps the mode of an existing file
	if err := os.Chmod(s.path, 0o600); err != nil {
		return fmt.Errorf("restricting token file %s: %w", s.path, err)
	}
	return nil
}

func (s *TokenStore) Delete() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token file %s: %w", s.path, err)
	}
	return nil
}
