package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Service verifies and registers user credentials backed by a JSON file of
// username to bcrypt-hash entries. Suitable for a single-process,
// low-assurance deployment.
type Service struct {
	mu   sync.Mutex
	path string
}

// NewService creates a credential store at the given file path. The file is
// created lazily on first registration.
func NewService(path string) *Service {
	return &Service{path: path}
}

// Verify reports whether the username exists and the password matches.
func (s *Service) Verify(username, password string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		log.Printf("[auth] load users failed: %v", err)
		return false
	}

	hash, ok := users[username]
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Register adds a new user. Returns false (with nil error) when the
// username is already taken.
func (s *Service) Register(username, password string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return false, err
	}

	if _, exists := users[username]; exists {
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	users[username] = string(hash)
	if err := s.save(users); err != nil {
		return false, err
	}
	return true, nil
}

// HasUsers reports whether any credential has been registered yet, used to
// gate first-user bootstrap.
func (s *Service) HasUsers() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return false
	}
	return len(users) > 0
}

func (s *Service) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}

	users := map[string]string{}
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("parse users file: %w", err)
	}
	return users, nil
}

// save rewrites the users file atomically via a sibling temp file.
func (s *Service) save(users map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
