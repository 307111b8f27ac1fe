// Package storage persists portfolio definitions.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fernet/fernet-go"
	"github.com/rs/zerolog"

	"alpha_portfolios/internal/models"
)

// Store loads and saves the full set of portfolio definitions.
type Store interface {
	Load() []models.PortfolioDefinition
	Save(defs []models.PortfolioDefinition) error
}

const encryptedPrefix = "fernet:"

// FileStore keeps definitions in a JSON file. When an encryption key is
// configured, credential values are stored as fernet tokens.
type FileStore struct {
	path string
	key  *fernet.Key
	log  zerolog.Logger
	mu   sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a store at path. encryptionKey is an optional
// base64 fernet key.
func NewFileStore(path, encryptionKey string, log zerolog.Logger) (*FileStore, error) {
	s := &FileStore{path: path, log: log.With().Str("component", "storage").Logger()}
	if encryptionKey != "" {
		k, err := fernet.DecodeKey(encryptionKey)
		if err != nil {
			return nil, fmt.Errorf("decode encryption key: %w", err)
		}
		s.key = k
	}
	return s, nil
}

func (s *FileStore) Path() string { return s.path }

// Load reads the definitions. A missing, unreadable or malformed file
// yields an empty set; records whose credentials cannot be decrypted are
// skipped.
func (s *FileStore) Load() []models.PortfolioDefinition {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Error().Err(err).Str("path", s.path).Msg("failed to read portfolios file")
		}
		return []models.PortfolioDefinition{}
	}

	var defs []models.PortfolioDefinition
	if err := json.Unmarshal(b, &defs); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("malformed portfolios file, starting empty")
		return []models.PortfolioDefinition{}
	}

	out := make([]models.PortfolioDefinition, 0, len(defs))
	for _, d := range defs {
		apiKey, err1 := s.decrypt(d.APIKey)
		secret, err2 := s.decrypt(d.SecretKey)
		if err := errors.Join(err1, err2); err != nil {
			s.log.Warn().Err(err).Str("portfolio", d.Name).Msg("skipping portfolio with unreadable credentials")
			continue
		}
		d.APIKey, d.SecretKey = apiKey, secret
		out = append(out, d)
	}
	return out
}

// Save rewrites the whole file atomically.
//  1. Write to a temporary file in the same directory.
//  2. Sync it to disk.
//  3. Rename it over the destination.
func (s *FileStore) Save(defs []models.PortfolioDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.PortfolioDefinition, len(defs))
	for i, d := range defs {
		var err error
		if d.APIKey, err = s.encrypt(d.APIKey); err != nil {
			return err
		}
		if d.SecretKey, err = s.encrypt(d.SecretKey); err != nil {
			return err
		}
		out[i] = d
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal portfolios: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create portfolios dir: %w", err)
		}
	}
	tmpFile := s.path + ".tmp"
	f, err := os.OpenFile(tmpFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create temp portfolios file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(b); err != nil {
		return fmt.Errorf("write temp portfolios file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync temp portfolios file: %w", err)
	}
	// Close before renaming (required on Windows).
	f.Close()

	if err := os.Rename(tmpFile, s.path); err != nil {
		return fmt.Errorf("replace portfolios file: %w", err)
	}
	return nil
}

func (s *FileStore) encrypt(v string) (string, error) {
	if s.key == nil || v == "" {
		return v, nil
	}
	tok, err := fernet.EncryptAndSign([]byte(v), s.key)
	if err != nil {
		return "", fmt.Errorf("encrypt credential: %w", err)
	}
	return encryptedPrefix + string(tok), nil
}

func (s *FileStore) decrypt(v string) (string, error) {
	if !strings.HasPrefix(v, encryptedPrefix) {
		return v, nil
	}
	if s.key == nil {
		return "", errors.New("credential is encrypted but no encryption key is configured")
	}
	msg := fernet.VerifyAndDecrypt([]byte(strings.TrimPrefix(v, encryptedPrefix)), 0, []*fernet.Key{s.key})
	if msg == nil {
		return "", errors.New("credential token could not be decrypted")
	}
	return string(msg), nil
}
