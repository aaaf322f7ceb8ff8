package config

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// DefaultKey is the key the marketplace settings live under in a shared
// config file.
const DefaultKey = "plugins_marketplace"

// Store loads and persists the session configuration.
type Store interface {
	Load() Config
	Save(cfg Config) error
}

// FileStore keeps the configuration as one key of a JSON document that
// other host components may share.
type FileStore struct {
	path   string
	key    string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewFileStore creates a store for key inside the JSON file at path.
func NewFileStore(path, key string, logger *slog.Logger) *FileStore {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, key: key, logger: logger}
}

// Path returns the config file path.
func (s *FileStore) Path() string { return s.path }

// Load reads the stored blob and overlays it on Default. Any error yields
// the defaults.
func (s *FileStore) Load() Config {
	cfg, err := s.load()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("config load failed, using defaults", "path", s.path, "err", err)
		}
		return Default()
	}
	return cfg
}

func (s *FileStore) load() (Config, error) {
	raw, err := s.blob()
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if raw == nil {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s[%s]: %w", s.path, s.key, err)
	}
	return cfg, nil
}

// blob returns the raw JSON under the key, nil when the key is absent.
func (s *FileStore) blob() (json.RawMessage, error) {
	doc, err := s.readDoc()
	if err != nil {
		return nil, err
	}
	return doc[s.key], nil
}

func (s *FileStore) readDoc() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	doc := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return doc, nil
}

// Save replaces the key in the config file and writes the whole document
// back with four-space indentation. A missing file is treated as an empty
// document; an unreadable one is left untouched and reported.
func (s *FileStore) Save(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readDoc()
	if errors.Is(err, fs.ErrNotExist) {
		doc, err = map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	blob, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	doc[s.key] = blob

	out, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	if err := os.WriteFile(s.path, out, 0o644); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// Hash fingerprints the stored blob so unrelated edits to the shared file
// can be ignored.
func (s *FileStore) Hash() (string, error) {
	raw, err := s.blob()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	var compact bytes.Buffer
	if len(raw) > 0 {
		if err := json.Compact(&compact, raw); err != nil {
			return "", err
		}
	}
	sum := sha256.Sum256(compact.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

// MemoryStore keeps the configuration in memory.
type MemoryStore struct {
	mu    sync.Mutex
	cfg   *Config
	saves int
}

// NewMemoryStore creates a store preloaded with cfg, or empty when cfg is nil.
func NewMemoryStore(cfg *Config) *MemoryStore {
	s := &MemoryStore{}
	if cfg != nil {
		c := cfg.Clone()
		s.cfg = &c
	}
	return s
}

// Load implements Store.
func (s *MemoryStore) Load() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == nil {
		return Default()
	}
	return s.cfg.Clone()
}

// Save implements Store.
func (s *MemoryStore) Save(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	c := cfg.Clone()
	s.cfg = &c
	return nil
}

// Saves returns how many times Save was called.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
