package config

import (
	"log/slog"
	"sync"
)

// Session is the configuration loaded once and shared by everything in the
// process. Mutations apply in memory first and are then persisted; a failed
// save is logged and returned but the in-memory value stands.
//
// Writers are serialized from apply through save, so the store always ends
// up holding the value memory holds.
type Session struct {
	store  Store
	logger *slog.Logger

	writeMu sync.Mutex
	mu      sync.RWMutex
	cfg     Config
}

// NewSession loads the configuration from store.
func NewSession(store Store, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{store: store, logger: logger, cfg: store.Load()}
}

// Get returns a copy of the current configuration.
func (s *Session) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// Set replaces the configuration and persists it.
func (s *Session) Set(cfg Config) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	s.cfg = cfg.Clone()
	s.mu.Unlock()
	return s.persist(cfg)
}

// Update applies fn to a copy of the configuration, stores the result and
// persists it. A result that fails Validate is discarded and the error wraps
// ErrInvalid; nothing is stored or saved.
func (s *Session) Update(fn func(*Config)) (Config, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	next := s.cfg.Clone()
	fn(&next)
	if err := next.Validate(); err != nil {
		cur := s.cfg.Clone()
		s.mu.Unlock()
		return cur, err
	}
	s.cfg = next.Clone()
	s.mu.Unlock()
	return next, s.persist(next)
}

// Replace swaps in a configuration that is already persisted, e.g. one
// reloaded after the file changed on disk.
func (s *Session) Replace(cfg Config) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg.Clone()
}

func (s *Session) persist(cfg Config) error {
	if err := s.store.Save(cfg); err != nil {
		s.logger.Warn("config save failed", "err", err)
		return err
	}
	return nil
}
