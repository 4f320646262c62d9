package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/maltedev/spa-slots/internal/storage"
)

const DefaultEmptyStateText = "Aktuell sind keine freien Termine vorhanden."

// Settings tune the signage and list front ends.
type Settings struct {
	SignageImageWidth       int    `json:"signageImageWidth"`
	SignageRotationInterval int    `json:"signageRotationInterval"` // seconds
	SignageRefreshInterval  int    `json:"signageRefreshInterval"`  // minutes
	EmptyStateText          string `json:"emptyStateText"`
}

func Defaults() Settings {
	return Settings{
		SignageImageWidth:       140,
		SignageRotationInterval: 8,
		SignageRefreshInterval:  5,
		EmptyStateText:          DefaultEmptyStateText,
	}
}

// Update is a partial change. Nil fields are left alone.
type Update struct {
	SignageImageWidth       *int    `json:"signageImageWidth,omitempty"`
	SignageRotationInterval *int    `json:"signageRotationInterval,omitempty"`
	SignageRefreshInterval  *int    `json:"signageRefreshInterval,omitempty"`
	EmptyStateText          *string `json:"emptyStateText,omitempty"`
}

var ErrInvalid = errors.New("invalid settings")

func (u Update) validate() error {
	positive := map[string]*int{
		"signageImageWidth":       u.SignageImageWidth,
		"signageRotationInterval": u.SignageRotationInterval,
		"signageRefreshInterval":  u.SignageRefreshInterval,
	}
	for name, v := range positive {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalid, name)
		}
	}
	return nil
}

type Store struct {
	mu       sync.RWMutex
	current  Settings
	filename string
	logger   *slog.Logger
}

// NewStore loads settings from filename. A missing file yields the defaults;
// an unreadable one is logged and also yields the defaults.
func NewStore(filename string, logger *slog.Logger) *Store {
	s := &Store{
		current:  Defaults(),
		filename: filename,
		logger:   logger.With("component", "settings"),
	}

	if filename == "" {
		return s
	}

	var loaded Settings
	if _, err := storage.ReadJSON(filename, &loaded); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to load settings, using defaults", "path", filename, "error", err)
		}
		return s
	}
	s.current = merge(Defaults(), loaded)
	return s
}

func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) Update(u Update) (Settings, error) {
	if err := u.validate(); err != nil {
		return Settings{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current
	if u.SignageImageWidth != nil {
		next.SignageImageWidth = *u.SignageImageWidth
	}
	if u.SignageRotationInterval != nil {
		next.SignageRotationInterval = *u.SignageRotationInterval
	}
	if u.SignageRefreshInterval != nil {
		next.SignageRefreshInterval = *u.SignageRefreshInterval
	}
	if u.EmptyStateText != nil {
		next.EmptyStateText = *u.EmptyStateText
	}

	if err := s.persist(next); err != nil {
		return Settings{}, err
	}
	s.current = next
	s.logger.Info("settings updated", "settings", next)
	return next, nil
}

func (s *Store) Reset() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	def := Defaults()
	if err := s.persist(def); err != nil {
		return Settings{}, err
	}
	s.current = def
	s.logger.Info("settings reset to defaults")
	return def, nil
}

func (s *Store) persist(v Settings) error {
	if s.filename == "" {
		return nil
	}
	_, err := storage.WriteJSON(s.filename, v)
	return err
}

// merge fills zero or invalid fields in loaded from def.
func merge(def, loaded Settings) Settings {
	if loaded.SignageImageWidth > 0 {
		def.SignageImageWidth = loaded.SignageImageWidth
	}
	if loaded.SignageRotationInterval > 0 {
		def.SignageRotationInterval = loaded.SignageRotationInterval
	}
	if loaded.SignageRefreshInterval > 0 {
		def.SignageRefreshInterval = loaded.SignageRefreshInterval
	}
	if loaded.EmptyStateText != "" {
		def.EmptyStateText = loaded.EmptyStateText
	}
	return def
}
