// Package services holds small application services shared by the HTTP
// handlers and the CLI.
package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/scrypster/companion/internal/config"
	"github.com/scrypster/companion/internal/storage"
	"github.com/scrypster/companion/pkg/types"
)

// MaxDisplayNameLength bounds the stored display name, in characters.
const MaxDisplayNameLength = 100

// ErrInvalidSettings is returned for settings that fail validation.
var ErrInvalidSettings = errors.New("invalid settings")

// SettingsService reads and persists the user settings of a Config.
type SettingsService struct {
	store  storage.SettingsStore
	logger *zap.Logger

	mu  sync.RWMutex
	cfg *config.Config
}

// NewSettingsService wraps cfg. Updates are written to store and applied to
// cfg in place.
func NewSettingsService(store storage.SettingsStore, cfg *config.Config, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{store: store, cfg: cfg, logger: logger}
}

// Get returns the current user settings.
func (s *SettingsService) Get() config.UserConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.User
}

// Update validates and persists user settings. An empty DefaultSort keeps
// the current order.
func (s *SettingsService) Update(ctx context.Context, user config.UserConfig) (config.UserConfig, error) {
	user.DisplayName = strings.TrimSpace(user.DisplayName)
	if utf8.RuneCountInString(user.DisplayName) > MaxDisplayNameLength {
		return config.UserConfig{}, ErrInvalidSettings
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if user.DefaultSort == "" {
		user.DefaultSort = s.cfg.User.DefaultSort
	}
	requested := types.PersonSort(strings.ToLower(strings.TrimSpace(string(user.DefaultSort))))
	if types.ParsePersonSort(string(requested)) != requested {
		return config.UserConfig{}, ErrInvalidSettings
	}
	user.DefaultSort = requested

	previous := s.cfg.User
	s.cfg.User = user
	if err := s.cfg.SaveConfig(ctx, s.store); err != nil {
		s.cfg.User = previous
		s.logger.Error("failed to save user settings", zap.Error(err))
		return config.UserConfig{}, err
	}

	s.logger.Info("user settings updated", zap.String("default_sort", string(user.DefaultSort)))
	return user, nil
}
