package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"example.com/gym/internal/events"
	"example.com/gym/internal/observability"
)

// Publisher emits domain events. Delivery failures never fail the originating request.
type Publisher interface {
	Publish(ctx context.Context, eventType, adminID, key string, payload any) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, string, string, any) error { return nil }

// SettingsService owns the lifecycle of the per-admin settings record.
type SettingsService struct {
	repo      SettingsRepository
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// SettingsOption configures a SettingsService.
type SettingsOption func(*SettingsService)

// WithSettingsPublisher sets the publisher used for settings.updated events.
func WithSettingsPublisher(p Publisher) SettingsOption {
	return func(s *SettingsService) { s.publisher = p }
}

// WithSettingsLogger overrides the logger.
func WithSettingsLogger(l *slog.Logger) SettingsOption {
	return func(s *SettingsService) { s.logger = l }
}

// WithSettingsClock overrides the clock used for timestamps.
func WithSettingsClock(now func() time.Time) SettingsOption {
	return func(s *SettingsService) { s.now = now }
}

// NewSettingsService constructs a SettingsService.
func NewSettingsService(repo SettingsRepository, opts ...SettingsOption) *SettingsService {
	s := &SettingsService{
		repo:      repo,
		publisher: noopPublisher{},
		logger:    slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "settings")
	return s
}

// GetOrCreate returns the admin's settings, materializing defaults on first access.
func (s *SettingsService) GetOrCreate(ctx context.Context, adminID string) (Settings, error) {
	settings, created, err := s.repo.GetOrCreate(ctx, adminID, DefaultSettings(adminID, s.now()))
	if errors.Is(err, ErrConflict) {
		// Lost the first-access race: the winner's record exists now.
		existing, getErr := s.repo.Get(ctx, adminID)
		if getErr == nil && existing != nil {
			return *existing, nil
		}
		if getErr != nil {
			err = getErr
		}
	}
	if err != nil {
		s.logger.Error("settings fetch failed", "admin_id", adminID, "error", err)
		return Settings{}, fmt.Errorf("%w: %v", ErrSettingsFetch, err)
	}
	if created {
		observability.RecordSettingsCreated()
		s.logger.Info("default settings created", "admin_id", adminID)
	}
	return settings, nil
}

// ApplyUpdate merges patch into the admin's settings, creating them when absent.
func (s *SettingsService) ApplyUpdate(ctx context.Context, adminID string, patch SettingsPatch) (Settings, error) {
	if err := patch.Validate(); err != nil {
		return Settings{}, err
	}

	defaults := DefaultSettings(adminID, s.now())
	settings, err := s.repo.Upsert(ctx, adminID, patch, defaults)
	if errors.Is(err, ErrConflict) {
		settings, err = s.repo.Upsert(ctx, adminID, patch, defaults)
	}
	if err != nil {
		s.logger.Error("settings update failed", "admin_id", adminID, "error", err)
		return Settings{}, fmt.Errorf("%w: %v", ErrSettingsUpdate, err)
	}

	fields := patch.Fields()
	changed := make([]string, 0, len(fields))
	for name := range fields {
		changed = append(changed, name)
	}
	sort.Strings(changed)

	event := events.SettingsUpdated{AdminID: adminID, ChangedFields: changed, UpdatedAt: settings.UpdatedAt}
	if err := s.publisher.Publish(ctx, events.TypeSettingsUpdated, adminID, adminID, event); err != nil {
		s.logger.Warn("settings.updated publish failed", "admin_id", adminID, "error", err)
	}
	return settings, nil
}
