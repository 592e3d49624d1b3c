package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"example.com/gym/internal/config"
	"example.com/gym/internal/domain"
	"example.com/gym/internal/logger"
	"example.com/gym/internal/persistence"
)

var errAdminRequired = errors.New("--admin is required")

// Commands annotated with annotationStore=storeNone run without a store connection.
const (
	annotationStore = "store"
	storeNone       = "none"
)

// environment holds what every subcommand needs once configuration is loaded.
type environment struct {
	adminID string

	cfg        config.Config
	log        *slog.Logger
	store      *persistence.Store
	settings   *domain.SettingsService
	attendance *domain.AttendanceService
}

func (e *environment) open(ctx context.Context, withStore bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	e.cfg = cfg
	e.log = logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr})
	if !withStore {
		return nil
	}

	store, err := persistence.Open(ctx, cfg)
	if err != nil {
		return err
	}
	e.store = store
	e.settings = domain.NewSettingsService(store, domain.WithSettingsLogger(e.log))
	e.attendance = domain.NewAttendanceService(store, store, e.settings,
		domain.WithLogger(e.log),
		domain.WithLocation(cfg.Location()),
	)
	return nil
}

func (e *environment) close(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	return e.store.Close(ctx)
}

func (e *environment) admin() (string, error) {
	id := strings.TrimSpace(e.adminID)
	if id == "" {
		return "", errAdminRequired
	}
	return id, nil
}
