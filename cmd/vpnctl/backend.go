package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/Maksim200738-droid/rockvpn/internal/app/core"
	"github.com/Maksim200738-droid/rockvpn/internal/config"
	"github.com/Maksim200738-droid/rockvpn/internal/models"
	lifecycle "github.com/Maksim200738-droid/rockvpn/internal/services/lifecycle"
	schedulerservice "github.com/Maksim200738-droid/rockvpn/internal/services/scheduler"
)

// Lifecycle операции координатора, доступные из командной строки.
type Lifecycle interface {
	Approve(ctx context.Context, transactionID string) (*lifecycle.Activation, error)
	Reject(ctx context.Context, transactionID string) (*models.Transaction, error)
	Revoke(ctx context.Context, subscriptionID int64, reason string) error
	Stats(ctx context.Context) (*models.Stats, error)
	Tariffs() models.Catalog
}

// Sweeper один проход снятия истёкших подписок.
type Sweeper interface {
	SweepOnce(ctx context.Context) schedulerservice.SweepResult
}

type backend struct {
	lifecycle Lifecycle
	sweeper   Sweeper
	close     func()
}

// connectFunc поднимает зависимости для команд, которым нужны база и панель.
type connectFunc func(ctx context.Context, cfg *config.Config, log *slog.Logger) (*backend, error)

// connectBackend подключается к базе, панели и брокеру. Кэш не нужен:
// команды выполняются разово.
func connectBackend(ctx context.Context, cfg *config.Config, log *slog.Logger) (*backend, error) {
	deps, err := core.New(ctx, cfg, log, core.Options{WithBroker: true})
	if err != nil {
		return nil, err
	}
	return &backend{
		lifecycle: deps.Coordinator,
		sweeper:   schedulerservice.NewSchedulerService(deps.Coordinator, cfg.Sweeper.Interval, log),
		close:     deps.Close,
	}, nil
}

func newLogger(verbose bool, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
