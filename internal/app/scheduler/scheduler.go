// Package scheduler процесс периодического снятия истёкших подписок.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/Maksim200738-droid/rockvpn/internal/app/core"
	"github.com/Maksim200738-droid/rockvpn/internal/config"
	schedulerservice "github.com/Maksim200738-droid/rockvpn/internal/services/scheduler"
)

// App представляет приложение планировщика.
type App struct {
	schedulerService *schedulerservice.SchedulerService
	core             *core.Core
	logger           *slog.Logger
}

// New подключает зависимости. Схему базы применяет API, здесь она только ожидается.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	deps, err := core.New(ctx, cfg, logger, core.Options{
		WithCache:  true,
		WithBroker: true,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		schedulerService: schedulerservice.NewSchedulerService(deps.Coordinator, cfg.Sweeper.Interval, logger),
		core:             deps,
		logger:           logger,
	}, nil
}

// Run запускает обход по расписанию и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	defer a.core.Close()

	a.schedulerService.Run(ctx)

	a.logger.Info("shutting down scheduler service")
	return nil
}
