// Package core собирает зависимости, общие для процессов движка:
// хранилище, кэш, брокер уведомлений, клиент панели и координатор.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/streadway/amqp"

	"github.com/Maksim200738-droid/rockvpn/internal/cache"
	"github.com/Maksim200738-droid/rockvpn/internal/config"
	"github.com/Maksim200738-droid/rockvpn/internal/lib/sl"
	"github.com/Maksim200738-droid/rockvpn/internal/migrations"
	"github.com/Maksim200738-droid/rockvpn/internal/models"
	"github.com/Maksim200738-droid/rockvpn/internal/panel"
	"github.com/Maksim200738-droid/rockvpn/internal/rabbitmq"
	lifecycle "github.com/Maksim200738-droid/rockvpn/internal/services/lifecycle"
	"github.com/Maksim200738-droid/rockvpn/internal/storage/repository"
)

const (
	dbReadyAttempts = 10
	dbReadyDelay    = 3 * time.Second
)

// Options какие зависимости поднимать.
type Options struct {
	// MigrationsPath каталог миграций. Пусто: миграции не применяются,
	// вместо этого ожидается готовая схема.
	MigrationsPath string
	// WithCache подключить Redis.
	WithCache bool
	// WithBroker подключить RabbitMQ и публиковать уведомления.
	WithBroker bool
}

// Core собранные зависимости. Закрываются через Close.
type Core struct {
	Storage     *repository.Storage
	Cache       *cache.Cache
	Conn        *amqp.Connection
	Channel     *amqp.Channel
	Gateway     *panel.Gateway
	Coordinator *lifecycle.Coordinator
	Tariffs     models.Catalog

	log *slog.Logger
}

// New подключает зависимости по конфигу. При ошибке уже открытые ресурсы закрываются.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger, opts Options) (*Core, error) {
	const op = "core.New"

	c := &Core{
		Tariffs: models.NewCatalog(cfg.Trial.Duration),
		log:     log,
	}

	db, err := repository.New(cfg.StorageConnectionString, c.Tariffs)
	if err != nil {
		return nil, fmt.Errorf("%s: connect storage: %w", op, err)
	}
	c.Storage = db

	if opts.MigrationsPath != "" {
		if err := migrations.Run(db.DB, opts.MigrationsPath); err != nil {
			c.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else if err := waitForDB(ctx, db); err != nil {
		c.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if opts.WithCache {
		c.Cache, err = cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("%s: cache not initialized: %w", op, err)
		}
	}

	if opts.WithBroker {
		c.Conn, err = rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("%s: connect RabbitMQ: %w", op, err)
		}
		c.Channel, err = rabbitmq.SetupChannel(c.Conn, rabbitmq.GetNotificationQueues())
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("%s: setup RabbitMQ channel: %w", op, err)
		}
	}

	c.Gateway, err = panel.New(cfg.Panel, cfg.Server, log)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Nil-указатели не должны попасть в интерфейсы координатора.
	var (
		lc  lifecycle.Cache
		pub lifecycle.Publisher
	)
	if c.Cache != nil {
		lc = c.Cache
	}
	if c.Channel != nil {
		pub = rabbitmq.NewPublisher(c.Channel, rabbitmq.TelegramRoutingKey)
	}

	c.Coordinator = lifecycle.NewCoordinator(db, c.Gateway, lc, pub, c.Tariffs, lifecycle.Options{
		DefaultInboundID: cfg.Panel.DefaultInboundID,
		CommissionRate:   decimal.NewFromFloat(cfg.Referral.CommissionRate),
		CacheTTL:         cfg.RedisConnection.TTL,
	}, log)

	return c, nil
}

// Close освобождает ресурсы в обратном порядке.
func (c *Core) Close() {
	if c.Channel != nil {
		if err := c.Channel.Close(); err != nil {
			c.log.Error("failed to close channel", sl.Err(err))
		}
	}
	if c.Conn != nil {
		if err := c.Conn.Close(); err != nil {
			c.log.Error("failed to close connection", sl.Err(err))
		}
	}
	if c.Cache != nil {
		if err := c.Cache.Close(); err != nil {
			c.log.Error("failed to close cache", sl.Err(err))
		}
	}
	if c.Storage != nil {
		if err := c.Storage.Close(); err != nil {
			c.log.Error("failed to close storage", sl.Err(err))
		}
	}
}

func waitForDB(ctx context.Context, db *repository.Storage) error {
	var err error
	for range dbReadyAttempts {
		if err = repository.CheckDatabaseReady(db); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(dbReadyDelay):
		}
	}
	return fmt.Errorf("database not ready after retries: %w", err)
}
