// Package sender процесс доставки уведомлений из очереди в Telegram.
package sender

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/streadway/amqp"

	"github.com/Maksim200738-droid/rockvpn/internal/config"
	"github.com/Maksim200738-droid/rockvpn/internal/lib/sl"
	"github.com/Maksim200738-droid/rockvpn/internal/rabbitmq"
	senderservice "github.com/Maksim200738-droid/rockvpn/internal/services/sender"
)

type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.SenderService
	logger        *slog.Logger
}

func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.sender.New"

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("%s: telegram bot: %w", op, err)
	}
	logger.Info("authorized in telegram", slog.String("bot", bot.Self.UserName))

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: connect RabbitMQ: %w", op, err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		if cerr := conn.Close(); cerr != nil {
			logger.Error("failed to close connection", sl.Err(cerr))
		}
		return nil, fmt.Errorf("%s: setup RabbitMQ channel: %w", op, err)
	}

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderservice.NewSenderService(bot, cfg.Telegram.AdminIDs, logger),
		logger:        logger,
	}, nil
}

// Run потребляет очередь уведомлений до отмены ctx и дожидается активных обработчиков.
func (a *App) Run(ctx context.Context) error {
	const op = "app.sender.Run"

	done, err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.TelegramQueue, a.senderService.HandleNotification, a.logger)
	if err != nil {
		a.close()
		return fmt.Errorf("%s: %w", op, err)
	}
	a.logger.Info("notification sender started", slog.String("queue", rabbitmq.TelegramQueue))

	<-ctx.Done()
	<-done

	a.logger.Info("shutting down notification sender")
	a.close()
	return nil
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
}
