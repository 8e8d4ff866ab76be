package rabbitmq

const (
	// NotificationsExchange direct-exchange для всех уведомлений.
	NotificationsExchange = "notifications"
	// TelegramRoutingKey ключ маршрутизации сообщений для доставки в Telegram.
	TelegramRoutingKey = "telegram"
	// TelegramQueue очередь отправителя Telegram-сообщений.
	TelegramQueue = "notifications.telegram"

	prefetchCount = 10
	maxInFlight   = 10
)

// QueueConfig описание очереди и её привязки к exchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues возвращает очереди, которые нужно объявить при старте.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: TelegramQueue, RoutingKey: TelegramRoutingKey},
	}
}
