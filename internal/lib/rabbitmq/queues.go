package rabbitmq

// Exchange обменник, в который публикуются все уведомления.
const Exchange = "notifications"

// Ключи маршрутизации уведомлений.
const (
	RoutingRenewal      = "renewal"
	RoutingCancellation = "cancellation"
)

// QueueConfig связывает очередь с ключом маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// NotificationQueues возвращает очереди, которые читает сервис отправки писем.
func NotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notification." + RoutingRenewal, RoutingKey: RoutingRenewal},
		{QueueName: "notification." + RoutingCancellation, RoutingKey: RoutingCancellation},
	}
}
