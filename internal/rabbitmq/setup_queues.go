package rabbitmq

// ReconciliationExchange — обменник сообщений сверки выдачи грантов.
const ReconciliationExchange = "reconciliation"

// GrantRetryQueue — очередь повторной выдачи по оплаченным покупкам.
const GrantRetryQueue = "grants.retry"

// GrantRetryRoutingKey — ключ маршрутизации сообщений повторной выдачи.
const GrantRetryRoutingKey = "grant.retry"

// QueueConfig связывает очередь с ключом маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetReconciliationQueues возвращает очереди воркера сверки.
func GetReconciliationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: GrantRetryQueue, RoutingKey: GrantRetryRoutingKey},
	}
}
