package rabbitmq

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/credit-ledger/internal/services/issuer"
)

// PublishMessage публикует сообщение в RabbitMQ.
func PublishMessage(ch *amqp.Channel, exchange string, routingkey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = ch.Publish(
		exchange,
		routingkey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GrantRetryPublisher отправляет неудавшиеся выдачи в очередь сверки.
// Реализует issuer.RetryQueue.
type GrantRetryPublisher struct {
	ch *amqp.Channel
}

// NewGrantRetryPublisher создает публикатора очереди сверки.
func NewGrantRetryPublisher(ch *amqp.Channel) *GrantRetryPublisher {
	return &GrantRetryPublisher{ch: ch}
}

// PublishGrantRetry публикует запрос выдачи для повторной обработки.
func (p *GrantRetryPublisher) PublishGrantRetry(req issuer.PurchaseRequest) error {
	return PublishMessage(p.ch, ReconciliationExchange, GrantRetryRoutingKey, req)
}
