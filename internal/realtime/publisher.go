package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/review-hub/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/review-hub/internal/models"
)

// Publisher отправляет события изменения строк в обменник changes.
// Маршрутизация идёт по uid компании-владельца строки, так что каждое
// событие получает только её подписка.
type Publisher struct {
	ch *amqp.Channel
}

// NewPublisher создаёт издателя поверх готового канала.
func NewPublisher(ch *amqp.Channel) *Publisher {
	return &Publisher{ch: ch}
}

// PublishChange публикует событие изменения строки.
func (p *Publisher) PublishChange(_ context.Context, ev models.ChangeEvent) error {
	const op = "realtime.Publisher.PublishChange"
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	if err := rabbitmq.PublishMessage(p.ch, rabbitmq.ChangesExchange, ev.UserUID, ev); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
