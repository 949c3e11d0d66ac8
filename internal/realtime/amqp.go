package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/review-hub/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/review-hub/internal/lib/sl"
	"github.com/magabrotheeeer/review-hub/internal/models"
)

// AMQPSubscriber подписка на обменник изменений поверх RabbitMQ. Каждая
// подписка получает собственную эксклюзивную автоудаляемую очередь,
// привязанную к обменнику changes по uid компании.
type AMQPSubscriber struct {
	conn *amqp.Connection
	log  *slog.Logger
}

// NewAMQPSubscriber создаёт подписчика поверх готового подключения.
func NewAMQPSubscriber(conn *amqp.Connection, log *slog.Logger) *AMQPSubscriber {
	return &AMQPSubscriber{conn: conn, log: log}
}

// Subscribe объявляет очередь с именем канала и начинает доставку
// событий. Очередь эксклюзивная и автоудаляемая: закрытие канала
// убирает её вместе с накопившимися сообщениями.
func (s *AMQPSubscriber) Subscribe(ctx context.Context, channelName, routingKey string) (<-chan models.ChangeEvent, func(), error) {
	const op = "realtime.AMQPSubscriber.Subscribe"

	ch, err := s.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := ch.ExchangeDeclare(rabbitmq.ChangesExchange, "direct", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := ch.QueueDeclare(channelName, false, true, true, false, nil); err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.QueueBind(channelName, routingKey, rabbitmq.ChangesExchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	deliveries, err := ch.Consume(channelName, "", true, true, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	events := make(chan models.ChangeEvent)
	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				var ev models.ChangeEvent
				if err := json.Unmarshal(d.Body, &ev); err != nil {
					s.log.Warn("malformed change event", sl.Err(err))
					continue
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	closer := func() {
		if err := ch.Close(); err != nil {
			s.log.Warn("failed to close amqp channel", sl.Err(err))
		}
	}
	return events, closer, nil
}
