// Package rabbitmq содержит вспомогательные функции для подключения к RabbitMQ,
// объявления обменников и очередей, публикации и потребления сообщений.
//
// Брокер несёт два потока: ленту изменений строк (обменник changes,
// маршрутизация по uid компании) и уведомления об истекающих пробных
// периодах (обменник notifications).
package rabbitmq

import (
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// Имена обменников брокера.
const (
	ChangesExchange       = "changes"
	NotificationsExchange = "notifications"
)

// QueueConfig описывает очередь и её ключ маршрутизации.
type QueueConfig struct {
	Exchange   string
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues возвращает очереди воркеров уведомлений.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{Exchange: NotificationsExchange, QueueName: "notifications.trial-expiring", RoutingKey: "trial.expiring"},
		// при необходимости дополнительные очереди для других воркеров
	}
}

// Connect подключается к RabbitMQ с повторными попытками.
func Connect(connection string, retries int, delay time.Duration) (*amqp.Connection, error) {
	const op = "rabbitmq.Connect"
	var conn *amqp.Connection
	var err error

	for range retries {
		conn, err = amqp.Dial(connection)
		if err == nil {
			return conn, nil
		}
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("%s: %w", op, err)
}

// SetupChannel открывает канал, объявляет обменники и привязывает очереди.
func SetupChannel(conn *amqp.Connection, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	for _, exchange := range []string{ChangesExchange, NotificationsExchange} {
		err = ch.ExchangeDeclare(
			exchange,
			"direct",
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			q.QueueName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to declare queue %s: %w", op, q.QueueName, err)
		}

		err = ch.QueueBind(
			q.QueueName,
			q.RoutingKey,
			q.Exchange,
			false,
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}

	return ch, nil
}
