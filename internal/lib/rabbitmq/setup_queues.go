package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// NotificationsExchange exchange, через который идут уведомления пользователям.
const NotificationsExchange = "notifications"

// Очередь и ключ уведомлений о решениях модерации.
const (
	UserNotificationsQueue = "notification.user"
	UserNotificationsKey   = "user"
)

// QueueConfig описывает очередь и ключ маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// Topology exchange с привязанными к нему durable-очередями.
type Topology struct {
	Exchange string
	Kind     string
	Prefetch int
	Queues   []QueueConfig
}

// NotificationTopology топология, которую объявляет бот: direct exchange
// notifications и очередь пользовательских уведомлений.
func NotificationTopology() Topology {
	return Topology{
		Exchange: NotificationsExchange,
		Kind:     amqp.ExchangeDirect,
		Prefetch: 10,
		Queues: []QueueConfig{
			{QueueName: UserNotificationsQueue, RoutingKey: UserNotificationsKey},
		},
	}
}

// Declarer часть *amqp.Channel, нужная для объявления топологии.
type Declarer interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// Declare объявляет exchange и очереди. Повторный вызов идемпотентен.
func (t Topology) Declare(ch Declarer) error {
	const op = "rabbitmq.Topology.Declare"

	if t.Prefetch > 0 {
		if err := ch.Qos(t.Prefetch, 0, false); err != nil {
			return fmt.Errorf("%s: qos: %w", op, err)
		}
	}
	kind := t.Kind
	if kind == "" {
		kind = amqp.ExchangeDirect
	}
	if err := ch.ExchangeDeclare(t.Exchange, kind, true, false, false, false, nil); err != nil {
		return fmt.Errorf("%s: exchange %s: %w", op, t.Exchange, err)
	}
	for _, q := range t.Queues {
		if _, err := ch.QueueDeclare(q.QueueName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("%s: queue %s: %w", op, q.QueueName, err)
		}
		if err := ch.QueueBind(q.QueueName, q.RoutingKey, t.Exchange, false, nil); err != nil {
			return fmt.Errorf("%s: bind %s to %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}
	return nil
}
