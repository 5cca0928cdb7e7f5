// Package rabbitmq содержит обвязку над streadway/amqp для очереди уведомлений
// бота: подключение к брокеру, объявление топологии, публикацию и потребление.
package rabbitmq

import (
	"context"
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

var dial = amqp.Dial

// Dial подключается к брокеру. Между неудачными попытками ждёт delay,
// всего делает не больше retries попыток. Отмена ctx прерывает ожидание.
func Dial(ctx context.Context, url string, retries int, delay time.Duration) (*amqp.Connection, error) {
	const op = "rabbitmq.Dial"

	var err error
	for attempt := 1; ; attempt++ {
		var conn *amqp.Connection
		conn, err = dial(url)
		if err == nil {
			return conn, nil
		}
		if attempt >= retries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("%s: after %d attempts: %w", op, max(retries, 1), err)
}

// Open открывает канал и объявляет на нём топологию уведомлений.
// При ошибке канал закрывается, соединение остаётся за вызывающим.
func Open(conn *amqp.Connection, t Topology) (*amqp.Channel, error) {
	const op = "rabbitmq.Open"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := t.Declare(ch); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ch, nil
}
