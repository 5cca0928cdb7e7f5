// Package notify доставляет уведомления пользователям после решений администратора.
// Доставка не влияет на уже зафиксированное состояние: ошибки логируются и не возвращаются.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/subscription-bot/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-bot/internal/metrics"
)

// Виды уведомлений.
const (
	KindApproved = "approved"
	KindRejected = "rejected"
	KindReminder = "reminder"
)

const sendTimeout = 10 * time.Second

// Message уведомление пользователю.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Sender отправляет текст в чат пользователя.
type Sender interface {
	SendText(ctx context.Context, chatID, text string) error
}

// Notifier принимает уведомление к доставке по принципу fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, chatID, kind, text string)
}

func newMessage(chatID, kind, text string) Message {
	return Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Kind:      kind,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// DirectNotifier отправляет уведомление сразу, без брокера.
type DirectNotifier struct {
	sender  Sender
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewDirect создаёт DirectNotifier.
func NewDirect(sender Sender, log *slog.Logger, m *metrics.Metrics) *DirectNotifier {
	return &DirectNotifier{sender: sender, log: log, metrics: m}
}

// Notify отправляет сообщение. Ошибка отправки только логируется.
func (d *DirectNotifier) Notify(ctx context.Context, chatID, kind, text string) {
	deliver(ctx, d.sender, newMessage(chatID, kind, text), d.log, d.metrics)
}

// QueueNotifier публикует уведомления в RabbitMQ, отправкой занимается потребитель.
type QueueNotifier struct {
	ch      rabbitmq.Publisher
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewQueue создаёт QueueNotifier поверх канала RabbitMQ.
func NewQueue(ch rabbitmq.Publisher, log *slog.Logger, m *metrics.Metrics) *QueueNotifier {
	return &QueueNotifier{ch: ch, log: log, metrics: m}
}

// Notify публикует сообщение. Ошибка публикации только логируется.
func (q *QueueNotifier) Notify(_ context.Context, chatID, kind, text string) {
	msg := newMessage(chatID, kind, text)
	err := rabbitmq.PublishMessage(q.ch, rabbitmq.NotificationsExchange, rabbitmq.UserNotificationsKey, msg.ID, msg)
	if err != nil {
		q.log.Error("failed to publish notification",
			sl.UserID(chatID), slog.String("kind", kind), sl.Err(err))
		q.metrics.NotifyFailed(kind)
		return
	}
	q.log.Debug("notification published", slog.String("message_id", msg.ID), sl.UserID(chatID))
}

// Handler обработчик сообщений очереди уведомлений. Повреждённые сообщения и ошибки
// отправки не возвращаются в очередь: уведомление не переотправляется.
func Handler(sender Sender, log *slog.Logger, m *metrics.Metrics) func([]byte) error {
	return func(body []byte) error {
		var msg Message
		if err := json.Unmarshal(body, &msg); err != nil {
			log.Error("failed to decode notification, dropping", sl.Err(err))
			m.NotifyFailed("malformed")
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		deliver(ctx, sender, msg, log, m)
		return nil
	}
}

func deliver(ctx context.Context, sender Sender, msg Message, log *slog.Logger, m *metrics.Metrics) {
	if err := sender.SendText(ctx, msg.ChatID, msg.Text); err != nil {
		log.Warn("failed to deliver notification",
			slog.String("message_id", msg.ID), sl.UserID(msg.ChatID), slog.String("kind", msg.Kind), sl.Err(err))
		m.NotifyFailed(msg.Kind)
		return
	}
	log.Info("notification delivered", slog.String("message_id", msg.ID), sl.UserID(msg.ChatID))
}
