package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-bot/internal/lib/rabbitmq"
)

type SenderMock struct{ mock.Mock }

func (m *SenderMock) SendText(ctx context.Context, chatID, text string) error {
	return m.Called(ctx, chatID, text).Error(0)
}

type fakePublisher struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
}

func (f *fakePublisher) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange = exchange
	f.key = key
	f.msg = msg
	return f.err
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDirectNotifier(t *testing.T) {
	tests := []struct {
		name    string
		sendErr error
	}{
		{name: "delivered"},
		{name: "send failure is swallowed", sendErr: errors.New("bot was blocked by the user")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := new(SenderMock)
			s.On("SendText", mock.Anything, "42", "hello").Return(tt.sendErr).Once()

			n := NewDirect(s, newNoopLogger(), nil)
			assert.NotPanics(t, func() { n.Notify(context.Background(), "42", KindApproved, "hello") })
			s.AssertExpectations(t)
		})
	}
}

func TestQueueNotifier_Publishes(t *testing.T) {
	pub := &fakePublisher{}
	n := NewQueue(pub, newNoopLogger(), nil)

	n.Notify(context.Background(), "42", KindRejected, "rejected")

	assert.Equal(t, rabbitmq.NotificationsExchange, pub.exchange)
	assert.Equal(t, rabbitmq.UserNotificationsKey, pub.key)
	_, err := uuid.Parse(pub.msg.MessageId)
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(pub.msg.Body, &msg))
	assert.Equal(t, pub.msg.MessageId, msg.ID)
	assert.Equal(t, "42", msg.ChatID)
	assert.Equal(t, KindRejected, msg.Kind)
	assert.Equal(t, "rejected", msg.Text)
}

func TestQueueNotifier_PublishFailureSwallowed(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed")}
	n := NewQueue(pub, newNoopLogger(), nil)

	assert.NotPanics(t, func() { n.Notify(context.Background(), "1", KindApproved, "x") })
}

func TestHandler(t *testing.T) {
	body, err := json.Marshal(Message{ID: "id", ChatID: "7", Kind: KindApproved, Text: "ok"})
	require.NoError(t, err)

	t.Run("sends message", func(t *testing.T) {
		s := new(SenderMock)
		s.On("SendText", mock.Anything, "7", "ok").Return(nil).Once()

		require.NoError(t, Handler(s, newNoopLogger(), nil)(body))
		s.AssertExpectations(t)
	})

	t.Run("send failure is not requeued", func(t *testing.T) {
		s := new(SenderMock)
		s.On("SendText", mock.Anything, "7", "ok").Return(errors.New("forbidden")).Once()

		require.NoError(t, Handler(s, newNoopLogger(), nil)(body))
		s.AssertExpectations(t)
	})

	t.Run("malformed payload dropped", func(t *testing.T) {
		s := new(SenderMock)
		require.NoError(t, Handler(s, newNoopLogger(), nil)([]byte("{")))
		s.AssertNotCalled(t, "SendText", mock.Anything, mock.Anything, mock.Anything)
	})
}
