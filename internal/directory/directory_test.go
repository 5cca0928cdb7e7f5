package directory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-bot/internal/models"
	"github.com/magabrotheeeer/subscription-bot/internal/storage"
)

type SourceMock struct{ mock.Mock }

func (m *SourceMock) Identity(ctx context.Context, userID string) (models.Identity, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.Identity), args.Error(1)
}

type AccountsMock struct{ mock.Mock }

func (m *AccountsMock) GetAccount(ctx context.Context, userID string) (*models.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestChain_Resolve(t *testing.T) {
	live := models.Identity{FullName: "Live", Username: "live"}
	stored := models.Identity{FullName: "Stored", Username: "stored"}

	tests := []struct {
		name      string
		liveErr   error
		storedErr error
		want      models.Identity
	}{
		{name: "live answers", want: live},
		{name: "fallback to stored", liveErr: errors.New("chat not found"), want: stored},
		{
			name:      "placeholders",
			liveErr:   errors.New("timeout"),
			storedErr: ErrLookupFailed,
			want:      models.Identity{FullName: UnknownName, Username: UnknownUsername},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := new(SourceMock)
			s := new(SourceMock)
			l.On("Identity", mock.Anything, "5").Return(live, tt.liveErr)
			s.On("Identity", mock.Anything, "5").Return(stored, tt.storedErr)

			got := NewChain(newNoopLogger(), l, s).Resolve(context.Background(), "5")
			assert.Equal(t, tt.want, got)
			if tt.liveErr == nil {
				s.AssertNotCalled(t, "Identity", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestStored_Identity(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		a := new(AccountsMock)
		a.On("GetAccount", mock.Anything, "1").
			Return(&models.Account{UserID: "1", FullName: "Ali", Username: "ali"}, nil)

		id, err := NewStored(a).Identity(context.Background(), "1")
		require.NoError(t, err)
		assert.Equal(t, models.Identity{FullName: "Ali", Username: "ali"}, id)
	})

	t.Run("not found", func(t *testing.T) {
		a := new(AccountsMock)
		a.On("GetAccount", mock.Anything, "1").
			Return(nil, fmt.Errorf("storage.GetAccount: %w", storage.ErrNotFound))

		_, err := NewStored(a).Identity(context.Background(), "1")
		require.ErrorIs(t, err, ErrLookupFailed)
	})

	t.Run("storage error", func(t *testing.T) {
		a := new(AccountsMock)
		a.On("GetAccount", mock.Anything, "1").Return(nil, errors.New("conn refused"))

		_, err := NewStored(a).Identity(context.Background(), "1")
		require.ErrorIs(t, err, ErrLookupFailed)
	})
}
