package panel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subscription-bot/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-bot/internal/models"
	"github.com/magabrotheeeer/subscription-bot/internal/services/moderation"
)

type MockService struct{ mock.Mock }

func (m *MockService) Panel(ctx context.Context, actorID string) (moderation.Panel, error) {
	args := m.Called(ctx, actorID)
	return args.Get(0).(moderation.Panel), args.Error(1)
}

func TestPanelHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		panel          moderation.Panel
		err            error
		expectedStatus int
		expectedBody   []string
	}{
		{
			name: "success",
			panel: moderation.Panel{
				Active: []*models.Account{{UserID: "1", Plan: "20 گیگابایت", UserCount: 4,
					Expiry: now.AddDate(0, 0, 15), Status: models.StatusActive}},
				Pending: []*models.Receipt{{ID: 3, UserID: "2", PlanID: "10gb", UserCount: 1, Price: 5}},
			},
			expectedStatus: http.StatusOK,
			expectedBody:   []string{`"remaining_days":15`, `"plan_id":"10gb"`},
		},
		{
			name:           "empty queue renders empty list",
			panel:          moderation.Panel{},
			expectedStatus: http.StatusOK,
			expectedBody:   []string{`"pending":[]`},
		},
		{
			name:           "not admin",
			err:            moderation.ErrUnauthorized,
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "storage error",
			err:            errors.New("db down"),
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   []string{`could not build admin panel`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			svc.On("Panel", mock.Anything, "999").Return(tt.panel, tt.err).Once()
			h := New(logger, svc)
			h.now = func() time.Time { return now }

			req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/panel", nil)
			req = req.WithContext(context.WithValue(req.Context(), middlewarectx.Actor, "999"))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			for _, part := range tt.expectedBody {
				assert.Contains(t, rr.Body.String(), part)
			}
			svc.AssertExpectations(t)
		})
	}
}
