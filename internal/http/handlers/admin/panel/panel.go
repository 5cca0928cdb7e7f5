// Package panel отдаёт администратору активные подписки и очередь чеков.
package panel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-bot/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-bot/internal/http/response"
	"github.com/magabrotheeeer/subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-bot/internal/models"
	"github.com/magabrotheeeer/subscription-bot/internal/services/moderation"
)

// Service описывает получение сводки администратора.
type Service interface {
	Panel(ctx context.Context, actorID string) (moderation.Panel, error)
}

// Handler обработчик GET /api/v1/admin/panel.
type Handler struct {
	log     *slog.Logger
	service Service
	now     func() time.Time
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		now:     time.Now,
	}
}

type activeAccount struct {
	models.Account
	RemainingDays int `json:"remaining_days"`
}

// ServeHTTP godoc
// @Summary Панель администратора
// @Description Возвращает активные подписки с остатком дней и очередь ожидающих чеков.
// @Tags Admin
// @Produce  json
// @Success 200 {object} response.Response "Активные подписки и чеки"
// @Failure 401 {object} response.Response "Нет или неверный токен"
// @Failure 403 {object} response.Response "Токен не принадлежит администратору"
// @Failure 429 {object} response.Response "Слишком много запросов"
// @Failure 500 {object} response.Response "Внутренняя ошибка сервера"
// @Router /api/v1/admin/panel [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.panel"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	p, err := h.service.Panel(r.Context(), middlewarectx.ActorFromContext(r.Context()))
	if errors.Is(err, moderation.ErrUnauthorized) {
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, response.Error("forbidden"))
		return
	}
	if err != nil {
		log.Error("failed to build admin panel", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not build admin panel"))
		return
	}

	now := h.now()
	active := make([]activeAccount, 0, len(p.Active))
	for _, a := range p.Active {
		active = append(active, activeAccount{Account: *a, RemainingDays: a.RemainingDays(now)})
	}
	pending := p.Pending
	if pending == nil {
		pending = []*models.Receipt{}
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"active":  active,
		"pending": pending,
	}))
}
