// Package decision принимает решение администратора по чекам пользователя через HTTP.
//
// Тело запроса: {"action":"approve","user_id":"123","plan_id":"20gb","user_count":4}
// или {"action":"reject","user_id":"123"}. Повторное решение возвращает outcome "noop".
package decision

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscription-bot/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-bot/internal/http/response"
	"github.com/magabrotheeeer/subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-bot/internal/services/moderation"
)

// Service описывает применение решения.
type Service interface {
	Decide(ctx context.Context, actorID string, d moderation.Decision) (moderation.Result, error)
}

// Handler обработчик POST /api/v1/admin/decisions.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Решение по чекам пользователя
// @Description Одобряет или отклоняет все ожидающие чеки пользователя. Повторное решение возвращает outcome "noop".
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param request body moderation.Decision true "Решение администратора"
// @Success 200 {object} response.Response "Outcome и активированная подписка"
// @Failure 400 {object} response.Response "Некорректный запрос"
// @Failure 401 {object} response.Response "Нет или неверный токен"
// @Failure 403 {object} response.Response "Токен не принадлежит администратору"
// @Failure 429 {object} response.Response "Слишком много запросов"
// @Failure 500 {object} response.Response "Решение не применено, можно повторить"
// @Router /api/v1/admin/decisions [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.decision"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req moderation.Decision
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode request"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		var validateErr validator.ValidationErrors
		if errors.As(err, &validateErr) {
			log.Error("invalid request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationError(validateErr))
			return
		}
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request"))
		return
	}

	res, err := h.service.Decide(r.Context(), middlewarectx.ActorFromContext(r.Context()), req)
	switch {
	case errors.Is(err, moderation.ErrUnauthorized):
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, response.Error("forbidden"))
		return
	case errors.Is(err, moderation.ErrInvalidDecision):
		log.Warn("decision rejected by validation", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid decision"))
		return
	case err != nil:
		log.Error("failed to apply decision", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("decision failed, retry"))
		return
	}

	log.Info("decision applied", sl.UserID(req.UserID), slog.String("outcome", string(res.Outcome)))
	data := map[string]any{"outcome": res.Outcome}
	if res.Account != nil {
		data["account"] = res.Account
	}
	render.JSON(w, r, response.StatusOKWithData(data))
}
