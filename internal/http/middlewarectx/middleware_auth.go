// Package middlewarectx содержит HTTP middleware административного API.
//
// JWTMiddleware проверяет JWT в заголовке Authorization и пропускает только токен
// администратора. Идентификатор администратора кладётся в контекст запроса.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-bot/internal/http/response"
	"github.com/magabrotheeeer/subscription-bot/internal/lib/jwt"
	"github.com/magabrotheeeer/subscription-bot/internal/lib/sl"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// Actor ключ идентификатора администратора в контексте.
const Actor Key = "actor_id"

// TokenParser проверяет подпись токена и возвращает claims.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwt.CustomClaims, error)
}

// ActorFromContext возвращает идентификатор, положенный JWTMiddleware.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(Actor).(string)
	return actor
}

// JWTMiddleware возвращает middleware, который пропускает только токены с ролью admin,
// выпущенные для adminID.
func JWTMiddleware(parser TokenParser, adminID string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Warn("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			claims, err := parser.ParseToken(tokenStr)
			if err != nil {
				log.Warn("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}
			if claims.Role != jwt.RoleAdmin || claims.ActorID() != adminID {
				log.Warn("token is not an admin token", slog.String("actor_id", claims.ActorID()))
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("forbidden"))
				return
			}

			ctx := context.WithValue(r.Context(), Actor, claims.ActorID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
