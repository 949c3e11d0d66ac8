package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/review-hub/internal/http/response"
	"github.com/magabrotheeeer/review-hub/internal/lib/sl"
	"github.com/magabrotheeeer/review-hub/internal/models"
)

// EntitlementProvider возвращает состояние доступа пользователя.
type EntitlementProvider interface {
	Get(ctx context.Context, userUID string) (models.Entitlement, error)
}

// AccessMiddleware создает middleware, пропускающий только компании с
// открытым доступом: администраторов, оплаченные подписки и действующие
// пробные периоды.
func AccessMiddleware(log *slog.Logger, ents EntitlementProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userUID, ok := r.Context().Value(UserUID).(string)
			if !ok || userUID == "" {
				log.Error("user identification missing")
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("user identification missing"))
				return
			}

			ent, err := ents.Get(r.Context(), userUID)
			if err != nil {
				log.Error("failed to get entitlement", sl.Err(err))
				w.WriteHeader(http.StatusInternalServerError)
				render.JSON(w, r, response.Error("internal service error"))
				return
			}

			if !ent.CanAccessApp(time.Now()) {
				log.Info("access denied", slog.String("uid", userUID),
					slog.String("status", ent.Status))
				w.WriteHeader(http.StatusForbidden)
				render.JSON(w, r, response.Error("subscription expired, access denied"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
