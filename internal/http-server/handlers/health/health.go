package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/Maksim200738-droid/rockvpn/internal/http-server/response"
	"github.com/Maksim200738-droid/rockvpn/internal/lib/sl"
)

// Pinger проверяет доступность зависимости.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// New возвращает обработчик проверки живости: 200, если база отвечает, иначе 503.
func New(log *slog.Logger, db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.health"

		if err := db.PingContext(r.Context()); err != nil {
			log.Error("database is unavailable", slog.String("op", op), sl.Err(err))
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("database is unavailable"))
			return
		}
		render.JSON(w, r, response.StatusOKWithData(map[string]any{
			"status": "ok",
		}))
	}
}
