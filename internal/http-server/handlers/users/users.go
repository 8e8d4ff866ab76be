// Package users обработчики пользовательских запросов бота: регистрация,
// история и текущая подписка, проверка права на покупку.
package users

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/Maksim200738-droid/rockvpn/internal/http-server/handlers"
	"github.com/Maksim200738-droid/rockvpn/internal/http-server/response"
	"github.com/Maksim200738-droid/rockvpn/internal/lib/sl"
	"github.com/Maksim200738-droid/rockvpn/internal/models"
)

// Service операции координатора, нужные обработчикам.
type Service interface {
	Register(ctx context.Context, user models.User) (bool, error)
	AllFor(ctx context.Context, userID int64) ([]models.Subscription, error)
	ActiveFor(ctx context.Context, userID int64) (*models.Subscription, error)
	Descriptor(sub *models.Subscription) string
	HadTrial(ctx context.Context, userID int64) (bool, error)
	CanPurchase(ctx context.Context, userID int64, tariffID string) error
}

// RegisterRequest тело запроса регистрации.
type RegisterRequest struct {
	ID          int64  `json:"id" validate:"required,gt=0"`
	DisplayName string `json:"display_name" validate:"max=255"`
	ReferrerID  *int64 `json:"referrer_id,omitempty"`
}

// ActiveResponse текущая подписка и ссылка подключения.
type ActiveResponse struct {
	Subscription *models.Subscription `json:"subscription"`
	Descriptor   string               `json:"descriptor,omitempty"`
}

// EligibilityResponse результат проверки права на покупку тарифа.
type EligibilityResponse struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

func logger(log *slog.Logger, op string, r *http.Request) *slog.Logger {
	return log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Register регистрирует пользователя при первом обращении к боту.
// Отвечает 201, если пользователь создан, и 200, если уже был.
func Register(log *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.users.Register"
		log := logger(log, op, r)

		var req RegisterRequest
		if !handlers.DecodeOrFail(w, r, log, &req) {
			return
		}

		created, err := svc.Register(r.Context(), models.User{
			ID:          req.ID,
			DisplayName: req.DisplayName,
			ReferrerID:  req.ReferrerID,
		})
		if err != nil {
			log.Error("failed to register user", sl.Err(err))
			response.Fail(w, r, err)
			return
		}

		if created {
			log.Info("user registered", slog.Int64("user_id", req.ID))
			render.Status(r, http.StatusCreated)
		}
		render.JSON(w, r, response.StatusOKWithData(map[string]any{"created": created}))
	}
}

// Subscriptions возвращает историю подписок пользователя.
func Subscriptions(log *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.users.Subscriptions"
		log := logger(log, op, r)

		userID, ok := handlers.PathIDOrFail(w, r, log, "id")
		if !ok {
			return
		}
		subs, err := svc.AllFor(r.Context(), userID)
		if err != nil {
			log.Error("failed to list subscriptions", sl.Err(err))
			response.Fail(w, r, err)
			return
		}
		if subs == nil {
			subs = []models.Subscription{}
		}
		render.JSON(w, r, response.StatusOKWithData(subs))
	}
}

// Active возвращает действующую подписку пользователя со ссылкой подключения.
func Active(log *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.users.Active"
		log := logger(log, op, r)

		userID, ok := handlers.PathIDOrFail(w, r, log, "id")
		if !ok {
			return
		}
		sub, err := svc.ActiveFor(r.Context(), userID)
		if err != nil {
			if !errors.Is(err, models.ErrNotFound) {
				log.Error("failed to get active subscription", sl.Err(err))
			}
			response.Fail(w, r, err)
			return
		}
		render.JSON(w, r, response.StatusOKWithData(ActiveResponse{
			Subscription: sub,
			Descriptor:   svc.Descriptor(sub),
		}))
	}
}

// Trial сообщает, использовал ли пользователь пробный период.
func Trial(log *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.users.Trial"
		log := logger(log, op, r)

		userID, ok := handlers.PathIDOrFail(w, r, log, "id")
		if !ok {
			return
		}
		had, err := svc.HadTrial(r.Context(), userID)
		if err != nil {
			log.Error("failed to check trial", sl.Err(err))
			response.Fail(w, r, err)
			return
		}
		render.JSON(w, r, response.StatusOKWithData(map[string]any{"had_trial": had}))
	}
}

// Eligibility проверяет, может ли пользователь оформить тариф из параметра tariff.
// Отказ по бизнес-правилу возвращается как eligible=false с причиной.
func Eligibility(log *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.users.Eligibility"
		log := logger(log, op, r)

		userID, ok := handlers.PathIDOrFail(w, r, log, "id")
		if !ok {
			return
		}
		tariffID := r.URL.Query().Get("tariff")
		if tariffID == "" {
			response.BadRequest(w, r, "query parameter tariff is required")
			return
		}

		err := svc.CanPurchase(r.Context(), userID, tariffID)
		switch {
		case err == nil:
			render.JSON(w, r, response.StatusOKWithData(EligibilityResponse{Eligible: true}))
		case errors.Is(err, models.ErrActiveSubscription), errors.Is(err, models.ErrTrialUsed):
			render.JSON(w, r, response.StatusOKWithData(EligibilityResponse{
				Eligible: false,
				Reason:   response.MessageFor(err),
			}))
		default:
			log.Error("failed to check eligibility", sl.Err(err))
			response.Fail(w, r, err)
		}
	}
}
