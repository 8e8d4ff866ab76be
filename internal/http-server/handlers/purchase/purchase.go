// Package purchase обработчики оформления подписки: пробный период,
// заявка на оплату и отправка подтверждения оплаты.
package purchase

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/Maksim200738-droid/rockvpn/internal/http-server/handlers"
	"github.com/Maksim200738-droid/rockvpn/internal/http-server/response"
	"github.com/Maksim200738-droid/rockvpn/internal/lib/sl"
	"github.com/Maksim200738-droid/rockvpn/internal/models"
	lifecycle "github.com/Maksim200738-droid/rockvpn/internal/services/lifecycle"
)

// Service операции координатора, нужные обработчикам.
type Service interface {
	ClaimTrial(ctx context.Context, userID int64) (*lifecycle.Activation, error)
	CreatePending(ctx context.Context, userID int64, tariffID string) (*models.Transaction, error)
	SubmitProof(ctx context.Context, userID int64, fileID string) (*models.Transaction, error)
}

// CreateRequest тело запроса на создание заявки.
type CreateRequest struct {
	TariffID string `json:"tariff_id" validate:"required"`
}

// ProofRequest тело запроса с подтверждением оплаты.
type ProofRequest struct {
	FileID string `json:"file_id" validate:"max=512"`
}

// ClaimTrial выдаёт пробный период.
func ClaimTrial(log *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.purchase.ClaimTrial"
		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID, ok := handlers.PathIDOrFail(w, r, log, "id")
		if !ok {
			return
		}
		activation, err := svc.ClaimTrial(r.Context(), userID)
		if err != nil {
			log.Error("failed to claim trial", slog.Int64("user_id", userID), sl.Err(err))
			response.Fail(w, r, err)
			return
		}

		log.Info("trial claimed", slog.Int64("user_id", userID), slog.Int64("subscription_id", activation.Subscription.ID))
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.StatusOKWithData(activation))
	}
}

// CreatePending создаёт заявку на оплату тарифа.
func CreatePending(log *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.purchase.CreatePending"
		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID, ok := handlers.PathIDOrFail(w, r, log, "id")
		if !ok {
			return
		}
		var req CreateRequest
		if !handlers.DecodeOrFail(w, r, log, &req) {
			return
		}

		tx, err := svc.CreatePending(r.Context(), userID, req.TariffID)
		if err != nil {
			log.Error("failed to create transaction", slog.Int64("user_id", userID), sl.Err(err))
			response.Fail(w, r, err)
			return
		}

		log.Info("transaction created", slog.String("transaction_id", tx.ID))
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.StatusOKWithData(tx))
	}
}

// SubmitProof пересылает администраторам подтверждение оплаты по последней заявке.
func SubmitProof(log *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.purchase.SubmitProof"
		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID, ok := handlers.PathIDOrFail(w, r, log, "id")
		if !ok {
			return
		}
		var req ProofRequest
		if !handlers.DecodeOrFail(w, r, log, &req) {
			return
		}

		tx, err := svc.SubmitProof(r.Context(), userID, req.FileID)
		if err != nil {
			log.Error("failed to submit proof", slog.Int64("user_id", userID), sl.Err(err))
			response.Fail(w, r, err)
			return
		}

		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, response.StatusOKWithData(tx))
	}
}
