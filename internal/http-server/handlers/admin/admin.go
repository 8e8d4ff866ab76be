// Package admin обработчики административных операций: подтверждение и отклонение
// оплат, отзыв и выдача подписок, баланс, права администратора и статистика.
package admin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/shopspring/decimal"

	"github.com/Maksim200738-droid/rockvpn/internal/http-server/handlers"
	"github.com/Maksim200738-droid/rockvpn/internal/http-server/response"
	"github.com/Maksim200738-droid/rockvpn/internal/lib/sl"
	"github.com/Maksim200738-droid/rockvpn/internal/models"
	lifecycle "github.com/Maksim200738-droid/rockvpn/internal/services/lifecycle"
)

// Service операции координатора, нужные обработчикам.
type Service interface {
	Approve(ctx context.Context, transactionID string) (*lifecycle.Activation, error)
	Reject(ctx context.Context, transactionID string) (*models.Transaction, error)
	TransactionByID(ctx context.Context, transactionID string) (*models.Transaction, error)
	Revoke(ctx context.Context, subscriptionID int64, reason string) error
	AllActive(ctx context.Context) ([]models.Subscription, error)
	Grant(ctx context.Context, userID int64, tariffID string) (*lifecycle.Activation, error)
	DebitBalance(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)
	SetAdmin(ctx context.Context, userID int64, isAdmin bool) error
	Stats(ctx context.Context) (*models.Stats, error)
}

// GrantRequest тело запроса выдачи подписки.
type GrantRequest struct {
	TariffID string `json:"tariff_id" validate:"required"`
}

// DebitRequest тело запроса списания с баланса.
type DebitRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// SetAdminRequest тело запроса изменения прав администратора.
type SetAdminRequest struct {
	IsAdmin *bool `json:"is_admin" validate:"required"`
}

func logger(log *slog.Logger, op string, r *http.Request) *slog.Logger {
	return log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Approve подтверждает оплату и выдаёт подписку.
func Approve(log *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.Approve"
		log := logger(log, op, r)

		txID := chi.URLParam(r, "id")
		activation, err := svc.Approve(r.Context(), txID)
		if err != nil {
			log.Error("failed to approve transaction", slog.String("transaction_id", txID), sl.Err(err))
			response.Fail(w, r, err)
			return
		}

		log.Info("transaction approved", slog.String("transaction_id", txID))
		render.JSON(w, r, response.StatusOKWithData(activation))
	}
}

// Reject отклоняет оплату.
func Reject(log *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.Reject"
		log := logger(log, op, r)

		txID := chi.URLParam(r, "id")
		tx, err := svc.Reject(r.Context(), txID)
		if err != nil {
			log.Error("failed to reject transaction", slog.String("transaction_id", txID), sl.Err(err))
			response.Fail(w, r, err)
			return
		}

		log.Info("transaction rejected", slog.String("transaction_id", txID))
		render.JSON(w, r, response.StatusOKWithData(tx))
	}
}

// Transaction возвращает транзакцию по ID.
func Transaction(log *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.Transaction"
		log := logger(log, op, r)

		tx, err := svc.TransactionByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			log.Warn("failed to get transaction", sl.Err(err))
			response.Fail(w, r, err)
			return
		}
		render.JSON(w, r, response.StatusOKWithData(tx))
	}
}

// Revoke отзывает подписку. Повторный отзыв не является ошибкой.
func Revoke(log *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.Revoke"
		log := logger(log, op, r)

		subID, ok := handlers.PathIDOrFail(w, r, log, "id")
		if !ok {
			return
		}
		if err := svc.Revoke(r.Context(), subID, lifecycle.ReasonAdmin); err != nil {
			log.Error("failed to revoke subscription", slog.Int64("subscription_id", subID), sl.Err(err))
			response.Fail(w, r, err)
			return
		}

		log.Info("subscription revoked", slog.Int64("subscription_id", subID))
		render.JSON(w, r, response.OK())
	}
}

// ActiveSubscriptions возвращает все действующие подписки.
func ActiveSubscriptions(log *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.ActiveSubscriptions"
		log := logger(log, op, r)

		subs, err := svc.AllActive(r.Context())
		if err != nil {
			log.Error("failed to list active subscriptions", sl.Err(err))
			response.Fail(w, r, err)
			return
		}
		if subs == nil {
			subs = []models.Subscription{}
		}
		render.JSON(w, r, response.StatusOKWithData(subs))
	}
}

// Grant выдаёт подписку без оплаты.
func Grant(log *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.Grant"
		log := logger(log, op, r)

		userID, ok := handlers.PathIDOrFail(w, r, log, "id")
		if !ok {
			return
		}
		var req GrantRequest
		if !handlers.DecodeOrFail(w, r, log, &req) {
			return
		}

		activation, err := svc.Grant(r.Context(), userID, req.TariffID)
		if err != nil {
			log.Error("failed to grant subscription", slog.Int64("user_id", userID), sl.Err(err))
			response.Fail(w, r, err)
			return
		}

		log.Info("subscription granted", slog.Int64("user_id", userID), slog.String("tariff_id", req.TariffID))
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.StatusOKWithData(activation))
	}
}

// Debit списывает сумму с баланса пользователя.
func Debit(log *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.Debit"
		log := logger(log, op, r)

		userID, ok := handlers.PathIDOrFail(w, r, log, "id")
		if !ok {
			return
		}
		var req DebitRequest
		if !handlers.DecodeOrFail(w, r, log, &req) {
			return
		}
		if !req.Amount.IsPositive() {
			response.BadRequest(w, r, "amount must be positive")
			return
		}

		balance, err := svc.DebitBalance(r.Context(), userID, req.Amount)
		if err != nil {
			log.Warn("failed to debit balance", slog.Int64("user_id", userID), sl.Err(err))
			response.Fail(w, r, err)
			return
		}
		render.JSON(w, r, response.StatusOKWithData(map[string]any{"balance": balance}))
	}
}

// SetAdmin включает или выключает права администратора.
func SetAdmin(log *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.SetAdmin"
		log := logger(log, op, r)

		userID, ok := handlers.PathIDOrFail(w, r, log, "id")
		if !ok {
			return
		}
		var req SetAdminRequest
		if !handlers.DecodeOrFail(w, r, log, &req) {
			return
		}

		if err := svc.SetAdmin(r.Context(), userID, *req.IsAdmin); err != nil {
			log.Error("failed to set admin flag", slog.Int64("user_id", userID), sl.Err(err))
			response.Fail(w, r, err)
			return
		}

		log.Info("admin flag updated", slog.Int64("user_id", userID), slog.Bool("is_admin", *req.IsAdmin))
		render.JSON(w, r, response.OK())
	}
}

// Stats возвращает сводную статистику.
func Stats(log *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.Stats"
		log := logger(log, op, r)

		stats, err := svc.Stats(r.Context())
		if err != nil {
			log.Error("failed to collect stats", sl.Err(err))
			response.Fail(w, r, err)
			return
		}
		render.JSON(w, r, response.StatusOKWithData(stats))
	}
}
