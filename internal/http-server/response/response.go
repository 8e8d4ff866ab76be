// Package response описывает формат ответов API и перевод доменных ошибок в HTTP-статусы.
package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/Maksim200738-droid/rockvpn/internal/models"
	"github.com/Maksim200738-droid/rockvpn/internal/panel"
)

type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

const (
	StatusOK    = "OK"
	StatusError = "Error"
)

func OK() Response {
	return Response{
		Status: StatusOK,
	}
}

func StatusOKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

func Error(msg string) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
	}
}

func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "oneof":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be one of: %s", err.Field(), err.Param()))
		case "gt", "gte":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be greater than %s", err.Field(), err.Param()))
		case "max":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is too long", err.Field()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return Response{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
	}
}

// StatusFor возвращает HTTP-статус для ошибки операции.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidState),
		errors.Is(err, models.ErrActiveSubscription),
		errors.Is(err, models.ErrTrialUsed):
		return http.StatusConflict
	case errors.Is(err, models.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrUnknownTariff):
		return http.StatusBadRequest
	case errors.Is(err, panel.ErrAuth), errors.Is(err, panel.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// MessageFor возвращает текст ошибки для клиента. Внутренние ошибки не раскрываются.
func MessageFor(err error) string {
	switch StatusFor(err) {
	case http.StatusNotFound:
		return models.ErrNotFound.Error()
	case http.StatusConflict, http.StatusUnprocessableEntity, http.StatusBadRequest:
		for _, sentinel := range []error{
			models.ErrInvalidState, models.ErrActiveSubscription, models.ErrTrialUsed,
			models.ErrInsufficientBalance, models.ErrUnknownTariff,
		} {
			if errors.Is(err, sentinel) {
				return sentinel.Error()
			}
		}
	case http.StatusBadGateway:
		return "vpn panel is unavailable"
	}
	return "internal error"
}

// Fail пишет ответ с ошибкой операции и соответствующим статусом.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	render.Status(r, StatusFor(err))
	render.JSON(w, r, Error(MessageFor(err)))
}

// BadRequest пишет ответ 400 с сообщением.
func BadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, Error(msg))
}
