// Package handlers содержит общие функции разбора запросов для обработчиков API.
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/Maksim200738-droid/rockvpn/internal/http-server/response"
	"github.com/Maksim200738-droid/rockvpn/internal/lib/sl"
)

var validate = validator.New()

// PathID разбирает положительный числовой параметр пути.
func PathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// PathIDOrFail разбирает параметр пути и при ошибке пишет ответ 400.
func PathIDOrFail(w http.ResponseWriter, r *http.Request, log *slog.Logger, name string) (int64, bool) {
	id, err := PathID(r, name)
	if err != nil {
		log.Warn("invalid path parameter", sl.Err(err))
		response.BadRequest(w, r, err.Error())
		return 0, false
	}
	return id, true
}

// DecodeOrFail читает JSON-тело в dst и проверяет теги validate.
// При ошибке пишет ответ 400 и возвращает false.
func DecodeOrFail(w http.ResponseWriter, r *http.Request, log *slog.Logger, dst any) bool {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.BadRequest(w, r, "failed to decode request")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var validateErr validator.ValidationErrors
		if errors.As(err, &validateErr) {
			log.Warn("invalid request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationError(validateErr))
			return false
		}
		log.Error("failed to validate request", sl.Err(err))
		response.BadRequest(w, r, "invalid request")
		return false
	}
	return true
}
