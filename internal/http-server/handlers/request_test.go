package handlers

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
)

func withParam(req *http.Request, name, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(name, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestPathID(t *testing.T) {
	tests := []struct {
		value   string
		want    int64
		wantErr bool
	}{
		{value: "42", want: 42},
		{value: "9007199254740993", want: 9007199254740993},
		{value: "0", wantErr: true},
		{value: "-5", wantErr: true},
		{value: "abc", wantErr: true},
		{value: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			id, err := PathID(withParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", tt.value), "id")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestDecodeOrFail(t *testing.T) {
	type body struct {
		Name string `json:"name" validate:"required"`
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("valid", func(t *testing.T) {
		var dst body
		w := httptest.NewRecorder()
		ok := DecodeOrFail(w, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"name":"x"}`)), log, &dst)

		assert.True(t, ok)
		assert.Equal(t, "x", dst.Name)
	})

	t.Run("validation failure", func(t *testing.T) {
		var dst body
		w := httptest.NewRecorder()
		ok := DecodeOrFail(w, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{}`)), log, &dst)

		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "field Name is a required field")
	})

	t.Run("broken json", func(t *testing.T) {
		var dst body
		w := httptest.NewRecorder()
		ok := DecodeOrFail(w, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{`)), log, &dst)

		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
