package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/Maksim200738-droid/rockvpn/internal/lib/jwt"
	"github.com/Maksim200738-droid/rockvpn/internal/models"
)

// stubService отвечает только на методы, нужные тестам маршрутизации.
type stubService struct {
	Service
}

func (stubService) Stats(context.Context) (*models.Stats, error) {
	return &models.Stats{TotalUsers: 1}, nil
}

func (stubService) HadTrial(context.Context, int64) (bool, error) {
	return false, nil
}

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

func newRouter(t *testing.T, limiter *rate.Limiter) (http.Handler, *jwt.MakerImpl) {
	t.Helper()
	maker := jwt.NewJWTMaker("secret", time.Hour)
	r := chi.NewRouter()
	RegisterRoutes(r, slog.New(slog.NewTextHandler(io.Discard, nil)), stubService{}, maker, limiter, okPinger{})
	return r, maker
}

func token(t *testing.T, maker *jwt.MakerImpl, role string) string {
	t.Helper()
	tok, err := maker.GenerateToken("test", role)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestRoutes_Auth(t *testing.T) {
	router, maker := newRouter(t, rate.NewLimiter(rate.Inf, 0))

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		want   int
	}{
		{name: "no token", method: http.MethodGet, path: "/api/v1/users/1/trial", want: http.StatusUnauthorized},
		{name: "bot reads trial", method: http.MethodGet, path: "/api/v1/users/1/trial", auth: token(t, maker, jwt.RoleBot), want: http.StatusOK},
		{name: "bot cannot read stats", method: http.MethodGet, path: "/api/v1/admin/stats", auth: token(t, maker, jwt.RoleBot), want: http.StatusForbidden},
		{name: "admin reads stats", method: http.MethodGet, path: "/api/v1/admin/stats", auth: token(t, maker, jwt.RoleAdmin), want: http.StatusOK},
		{name: "health is public", method: http.MethodGet, path: "/health", want: http.StatusOK},
		{name: "metrics is public", method: http.MethodGet, path: "/metrics", want: http.StatusOK},
		{name: "unknown route", method: http.MethodGet, path: "/api/v1/nope", auth: token(t, maker, jwt.RoleAdmin), want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRoutes_RateLimit(t *testing.T) {
	router, maker := newRouter(t, rate.NewLimiter(rate.Every(time.Hour), 1))
	auth := token(t, maker, jwt.RoleBot)

	codes := make([]int, 0, 2)
	for range 2 {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/1/trial", nil)
		req.Header.Set("Authorization", auth)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
