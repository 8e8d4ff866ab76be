package mware_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/Maksim200738-droid/rockvpn/internal/http-server/mware"
	"github.com/Maksim200738-droid/rockvpn/internal/lib/jwt"
)

type mockParser struct {
	ParseFunc func(tokenStr string) (*jwt.CustomClaims, error)
}

func (m *mockParser) ParseToken(tokenStr string) (*jwt.CustomClaims, error) {
	return m.ParseFunc(tokenStr)
}

func makeLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestJWTMiddleware(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		parser := &mockParser{
			ParseFunc: func(tokenStr string) (*jwt.CustomClaims, error) {
				require.Equal(t, "valid-token", tokenStr)
				return &jwt.CustomClaims{
					Role:             jwt.RoleBot,
					RegisteredClaims: gojwt.RegisteredClaims{Subject: "rockvpn-bot"},
				}, nil
			},
		}

		nextCalled := false
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nextCalled = true
			claims, ok := mware.ClaimsFromContext(r.Context())
			require.True(t, ok)
			assert.Equal(t, "rockvpn-bot", claims.Subject)
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()

		mware.JWTMiddleware(parser, makeLogger())(next).ServeHTTP(w, req)

		assert.True(t, nextCalled, "next handler must be called")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing Authorization header", func(t *testing.T) {
		called := false
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()

		mware.JWTMiddleware(&mockParser{}, makeLogger())(okHandler(&called)).ServeHTTP(w, req)

		assert.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "missing or invalid authorization header")
	})

	t.Run("invalid token", func(t *testing.T) {
		parser := &mockParser{
			ParseFunc: func(string) (*jwt.CustomClaims, error) { return nil, errors.New("token is expired") },
		}
		called := false
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer bad-token")
		w := httptest.NewRecorder()

		mware.JWTMiddleware(parser, makeLogger())(okHandler(&called)).ServeHTTP(w, req)

		assert.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "invalid or expired token")
	})

	t.Run("real token round trip", func(t *testing.T) {
		maker := jwt.NewJWTMaker("secret", time.Minute)
		token, err := maker.GenerateToken("vpnctl", jwt.RoleAdmin)
		require.NoError(t, err)

		called := false
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		handler := mware.JWTMiddleware(maker, makeLogger())(mware.RequireAdmin(makeLogger())(okHandler(&called)))
		handler.ServeHTTP(w, req)

		assert.True(t, called)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name   string
		claims *jwt.CustomClaims
		want   int
	}{
		{name: "admin passes", claims: &jwt.CustomClaims{Role: jwt.RoleAdmin}, want: http.StatusOK},
		{name: "bot is forbidden", claims: &jwt.CustomClaims{Role: jwt.RoleBot}, want: http.StatusForbidden},
		{name: "no claims is forbidden", claims: nil, want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			req := httptest.NewRequest(http.MethodPost, "/admin/stats", nil)
			if tt.claims != nil {
				req = req.WithContext(context.WithValue(req.Context(), mware.ClaimsKey, tt.claims))
			}
			w := httptest.NewRecorder()

			mware.RequireAdmin(makeLogger())(okHandler(&called)).ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, tt.want == http.StatusOK, called)
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 2)
	called := false
	handler := mware.RateLimitMiddleware(limiter, makeLogger())(okHandler(&called))

	codes := make([]int, 0, 3)
	for range 3 {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
