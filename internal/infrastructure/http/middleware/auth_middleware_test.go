package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnquangdev/meeting-calls/pkg/jwt"
)

func TestEchoAuth(t *testing.T) {
	manager := jwt.NewManager("test-secret", time.Minute)
	id := uuid.New()
	token, err := manager.GenerateAccessToken(id, "", "user")
	require.NoError(t, err)

	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		got, ok := UserID(c)
		require.True(t, ok)
		return c.String(http.StatusOK, got.String())
	}, EchoAuth(manager, nil))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		target string
		status int
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, "/me", http.StatusOK},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "access_token", Value: token}) }, "/me", http.StatusOK},
		{"query parameter", func(*http.Request) {}, "/me?access_token=" + token, http.StatusOK},
		{"missing", func(*http.Request) {}, "/me", http.StatusUnauthorized},
		{"invalid", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, "/me", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, id.String(), rec.Body.String())
			}
		})
	}
}

func TestEchoAuth_ExpiredToken(t *testing.T) {
	manager := jwt.NewManager("test-secret", -time.Minute)
	token, err := manager.GenerateAccessToken(uuid.New(), "", "user")
	require.NoError(t, err)

	e := echo.New()
	e.GET("/me", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, EchoAuth(manager, nil))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired")
}
