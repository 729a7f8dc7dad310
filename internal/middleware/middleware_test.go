package middleware_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"orderdesk/internal/middleware"
	"orderdesk/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver map[string]models.Identity

func (s stubResolver) Resolve(token string) (models.Identity, error) {
	identity, ok := s[token]
	if !ok {
		return models.Identity{}, errors.New("unknown token")
	}
	return identity, nil
}

func newProtectedApp() *fiber.App {
	resolver := stubResolver{
		"admin-token":       {UserID: "u-1", Username: "admin", Role: models.RoleAdmin},
		"distributor-token": {UserID: "u-2", Username: "acme", Role: models.RoleDistributor},
	}
	app := fiber.New()
	auth := middleware.AuthRequired(resolver)
	app.Get("/whoami", auth, func(c *fiber.Ctx) error {
		identity, ok := middleware.CurrentIdentity(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendString(identity.Username)
	})
	app.Get("/admin", auth, middleware.RequireRole(models.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func do(t *testing.T, app *fiber.App, path, authorization string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestAuthRequired(t *testing.T) {
	app := newProtectedApp()

	status, body := do(t, app, "/whoami", "Bearer distributor-token")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "acme", body)

	status, _ = do(t, app, "/whoami", "bearer admin-token")
	assert.Equal(t, http.StatusOK, status)

	var bodies []string
	for _, header := range []string{"", "Bearer", "Bearer ", "Basic abc", "Token distributor-token", "Bearer forged-token"} {
		status, body := do(t, app, "/whoami", header)
		assert.Equal(t, http.StatusUnauthorized, status, header)
		bodies = append(bodies, body)
	}
	for _, body := range bodies {
		assert.JSONEq(t, `{"message":"invalid or expired token"}`, body)
	}
}

func TestRequireRole(t *testing.T) {
	app := newProtectedApp()

	status, _ := do(t, app, "/admin", "Bearer admin-token")
	assert.Equal(t, http.StatusOK, status)

	status, body := do(t, app, "/admin", "Bearer distributor-token")
	assert.Equal(t, http.StatusForbidden, status)
	assert.JSONEq(t, `{"message":"insufficient role"}`, body)

	status, _ = do(t, app, "/admin", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRateLimit(t *testing.T) {
	app := fiber.New()
	app.Post("/submit", middleware.RateLimit(0.001, 2), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	var codes []int
	for i := 0; i < 4; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/submit", nil), -1)
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}
