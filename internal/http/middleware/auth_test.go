package middleware

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct {
	userID  string
	email   string
	isAdmin bool
	err     error
}

func (s stubVerifier) VerifyBearer(string) (string, string, bool, error) {
	return s.userID, s.email, s.isAdmin, s.err
}

func authApp(v TokenVerifier, requireAdmin bool) *fiber.App {
	app := fiber.New()
	app.Get("/protected", RequireAuth(v, requireAdmin), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"actor": c.Locals(ActorEmailLocalKey),
			"id":    c.Locals(ActorIDLocalKey),
		})
	})
	return app
}

func TestRequireAuth_ValidToken(t *testing.T) {
	app := authApp(stubVerifier{userID: "u1", email: "admin@example.com", isAdmin: true}, true)

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer good-token")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var got map[string]string
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "admin@example.com", got["actor"])
	assert.Equal(t, "u1", got["id"])
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	app := authApp(stubVerifier{}, false)

	resp, err := app.Test(httptest.NewRequest("GET", "/protected", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireAuth_MalformedHeader(t *testing.T) {
	app := authApp(stubVerifier{userID: "u1", email: "a@b.com", isAdmin: true}, false)

	for _, header := range []string{"good-token", "Basic abc", "Bearer", "Bearer "} {
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set(fiber.HeaderAuthorization, header)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, "header %q", header)
	}
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	app := authApp(stubVerifier{err: assert.AnError}, false)

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer expired")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireAuth_NonAdminForbidden(t *testing.T) {
	app := authApp(stubVerifier{userID: "u1", email: "a@b.com", isAdmin: false}, true)

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer good-token")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestRequireAuth_BearerCaseInsensitive(t *testing.T) {
	app := authApp(stubVerifier{userID: "u1", email: "a@b.com", isAdmin: true}, false)

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set(fiber.HeaderAuthorization, "bearer good-token")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
