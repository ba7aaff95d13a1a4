package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, sub, secret string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newAuthApp() *fiber.App {
	app := fiber.New()
	app.Get("/whoami", JWTAuth(testSecret), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"user": c.Locals("user_id")})
	})
	return app
}

func TestJWTAuthAcceptsBearerToken(t *testing.T) {
	app := newAuthApp()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-42", testSecret))

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestJWTAuthAcceptsQueryToken(t *testing.T) {
	app := newAuthApp()

	req := httptest.NewRequest(http.MethodGet, "/whoami?token="+signToken(t, "user-42", testSecret), nil)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestJWTAuthRejects(t *testing.T) {
	app := newAuthApp()

	tests := []struct {
		name  string
		setup func(r *http.Request)
	}{
		{"missing token", func(r *http.Request) {}},
		{"malformed header", func(r *http.Request) { r.Header.Set("Authorization", "Token abc") }},
		{"wrong secret", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signToken(t, "user-42", "other-secret"))
		}},
		{"expired", func(r *http.Request) {
			tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"sub": "user-42",
				"exp": time.Now().Add(-time.Hour).Unix(),
			})
			signed, _ := tok.SignedString([]byte(testSecret))
			r.Header.Set("Authorization", "Bearer "+signed)
		}},
		{"no subject", func(r *http.Request) {
			tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"exp": time.Now().Add(time.Hour).Unix(),
			})
			signed, _ := tok.SignedString([]byte(testSecret))
			r.Header.Set("Authorization", "Bearer "+signed)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			tt.setup(req)
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}
