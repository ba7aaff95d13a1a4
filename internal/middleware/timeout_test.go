package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestTimeoutSetsDeadline(t *testing.T) {
	var deadline time.Time
	var ok bool

	app := fiber.New()
	app.Get("/x", RequestTimeout(5*time.Second), func(c *fiber.Ctx) error {
		deadline, ok = c.UserContext().Deadline()
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/x", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, ok, "handler context must carry a deadline")
	assert.WithinDuration(t, time.Now().Add(5*time.Second), deadline, time.Second)
}
