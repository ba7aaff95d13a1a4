package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/Mehfooz5/launchpad-messaging/internal/config"
	"github.com/Mehfooz5/launchpad-messaging/internal/handlers"
	"github.com/Mehfooz5/launchpad-messaging/internal/middleware"
	"github.com/Mehfooz5/launchpad-messaging/internal/ws"
)

// New assembles the fiber app: REST chat routes plus the /ws upgrade.
func New(cfg *config.Config, h *handlers.ChatHandler, wsh *ws.Handler, limiter *middleware.RateLimiter) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: cfg.App.Env == "production"})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1",
		middleware.JWTAuth(cfg.App.JWTSecret),
		middleware.RequestTimeout(cfg.RequestTimeout),
	)

	api.Post("/conversations", h.ResolveConversation)
	api.Get("/conversations/:userId", h.ListConversations)
	api.Get("/messages/:conversationId", h.GetMessages)
	api.Put("/messages/:conversationId/read", h.MarkRead)
	api.Get("/presence/:userId", h.GetPresence)

	send := api.Group("/message")
	if limiter != nil {
		send.Use(limiter.ByKey(func(c *fiber.Ctx) string {
			if uid, ok := c.Locals("user_id").(string); ok && uid != "" {
				return uid
			}
			return c.IP()
		}))
	}
	send.Post("/", h.SendMessage)

	app.Use("/ws", middleware.JWTAuth(cfg.App.JWTSecret), func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(wsh.Serve))

	return app
}
