package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// JWTAuth validates the bearer token issued by the auth service and stores
// the subject (the opaque authenticated user id) in Locals("user_id").
// Websocket clients that cannot set headers may pass ?token= instead.
func JWTAuth(secret string) fiber.Handler {
	key := []byte(secret)
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing auth token"})
		}

		sub, err := validate(token, key)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid auth token"})
		}
		c.Locals("user_id", sub)
		return c.Next()
	}
}

func bearerToken(header string) string {
	const pref = "Bearer "
	if !strings.HasPrefix(header, pref) {
		return ""
	}
	return header[len(pref):]
}

func validate(token string, key []byte) (string, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	tok, err := parser.Parse(token, func(t *jwt.Token) (any, error) { return key, nil })
	if err != nil {
		return "", err
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return "", errors.New("invalid token")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", errors.New("sub claim missing")
	}
	return sub, nil
}
