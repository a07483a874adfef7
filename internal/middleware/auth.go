package middleware

import (
	"fmt"
	"strings"
	"time"

	"taskhub/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

const (
	TokenCookie   = "access_token"
	TokenIssuer   = "taskhub"
	TokenAudience = "taskhub"
	TokenTTL      = 15 * time.Minute
)

// RevocationKey is the redis key holding a logged-out token until it
// would have expired anyway.
func RevocationKey(token string) string {
	return "revoked:" + token
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"message": message,
		"code":    "UNAUTHENTICATED",
		"success": false,
		"status":  401,
	})
}

// ExtractToken reads the access token from the auth cookie, falling
// back to a bearer Authorization header.
func ExtractToken(c *fiber.Ctx) string {
	if cookie := c.Cookies(TokenCookie); cookie != "" {
		return cookie
	}
	authHeader := c.Get("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// UseToken authenticates the request and binds the user id into the
// request-scoped Locals consumed by the handlers.
func UseToken(c *fiber.Ctx) error {
	tokenString := ExtractToken(c)
	if tokenString == "" {
		return unauthorized(c, "No token provided")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return config.SecretKey, nil
	})
	if err != nil || !token.Valid {
		return unauthorized(c, "Invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return unauthorized(c, "Invalid token claims")
	}
	if !claims.VerifyIssuer(TokenIssuer, true) {
		return unauthorized(c, "Invalid token issuer")
	}
	if !claims.VerifyAudience(TokenAudience, true) {
		return unauthorized(c, "Invalid token audience")
	}
	if exp, ok := claims["exp"].(float64); !ok || int64(exp) < time.Now().Unix() {
		return unauthorized(c, "Token expired")
	}
	userID, ok := claims["user_id"].(float64)
	if !ok {
		return unauthorized(c, "Invalid user ID in token")
	}

	// A token on the revocation list has been logged out before expiry
	if config.RedisClient != nil {
		if exists, err := config.RedisClient.Exists(config.Ctx, RevocationKey(tokenString)).Result(); err == nil && exists > 0 {
			return unauthorized(c, "Token revoked")
		}
	}

	c.Locals("userID", int(userID))
	return c.Next()
}
