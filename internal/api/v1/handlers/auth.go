package handlers

import (
	"time"

	"taskhub/internal/apperr"
	"taskhub/internal/config"
	"taskhub/internal/middleware"
	"taskhub/internal/service"
	"taskhub/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

// Auth handlers
func Register(c *fiber.Ctx) error {
	type RegisterRequest struct {
		Username string `json:"username" validate:"required,max=255,excludesall=@?"`
		Email    string `json:"email" validate:"required,email,max=255"`
		Password string `json:"password" validate:"required,min=6"`
	}

	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in register", zap.Error(err))
		return badRequest(c, "body", "Bad request")
	}

	if err := config.Validate.Struct(req); err != nil {
		logger.AuditLogger.Warn("Validation error during register", zap.Error(err))
		return fail(c, apperr.Validation("Validation error", validationFields(err)))
	}

	user, err := service.RegisterUser(req.Username, req.Email, req.Password)
	if err != nil {
		logger.SecurityLogger.Warn("Register failed", zap.String("username", req.Username), zap.Error(err))
		return fail(c, err)
	}

	logger.AuditLogger.Info("User registered successfully", zap.Int("userID", user.ID))
	return c.Status(201).JSON(fiber.Map{
		"message": "User created successfully",
		"success": true,
		"status":  201,
		"data": fiber.Map{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
		},
	})
}

// Login issues a short-lived signed token and sets it as an HTTP-only
// cookie.
func Login(c *fiber.Ctx) error {
	type LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in login", zap.Error(err))
		return badRequest(c, "body", "Bad request")
	}

	if err := config.Validate.Struct(req); err != nil {
		logger.AuditLogger.Warn("Validation error during login", zap.Error(err))
		return fail(c, apperr.Validation("Validation error", validationFields(err)))
	}

	user, err := service.AuthenticateUser(req.Username, req.Password)
	if err != nil {
		logger.SecurityLogger.Warn("Login failed", zap.String("username", req.Username))
		return fail(c, err)
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"iss":     middleware.TokenIssuer,
		"aud":     middleware.TokenAudience,
		"iat":     now.Unix(),
		"exp":     now.Add(middleware.TokenTTL).Unix(),
	})
	tokenString, err := token.SignedString(config.SecretKey)
	if err != nil {
		logger.ErrorLogger.Error("Error generating token", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error generating token",
			"success": false,
			"status":  500,
		})
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    tokenString,
		Path:     "/",
		MaxAge:   int(middleware.TokenTTL.Seconds()),
		HTTPOnly: true,
	})

	logger.AuditLogger.Info("Login success", zap.Int("user_id", user.ID))
	return c.JSON(fiber.Map{
		"message": "Login success",
		"success": true,
		"status":  200,
		"data": fiber.Map{
			"user_id":  user.ID,
			"username": user.Username,
			"token":    tokenString,
		},
	})
}

// Logout clears the auth cookie and puts the live token on the redis
// revocation list until it would have expired on its own.
func Logout(c *fiber.Ctx) error {
	tokenString := middleware.ExtractToken(c)
	if tokenString != "" && config.RedisClient != nil {
		ttl := middleware.TokenTTL
		if token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{}); err == nil {
			if claims, ok := token.Claims.(jwt.MapClaims); ok {
				if exp, ok := claims["exp"].(float64); ok {
					if remaining := time.Until(time.Unix(int64(exp), 0)); remaining > 0 {
						ttl = remaining
					}
				}
			}
		}
		if err := config.RedisClient.Set(config.Ctx, middleware.RevocationKey(tokenString), "1", ttl).Err(); err != nil {
			logger.ErrorLogger.Error("Error revoking token", zap.Error(err))
		}
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HTTPOnly: true,
	})

	logger.AuditLogger.Info("Logout success")
	return c.JSON(fiber.Map{
		"message": "Logout success",
		"success": true,
		"status":  200,
	})
}
