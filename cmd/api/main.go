package main

import (
	"fmt"
	"time"

	"taskhub/configs"
	v1 "taskhub/internal/api/v1"
	"taskhub/internal/api/v1/handlers"
	"taskhub/internal/config"
	"taskhub/internal/middleware"
	"taskhub/internal/repository"
	"taskhub/internal/service"
	myws "taskhub/internal/websocket"
	"taskhub/pkg/database"
	"taskhub/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/websocket/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	logger.InitLoggers()
	defer logger.SyncLoggers()
	logger.SystemLogger.Info("Starting application", zap.String("time", time.Now().Format(time.RFC3339)))

	cfg := configs.LoadConfig()
	config.SecretKey = []byte(cfg.JWTSecret)
	config.UploadDir = cfg.UploadDir

	config.DB = database.ConnectDB(cfg)
	defer config.DB.Close()
	logger.SystemLogger.Info("Database Connected")

	repository.CreateTableIfNotExists(config.DB)

	config.RedisClient = database.ConnectRedis(cfg)
	defer config.RedisClient.Close()

	// Hourly reconciliation of attachment files left behind by
	// best-effort deletes
	sweeper := cron.New()
	_, err := sweeper.AddFunc("@hourly", func() {
		removed, err := service.SweepOrphanAttachments()
		if err != nil {
			logger.ErrorLogger.Error("Attachment sweep failed", zap.Error(err))
			return
		}
		if removed > 0 {
			logger.SystemLogger.Info("Attachment sweep finished", zap.Int("removed", removed))
		}
	})
	if err != nil {
		logger.ErrorLogger.Error("Error scheduling attachment sweep", zap.Error(err))
	}
	sweeper.Start()
	defer sweeper.Stop()

	app := fiber.New()

	// Middleware
	app.Use(middleware.ErrorHandler())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	v1.RegisterRoutes(app)

	// Task event stream
	hub := myws.NewHub()
	go hub.Run()
	handlers.EventHub = hub

	app.Use("/ws", middleware.UseToken, func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		client := &myws.Client{
			UserID: c.Locals("userID").(int),
			Conn:   c,
		}
		hub.Register <- client
		defer func() {
			hub.Unregister <- client
		}()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	addr := fmt.Sprintf(":%d", cfg.AppPort)
	logger.SystemLogger.Info("Application ready", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		logger.ErrorLogger.Error("Application failed to start", zap.Error(err))
	}
}
