package v1

import (
	"taskhub/internal/api/v1/handlers"
	"taskhub/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	// Auth
	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", handlers.Register)
	authRoutes.Post("/login", handlers.Login)
	authRoutes.Post("/logout", handlers.Logout)

	// Task
	taskRoutes := api.Group("/tasks", middleware.UseToken)
	taskRoutes.Get("/", handlers.ListTasks)
	taskRoutes.Get("/overdue", handlers.ListOverdueTasks)
	taskRoutes.Post("/", handlers.CreateTask)
	taskRoutes.Get("/:id", handlers.GetTask)
	taskRoutes.Put("/:id", handlers.UpdateTask)
	taskRoutes.Patch("/:id/status", handlers.UpdateTaskStatus)
	taskRoutes.Delete("/:id", handlers.DeleteTask)

	// Attachments live under their task
	taskRoutes.Get("/:taskId/attachments", handlers.ListAttachments)
	taskRoutes.Post("/:taskId/attachments", handlers.UploadAttachment)
	taskRoutes.Get("/:taskId/attachments/:id/download", handlers.DownloadAttachment)
	taskRoutes.Delete("/:taskId/attachments/:id", handlers.DeleteAttachment)

	// Subtask
	subtaskRoutes := api.Group("/subtasks", middleware.UseToken)
	subtaskRoutes.Get("/task/:taskId", handlers.ListSubtasks)
	subtaskRoutes.Get("/task/:taskId/count-pending", handlers.CountPendingSubtasks)
	subtaskRoutes.Post("/task/:taskId", handlers.CreateSubtask)
	subtaskRoutes.Get("/:id", handlers.GetSubtask)
	subtaskRoutes.Put("/:id", handlers.UpdateSubtask)
	subtaskRoutes.Patch("/:id/status", handlers.UpdateSubtaskStatus)
	subtaskRoutes.Delete("/:id", handlers.DeleteSubtask)
}
