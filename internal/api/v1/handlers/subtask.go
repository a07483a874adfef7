package handlers

import (
	"taskhub/internal/service"
	"taskhub/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Subtask handlers

func ListSubtasks(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	taskID, err := c.ParamsInt("taskId")
	if err != nil {
		return badRequest(c, "taskId", "Invalid task ID")
	}

	page, err := service.ListSubtasks(userID, taskID, c.Query("status"),
		c.QueryInt("page", 0), c.QueryInt("size", 10),
		c.Query("sortBy", "created_at"), c.Query("sortDir", "DESC"))
	if err != nil {
		return fail(c, err)
	}

	logger.AuditLogger.Info("Subtasks fetched successfully", zap.Int("task_id", taskID))
	return c.JSON(fiber.Map{
		"message": "Subtasks fetched successfully",
		"success": true,
		"status":  200,
		"data":    page,
	})
}

func CountPendingSubtasks(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	taskID, err := c.ParamsInt("taskId")
	if err != nil {
		return badRequest(c, "taskId", "Invalid task ID")
	}

	pending, err := service.CountPendingSubtasks(userID, taskID)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Pending subtasks counted successfully",
		"success": true,
		"status":  200,
		"data": fiber.Map{
			"task_id": taskID,
			"pending": pending,
		},
	})
}

func GetSubtask(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	subtaskID, err := c.ParamsInt("id")
	if err != nil {
		return badRequest(c, "id", "Invalid subtask ID")
	}

	subtask, err := service.GetSubtask(userID, subtaskID)
	if err != nil {
		return fail(c, err)
	}

	logger.AuditLogger.Info("Subtask found", zap.Int("subtask_id", subtask.ID))
	return c.JSON(fiber.Map{
		"message": "Subtask found",
		"success": true,
		"status":  200,
		"data":    subtask,
	})
}

func CreateSubtask(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	taskID, err := c.ParamsInt("taskId")
	if err != nil {
		return badRequest(c, "taskId", "Invalid task ID")
	}

	type subtaskRequest struct {
		Title  string `json:"title"`
		Status string `json:"status"`
	}
	var req subtaskRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in create subtask", zap.Error(err))
		return badRequest(c, "body", "Bad request")
	}

	subtask, err := service.CreateSubtask(userID, taskID, req.Title, req.Status)
	if err != nil {
		return fail(c, err)
	}

	logger.AuditLogger.Info("Subtask created successfully", zap.Int("subtask_id", subtask.ID))
	return c.Status(201).JSON(fiber.Map{
		"message": "Subtask created successfully",
		"success": true,
		"status":  201,
		"data":    subtask,
	})
}

func UpdateSubtask(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	subtaskID, err := c.ParamsInt("id")
	if err != nil {
		return badRequest(c, "id", "Invalid subtask ID")
	}

	type subtaskRequest struct {
		Title  string `json:"title"`
		Status string `json:"status"`
	}
	var req subtaskRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in update subtask", zap.Error(err))
		return badRequest(c, "body", "Bad request")
	}

	subtask, err := service.UpdateSubtask(userID, subtaskID, req.Title, req.Status)
	if err != nil {
		return fail(c, err)
	}

	logger.AuditLogger.Info("Subtask updated", zap.Int("subtask_id", subtask.ID))
	return c.JSON(fiber.Map{
		"message": "Subtask updated successfully",
		"success": true,
		"status":  200,
		"data":    subtask,
	})
}

func UpdateSubtaskStatus(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	subtaskID, err := c.ParamsInt("id")
	if err != nil {
		return badRequest(c, "id", "Invalid subtask ID")
	}

	type statusRequest struct {
		Status string `json:"status"`
	}
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in update subtask status", zap.Error(err))
		return badRequest(c, "body", "Bad request")
	}

	subtask, err := service.UpdateSubtaskStatus(userID, subtaskID, req.Status)
	if err != nil {
		return fail(c, err)
	}

	logger.AuditLogger.Info("Subtask status updated",
		zap.Int("subtask_id", subtask.ID), zap.String("status", subtask.Status))
	return c.JSON(fiber.Map{
		"message": "Subtask status updated successfully",
		"success": true,
		"status":  200,
		"data":    subtask,
	})
}

func DeleteSubtask(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	subtaskID, err := c.ParamsInt("id")
	if err != nil {
		return badRequest(c, "id", "Invalid subtask ID")
	}

	if err := service.DeleteSubtask(userID, subtaskID); err != nil {
		return fail(c, err)
	}

	logger.AuditLogger.Info("Subtask deleted", zap.Int("subtask_id", subtaskID))
	return c.JSON(fiber.Map{
		"message": "Subtask deleted successfully",
		"success": true,
		"status":  200,
	})
}
