package handlers

import (
	"time"

	"taskhub/internal/service"
	"taskhub/internal/websocket"
	"taskhub/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Task handlers

type taskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
}

func (r taskRequest) toInput() (service.TaskInput, bool) {
	in := service.TaskInput{
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		Priority:    r.Priority,
	}
	if r.DueDate != "" {
		due, err := time.Parse("2006-01-02", r.DueDate)
		if err != nil {
			return in, false
		}
		in.DueDate = &due
	}
	return in, true
}

func parseDueDateFilter(c *fiber.Ctx) (*time.Time, bool) {
	raw := c.Query("dueDate")
	if raw == "" {
		return nil, true
	}
	due, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, false
	}
	return &due, true
}

func ListTasks(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	dueDate, ok := parseDueDateFilter(c)
	if !ok {
		return badRequest(c, "dueDate", "Invalid dueDate, expected YYYY-MM-DD")
	}
	filters := service.TaskFilters{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		DueDate:  dueDate,
	}

	page, err := service.ListTasks(userID, filters,
		c.QueryInt("page", 0), c.QueryInt("size", 10),
		c.Query("sortBy", "created_at"), c.Query("sortDir", "DESC"))
	if err != nil {
		return fail(c, err)
	}

	logger.AuditLogger.Info("Tasks fetched successfully", zap.Int("user_id", userID))
	return c.JSON(fiber.Map{
		"message": "Tasks fetched successfully",
		"success": true,
		"status":  200,
		"data":    page,
	})
}

func ListOverdueTasks(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	page, err := service.ListOverdueTasks(userID,
		c.QueryInt("page", 0), c.QueryInt("size", 10),
		c.Query("sortBy", "due_date"), c.Query("sortDir", "ASC"))
	if err != nil {
		return fail(c, err)
	}

	logger.AuditLogger.Info("Overdue tasks fetched", zap.Int("user_id", userID))
	return c.JSON(fiber.Map{
		"message": "Overdue tasks fetched successfully",
		"success": true,
		"status":  200,
		"data":    page,
	})
}

func GetTask(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	taskID, err := c.ParamsInt("id")
	if err != nil {
		return badRequest(c, "id", "Invalid task ID")
	}

	task, err := service.GetTask(userID, taskID)
	if err != nil {
		return fail(c, err)
	}

	logger.AuditLogger.Info("Task found", zap.Int("task_id", task.ID))
	return c.JSON(fiber.Map{
		"message": "Task found",
		"success": true,
		"status":  200,
		"data":    task,
	})
}

func CreateTask(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	var req taskRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in create task", zap.Error(err))
		return badRequest(c, "body", "Bad request")
	}
	in, ok := req.toInput()
	if !ok {
		return badRequest(c, "due_date", "Invalid due_date, expected YYYY-MM-DD")
	}

	task, err := service.CreateTask(userID, in)
	if err != nil {
		return fail(c, err)
	}

	EventHub.Publish(websocket.EventTaskCreated, userID, task.ID)
	logger.AuditLogger.Info("Task created successfully", zap.Int("task_id", task.ID))
	return c.Status(201).JSON(fiber.Map{
		"message": "Task created successfully",
		"success": true,
		"status":  201,
		"data":    task,
	})
}

func UpdateTask(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	taskID, err := c.ParamsInt("id")
	if err != nil {
		return badRequest(c, "id", "Invalid task ID")
	}

	var req taskRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in update task", zap.Error(err))
		return badRequest(c, "body", "Bad request")
	}
	in, ok := req.toInput()
	if !ok {
		return badRequest(c, "due_date", "Invalid due_date, expected YYYY-MM-DD")
	}

	task, err := service.UpdateTask(userID, taskID, in)
	if err != nil {
		return fail(c, err)
	}

	EventHub.Publish(websocket.EventTaskUpdated, userID, task.ID)
	logger.AuditLogger.Info("Task updated", zap.Int("task_id", task.ID))
	return c.JSON(fiber.Map{
		"message": "Task updated successfully",
		"success": true,
		"status":  200,
		"data":    task,
	})
}

func UpdateTaskStatus(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	taskID, err := c.ParamsInt("id")
	if err != nil {
		return badRequest(c, "id", "Invalid task ID")
	}

	type statusRequest struct {
		Status string `json:"status"`
	}
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in update task status", zap.Error(err))
		return badRequest(c, "body", "Bad request")
	}

	task, err := service.UpdateTaskStatus(userID, taskID, req.Status)
	if err != nil {
		return fail(c, err)
	}

	EventHub.Publish(websocket.EventTaskStatus, userID, task.ID)
	logger.AuditLogger.Info("Task status updated",
		zap.Int("task_id", task.ID), zap.String("status", task.Status))
	return c.JSON(fiber.Map{
		"message": "Task status updated successfully",
		"success": true,
		"status":  200,
		"data":    task,
	})
}

func DeleteTask(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	taskID, err := c.ParamsInt("id")
	if err != nil {
		return badRequest(c, "id", "Invalid task ID")
	}

	if err := service.DeleteTask(userID, taskID); err != nil {
		return fail(c, err)
	}

	EventHub.Publish(websocket.EventTaskDeleted, userID, taskID)
	logger.AuditLogger.Info("Task deleted", zap.Int("task_id", taskID))
	return c.JSON(fiber.Map{
		"message": "Task deleted successfully",
		"success": true,
		"status":  200,
	})
}
