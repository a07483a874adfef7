package handlers

import (
	"taskhub/internal/service"
	"taskhub/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Attachment handlers

func ListAttachments(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	taskID, err := c.ParamsInt("taskId")
	if err != nil {
		return badRequest(c, "taskId", "Invalid task ID")
	}

	attachments, err := service.ListAttachments(userID, taskID)
	if err != nil {
		return fail(c, err)
	}

	logger.AuditLogger.Info("Attachments fetched successfully", zap.Int("task_id", taskID))
	return c.JSON(fiber.Map{
		"message": "Attachments fetched successfully",
		"success": true,
		"status":  200,
		"data":    attachments,
	})
}

func UploadAttachment(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	taskID, err := c.ParamsInt("taskId")
	if err != nil {
		return badRequest(c, "taskId", "Invalid task ID")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		logger.ErrorLogger.Error("Error reading uploaded file", zap.Error(err))
		return badRequest(c, "file", "Missing file in form data")
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.ErrorLogger.Error("Error opening uploaded file", zap.Error(err))
		return badRequest(c, "file", "Error reading uploaded file")
	}
	defer file.Close()

	attachment, err := service.UploadAttachment(userID, taskID, file,
		fileHeader.Filename, fileHeader.Header.Get("Content-Type"), fileHeader.Size)
	if err != nil {
		return fail(c, err)
	}

	logger.AuditLogger.Info("Attachment uploaded",
		zap.Int("attachment_id", attachment.ID), zap.String("filename", attachment.StorageName))
	return c.Status(201).JSON(fiber.Map{
		"message": "Attachment uploaded successfully",
		"success": true,
		"status":  201,
		"data":    attachment,
	})
}

func DownloadAttachment(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	taskID, err := c.ParamsInt("taskId")
	if err != nil {
		return badRequest(c, "taskId", "Invalid task ID")
	}
	attachmentID, err := c.ParamsInt("id")
	if err != nil {
		return badRequest(c, "id", "Invalid attachment ID")
	}

	attachment, err := service.OpenAttachment(userID, taskID, attachmentID)
	if err != nil {
		return fail(c, err)
	}

	logger.AuditLogger.Info("Attachment downloaded", zap.Int("attachment_id", attachment.ID))
	c.Set("Content-Type", attachment.MimeType)
	return c.Download(attachment.StoragePath, attachment.OriginalName)
}

func DeleteAttachment(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	taskID, err := c.ParamsInt("taskId")
	if err != nil {
		return badRequest(c, "taskId", "Invalid task ID")
	}
	attachmentID, err := c.ParamsInt("id")
	if err != nil {
		return badRequest(c, "id", "Invalid attachment ID")
	}

	if err := service.DeleteAttachment(userID, taskID, attachmentID); err != nil {
		return fail(c, err)
	}

	logger.AuditLogger.Info("Attachment deleted", zap.Int("attachment_id", attachmentID))
	return c.JSON(fiber.Map{
		"message": "Attachment deleted successfully",
		"success": true,
		"status":  200,
	})
}
