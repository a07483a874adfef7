package service

import (
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"taskhub/internal/apperr"
	"taskhub/internal/config"
	"taskhub/internal/models"
	"taskhub/pkg/crypto"
	"taskhub/pkg/logger"

	"go.uber.org/zap"
)

// sweepMinAge keeps the orphan sweep from racing an upload that has
// written its file but not yet committed the attachment row.
const sweepMinAge = time.Hour

// ListAttachments returns every attachment of the user's task.
func ListAttachments(userID, taskID int) ([]models.Attachment, error) {
	tx, err := readTx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := requireOwnedTask(tx, userID, taskID); err != nil {
		return nil, err
	}

	rows, err := tx.Query(
		"SELECT id, task_id, original_name, storage_name, mime_type, size_bytes, storage_path, created_at FROM attachments WHERE task_id = $1 ORDER BY id",
		taskID)
	if err != nil {
		return nil, apperr.Internal("error fetching attachments", err)
	}
	defer rows.Close()

	attachments := []models.Attachment{}
	for rows.Next() {
		var a models.Attachment
		err := rows.Scan(&a.ID, &a.TaskID, &a.OriginalName, &a.StorageName, &a.MimeType,
			&a.SizeBytes, &a.StoragePath, &a.CreatedAt)
		if err != nil {
			return nil, apperr.Internal("error scanning attachments", err)
		}
		attachments = append(attachments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("error iterating over attachments", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.Internal("error committing attachment listing", err)
	}
	return attachments, nil
}

// UploadAttachment stores the uploaded bytes under a collision-free
// name and records the attachment. The row is only written after the
// file write succeeds; a failed row write removes the file again. File
// I/O sits between the ownership check and the insert, so this is the
// one operation that cannot run as a single transaction.
func UploadAttachment(userID, taskID int, blob io.Reader, originalName, mimeType string, sizeBytes int64) (*models.Attachment, error) {
	if sizeBytes <= 0 || strings.TrimSpace(originalName) == "" {
		return nil, apperr.Validation("file must not be empty", map[string]string{
			"file": "an attachment needs a filename and at least one byte",
		})
	}
	if len(originalName) > 255 {
		return nil, apperr.Validation("filename too long", map[string]string{
			"file": "filename must be at most 255 characters",
		})
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	if len(mimeType) > 100 {
		mimeType = mimeType[:100]
	}

	if err := requireOwnedTask(config.DB, userID, taskID); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(config.UploadDir, os.ModePerm); err != nil {
		return nil, apperr.StorageIO("error creating upload directory", err)
	}

	storageName := crypto.StorageName(originalName)
	storagePath := filepath.Join(config.UploadDir, storageName)

	dst, err := os.Create(storagePath)
	if err != nil {
		return nil, apperr.StorageIO("error creating attachment file", err)
	}
	written, err := io.Copy(dst, blob)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(storagePath)
		return nil, apperr.StorageIO("error writing attachment file", err)
	}

	var attachmentID int
	err = config.DB.QueryRow(
		"INSERT INTO attachments (task_id, original_name, storage_name, mime_type, size_bytes, storage_path) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id",
		taskID, originalName, storageName, mimeType, written, storagePath).Scan(&attachmentID)
	if err != nil {
		os.Remove(storagePath)
		return nil, apperr.Internal("error recording attachment", err)
	}

	return getAttachment(config.DB, taskID, attachmentID)
}

// OpenAttachment resolves the attachment of the user's task and checks
// that its file is still readable. A missing row or missing file are
// both not found.
func OpenAttachment(userID, taskID, attachmentID int) (*models.Attachment, error) {
	tx, err := readTx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := requireOwnedTask(tx, userID, taskID); err != nil {
		return nil, err
	}

	attachment, err := getAttachment(tx, taskID, attachmentID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.Internal("error committing attachment fetch", err)
	}

	info, err := os.Stat(attachment.StoragePath)
	if err != nil || info.IsDir() {
		return nil, apperr.NotFound("ATTACHMENT_NOT_FOUND", "attachment file is not readable")
	}
	return attachment, nil
}

// DeleteAttachment removes the attachment row and attempts to unlink
// the file. An unlink failure is logged, never surfaced: the record is
// gone either way.
func DeleteAttachment(userID, taskID, attachmentID int) error {
	tx, err := config.DB.Begin()
	if err != nil {
		return apperr.Internal("error starting transaction", err)
	}
	defer tx.Rollback()

	if err := requireOwnedTask(tx, userID, taskID); err != nil {
		return err
	}

	attachment, err := getAttachment(tx, taskID, attachmentID)
	if err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM attachments WHERE id = $1", attachmentID); err != nil {
		return apperr.Internal("error deleting attachment", err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Internal("error committing attachment deletion", err)
	}

	if err := os.Remove(attachment.StoragePath); err != nil && !os.IsNotExist(err) {
		logger.ErrorLogger.Error("Error removing attachment file",
			zap.String("path", attachment.StoragePath), zap.Error(err))
	}
	return nil
}

// SweepOrphanAttachments removes files in the upload directory that no
// attachment row references anymore. Best-effort deletes leave such
// files behind; the sweep reconciles them. Returns the number removed.
func SweepOrphanAttachments() (int, error) {
	entries, err := os.ReadDir(config.UploadDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, apperr.StorageIO("error reading upload directory", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || time.Since(info.ModTime()) < sweepMinAge {
			continue
		}

		var id int
		err = config.DB.QueryRow("SELECT id FROM attachments WHERE storage_name = $1", entry.Name()).Scan(&id)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return removed, apperr.Internal("error checking attachment row", err)
		}

		path := filepath.Join(config.UploadDir, entry.Name())
		if err := os.Remove(path); err != nil {
			logger.ErrorLogger.Error("Error removing orphaned file",
				zap.String("path", path), zap.Error(err))
			continue
		}
		logger.SystemLogger.Info("Removed orphaned attachment file", zap.String("path", path))
		removed++
	}
	return removed, nil
}

func getAttachment(q queryer, taskID, attachmentID int) (*models.Attachment, error) {
	var a models.Attachment
	err := q.QueryRow(
		"SELECT id, task_id, original_name, storage_name, mime_type, size_bytes, storage_path, created_at FROM attachments WHERE id = $1 AND task_id = $2",
		attachmentID, taskID).Scan(&a.ID, &a.TaskID, &a.OriginalName, &a.StorageName, &a.MimeType,
		&a.SizeBytes, &a.StoragePath, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("ATTACHMENT_NOT_FOUND", "attachment not found")
	}
	if err != nil {
		return nil, apperr.Internal("error fetching attachment", err)
	}
	return &a, nil
}
