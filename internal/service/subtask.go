package service

import (
	"database/sql"
	"fmt"
	"strings"

	"taskhub/internal/apperr"
	"taskhub/internal/config"
	"taskhub/internal/models"
)

var subtaskSortColumns = map[string]string{
	"created_at": "created_at",
	"title":      "title",
	"status":     "status",
}

func subtaskOrderClause(sortBy, sortDir string) (string, error) {
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := subtaskSortColumns[sortBy]
	if !ok {
		return "", apperr.Validation("unknown sort field: "+sortBy, map[string]string{
			"sortBy": "must be one of created_at, title, status",
		})
	}
	direction := "DESC"
	if strings.EqualFold(sortDir, "ASC") {
		direction = "ASC"
	}
	return fmt.Sprintf("ORDER BY s.%s %s, s.id %s", column, direction, direction), nil
}

func validateSubtaskInput(title, status string, requireStatus bool) map[string]string {
	fields := map[string]string{}
	if strings.TrimSpace(title) == "" {
		fields["title"] = "title is required"
	} else if len(title) > 255 {
		fields["title"] = "title must be at most 255 characters"
	}
	if status == "" {
		if requireStatus {
			fields["status"] = "status is required"
		}
	} else if !models.ValidStatus(status) {
		fields["status"] = "status must be one of PENDING, IN_PROGRESS, DONE, CANCELLED"
	}
	return fields
}

// getSubtask resolves a subtask through its parent task's owner via q.
// A subtask under someone else's task is not found.
func getSubtask(q queryer, userID, subtaskID int) (*models.Subtask, error) {
	var st models.Subtask
	err := q.QueryRow(
		`SELECT s.id, s.task_id, s.title, s.status, s.created_at, s.updated_at
		 FROM subtasks s JOIN tasks t ON t.id = s.task_id
		 WHERE s.id = $1 AND t.user_id = $2`,
		subtaskID, userID).Scan(&st.ID, &st.TaskID, &st.Title, &st.Status, &st.CreatedAt, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("SUBTASK_NOT_FOUND", "subtask not found")
	}
	if err != nil {
		return nil, apperr.Internal("error fetching subtask", err)
	}
	return &st, nil
}

// ListSubtasks returns one page of the subtasks of the user's task,
// optionally narrowed to one status.
func ListSubtasks(userID, taskID int, status string, page, size int, sortBy, sortDir string) (*models.Page[models.Subtask], error) {
	page, size = normalizePage(page, size)
	orderBy, err := subtaskOrderClause(sortBy, sortDir)
	if err != nil {
		return nil, err
	}
	if status != "" && !models.ValidStatus(status) {
		return nil, apperr.Validation("invalid status filter", map[string]string{
			"status": "status must be one of PENDING, IN_PROGRESS, DONE, CANCELLED",
		})
	}

	tx, err := readTx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// The parent task must belong to the caller before anything is listed.
	if err := requireOwnedTask(tx, userID, taskID); err != nil {
		return nil, err
	}

	where := "s.task_id = $1"
	args := []interface{}{taskID}
	if status != "" {
		args = append(args, status)
		where += fmt.Sprintf(" AND s.status = $%d", len(args))
	}

	var total int64
	err = tx.QueryRow("SELECT COUNT(*) FROM subtasks s WHERE "+where, args...).Scan(&total)
	if err != nil {
		return nil, apperr.Internal("error counting subtasks", err)
	}

	query := fmt.Sprintf(
		"SELECT s.id, s.task_id, s.title, s.status, s.created_at, s.updated_at FROM subtasks s WHERE %s %s LIMIT $%d OFFSET $%d",
		where, orderBy, len(args)+1, len(args)+2)
	args = append(args, size, page*size)

	rows, err := tx.Query(query, args...)
	if err != nil {
		return nil, apperr.Internal("error fetching subtasks", err)
	}
	defer rows.Close()

	subtasks := []models.Subtask{}
	for rows.Next() {
		var st models.Subtask
		if err := rows.Scan(&st.ID, &st.TaskID, &st.Title, &st.Status, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, apperr.Internal("error scanning subtasks", err)
		}
		subtasks = append(subtasks, st)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("error iterating over subtasks", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.Internal("error committing subtask listing", err)
	}

	totalPages := int((total + int64(size) - 1) / int64(size))
	return &models.Page[models.Subtask]{
		Items:      subtasks,
		Page:       page,
		Size:       size,
		TotalItems: total,
		TotalPages: totalPages,
	}, nil
}

// GetSubtask resolves a subtask through its parent task's owner. A
// subtask under someone else's task is not found.
func GetSubtask(userID, subtaskID int) (*models.Subtask, error) {
	return getSubtask(config.DB, userID, subtaskID)
}

// CreateSubtask adds a subtask under the user's task. Status defaults
// to PENDING when omitted.
func CreateSubtask(userID, taskID int, title, status string) (*models.Subtask, error) {
	if fields := validateSubtaskInput(title, status, false); len(fields) > 0 {
		return nil, apperr.Validation("subtask validation failed", fields)
	}
	if status == "" {
		status = models.StatusPending
	}

	tx, err := config.DB.Begin()
	if err != nil {
		return nil, apperr.Internal("error starting transaction", err)
	}
	defer tx.Rollback()

	if err := requireOwnedTask(tx, userID, taskID); err != nil {
		return nil, err
	}

	var st models.Subtask
	err = tx.QueryRow(
		"INSERT INTO subtasks (task_id, title, status) VALUES ($1, $2, $3) RETURNING id, task_id, title, status, created_at, updated_at",
		taskID, title, status).Scan(&st.ID, &st.TaskID, &st.Title, &st.Status, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, apperr.Internal("error creating subtask", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.Internal("error committing subtask creation", err)
	}
	return &st, nil
}

// UpdateSubtask replaces the subtask's title and status.
func UpdateSubtask(userID, subtaskID int, title, status string) (*models.Subtask, error) {
	if fields := validateSubtaskInput(title, status, true); len(fields) > 0 {
		return nil, apperr.Validation("subtask validation failed", fields)
	}

	tx, err := config.DB.Begin()
	if err != nil {
		return nil, apperr.Internal("error starting transaction", err)
	}
	defer tx.Rollback()

	if _, err := getSubtask(tx, userID, subtaskID); err != nil {
		return nil, err
	}

	var st models.Subtask
	err = tx.QueryRow(
		"UPDATE subtasks SET title = $1, status = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3 RETURNING id, task_id, title, status, created_at, updated_at",
		title, status, subtaskID).Scan(&st.ID, &st.TaskID, &st.Title, &st.Status, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, apperr.Internal("error updating subtask", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.Internal("error committing subtask update", err)
	}
	return &st, nil
}

// UpdateSubtaskStatus moves the subtask to status.
func UpdateSubtaskStatus(userID, subtaskID int, status string) (*models.Subtask, error) {
	if !models.ValidStatus(status) {
		return nil, apperr.Validation("invalid status", map[string]string{
			"status": "status must be one of PENDING, IN_PROGRESS, DONE, CANCELLED",
		})
	}

	tx, err := config.DB.Begin()
	if err != nil {
		return nil, apperr.Internal("error starting transaction", err)
	}
	defer tx.Rollback()

	if _, err := getSubtask(tx, userID, subtaskID); err != nil {
		return nil, err
	}

	var st models.Subtask
	err = tx.QueryRow(
		"UPDATE subtasks SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 RETURNING id, task_id, title, status, created_at, updated_at",
		status, subtaskID).Scan(&st.ID, &st.TaskID, &st.Title, &st.Status, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, apperr.Internal("error updating subtask status", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.Internal("error committing subtask status update", err)
	}
	return &st, nil
}

// DeleteSubtask removes the subtask.
func DeleteSubtask(userID, subtaskID int) error {
	tx, err := config.DB.Begin()
	if err != nil {
		return apperr.Internal("error starting transaction", err)
	}
	defer tx.Rollback()

	if _, err := getSubtask(tx, userID, subtaskID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM subtasks WHERE id = $1", subtaskID); err != nil {
		return apperr.Internal("error deleting subtask", err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Internal("error committing subtask deletion", err)
	}
	return nil
}

// CountPendingSubtasks counts the subtasks of the user's task whose
// status is not DONE.
func CountPendingSubtasks(userID, taskID int) (int64, error) {
	tx, err := readTx()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if err := requireOwnedTask(tx, userID, taskID); err != nil {
		return 0, err
	}

	var pending int64
	err = tx.QueryRow(
		"SELECT COUNT(*) FROM subtasks WHERE task_id = $1 AND status <> $2",
		taskID, models.StatusDone).Scan(&pending)
	if err != nil {
		return 0, apperr.Internal("error counting pending subtasks", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, apperr.Internal("error committing pending count", err)
	}
	return pending, nil
}
