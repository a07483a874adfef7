package service

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"taskhub/internal/apperr"
	"taskhub/internal/config"
	"taskhub/internal/models"
	"taskhub/pkg/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Columns clients may sort task listings by. The key is the API name,
// the value the column used in ORDER BY.
var taskSortColumns = map[string]string{
	"created_at": "created_at",
	"title":      "title",
	"status":     "status",
	"priority":   "priority",
	"due_date":   "due_date",
}

const defaultPageSize = 10

// queryer is the query surface shared by *sql.DB and *sql.Tx, so row
// loaders can run inside whichever transaction owns the operation.
type queryer interface {
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// readTx opens the read-only transaction a listing or fetch runs in,
// so its statements see one consistent snapshot.
func readTx() (*sql.Tx, error) {
	tx, err := config.DB.BeginTx(config.Ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, apperr.Internal("error starting transaction", err)
	}
	return tx, nil
}

// TaskFilters narrows a task listing. Zero values mean no constraint;
// supplied filters are AND-combined.
type TaskFilters struct {
	Status   string
	Priority string
	DueDate  *time.Time
}

// TaskInput is the full set of client-writable task fields.
type TaskInput struct {
	Title       string
	Description string
	DueDate     *time.Time
	Status      string
	Priority    string
}

func normalizePage(page, size int) (int, int) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = defaultPageSize
	}
	return page, size
}

func taskOrderClause(sortBy, sortDir string) (string, error) {
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := taskSortColumns[sortBy]
	if !ok {
		return "", apperr.Validation("unknown sort field: "+sortBy, map[string]string{
			"sortBy": "must be one of created_at, title, status, priority, due_date",
		})
	}
	direction := "DESC"
	if strings.EqualFold(sortDir, "ASC") {
		direction = "ASC"
	}
	return fmt.Sprintf("ORDER BY %s %s, id %s", column, direction, direction), nil
}

// validateTaskInput checks the client-writable fields. A full update
// must carry a status; create may omit it and gets the PENDING default.
func validateTaskInput(in TaskInput, requireStatus bool) map[string]string {
	fields := map[string]string{}
	if strings.TrimSpace(in.Title) == "" {
		fields["title"] = "title is required"
	} else if len(in.Title) > 255 {
		fields["title"] = "title must be at most 255 characters"
	}
	if in.Priority == "" {
		fields["priority"] = "priority is required"
	} else if !models.ValidPriority(in.Priority) {
		fields["priority"] = "priority must be one of LOW, MEDIUM, HIGH"
	}
	if in.Status == "" {
		if requireStatus {
			fields["status"] = "status is required"
		}
	} else if !models.ValidStatus(in.Status) {
		fields["status"] = "status must be one of PENDING, IN_PROGRESS, DONE, CANCELLED"
	}
	return fields
}

// attachSubtasks loads the subtasks of every task in tasks and fills in
// the pending counts.
func attachSubtasks(q queryer, tasks []models.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	ids := make([]int, len(tasks))
	index := make(map[int]*models.Task, len(tasks))
	for i := range tasks {
		ids[i] = tasks[i].ID
		tasks[i].Subtasks = []models.Subtask{}
		index[tasks[i].ID] = &tasks[i]
	}

	rows, err := q.Query(
		"SELECT id, task_id, title, status, created_at, updated_at FROM subtasks WHERE task_id = ANY($1) ORDER BY id",
		pq.Array(ids))
	if err != nil {
		return apperr.Internal("error fetching subtasks", err)
	}
	defer rows.Close()

	for rows.Next() {
		var st models.Subtask
		if err := rows.Scan(&st.ID, &st.TaskID, &st.Title, &st.Status, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return apperr.Internal("error scanning subtasks", err)
		}
		task := index[st.TaskID]
		task.Subtasks = append(task.Subtasks, st)
		if st.Status != models.StatusDone {
			task.PendingSubtasks++
		}
	}
	if err := rows.Err(); err != nil {
		return apperr.Internal("error iterating over subtasks", err)
	}
	return nil
}

func scanTasks(rows *sql.Rows) ([]models.Task, error) {
	tasks := []models.Task{}
	for rows.Next() {
		var task models.Task
		var description sql.NullString
		err := rows.Scan(&task.ID, &task.UserID, &task.Title, &description, &task.DueDate,
			&task.Status, &task.Priority, &task.CreatedAt, &task.UpdatedAt)
		if err != nil {
			return nil, apperr.Internal("error scanning tasks", err)
		}
		task.Description = description.String
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("error iterating over tasks", err)
	}
	return tasks, nil
}

func pageOf(tasks []models.Task, page, size int, total int64) *models.Page[models.Task] {
	totalPages := int((total + int64(size) - 1) / int64(size))
	return &models.Page[models.Task]{
		Items:      tasks,
		Page:       page,
		Size:       size,
		TotalItems: total,
		TotalPages: totalPages,
	}
}

// listTasks runs the count and page queries for one WHERE clause inside
// q, so the total and the items come from the same snapshot.
func listTasks(q queryer, whereClause, orderBy string, args []interface{}, page, size int) (*models.Page[models.Task], error) {
	var total int64
	err := q.QueryRow("SELECT COUNT(*) FROM tasks WHERE "+whereClause, args...).Scan(&total)
	if err != nil {
		return nil, apperr.Internal("error counting tasks", err)
	}

	query := fmt.Sprintf(
		"SELECT id, user_id, title, description, due_date, status, priority, created_at, updated_at FROM tasks WHERE %s %s LIMIT $%d OFFSET $%d",
		whereClause, orderBy, len(args)+1, len(args)+2)
	args = append(args, size, page*size)

	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, apperr.Internal("error fetching tasks", err)
	}
	defer rows.Close()

	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, err
	}
	if err := attachSubtasks(q, tasks); err != nil {
		return nil, err
	}
	return pageOf(tasks, page, size, total), nil
}

// ListTasks returns one page of the user's tasks matching the supplied
// filters, each carrying its subtasks and pending-subtask count.
func ListTasks(userID int, filters TaskFilters, page, size int, sortBy, sortDir string) (*models.Page[models.Task], error) {
	page, size = normalizePage(page, size)
	orderBy, err := taskOrderClause(sortBy, sortDir)
	if err != nil {
		return nil, err
	}

	where := []string{"user_id = $1"}
	args := []interface{}{userID}
	if filters.Status != "" {
		if !models.ValidStatus(filters.Status) {
			return nil, apperr.Validation("invalid status filter", map[string]string{
				"status": "status must be one of PENDING, IN_PROGRESS, DONE, CANCELLED",
			})
		}
		args = append(args, filters.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filters.Priority != "" {
		if !models.ValidPriority(filters.Priority) {
			return nil, apperr.Validation("invalid priority filter", map[string]string{
				"priority": "priority must be one of LOW, MEDIUM, HIGH",
			})
		}
		args = append(args, filters.Priority)
		where = append(where, fmt.Sprintf("priority = $%d", len(args)))
	}
	if filters.DueDate != nil {
		args = append(args, *filters.DueDate)
		where = append(where, fmt.Sprintf("due_date = $%d", len(args)))
	}

	tx, err := readTx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result, err := listTasks(tx, strings.Join(where, " AND "), orderBy, args, page, size)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.Internal("error committing task listing", err)
	}
	return result, nil
}

// ListOverdueTasks returns one page of the user's tasks whose due date
// is strictly before today.
func ListOverdueTasks(userID int, page, size int, sortBy, sortDir string) (*models.Page[models.Task], error) {
	page, size = normalizePage(page, size)
	orderBy, err := taskOrderClause(sortBy, sortDir)
	if err != nil {
		return nil, err
	}

	tx, err := readTx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result, err := listTasks(tx, "user_id = $1 AND due_date < CURRENT_DATE", orderBy,
		[]interface{}{userID}, page, size)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.Internal("error committing task listing", err)
	}
	return result, nil
}

// getTask loads one owned task with its subtasks through q.
func getTask(q queryer, userID, taskID int) (*models.Task, error) {
	var task models.Task
	var description sql.NullString
	err := q.QueryRow(
		"SELECT id, user_id, title, description, due_date, status, priority, created_at, updated_at FROM tasks WHERE id = $1 AND user_id = $2",
		taskID, userID).Scan(&task.ID, &task.UserID, &task.Title, &description, &task.DueDate,
		&task.Status, &task.Priority, &task.CreatedAt, &task.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("TASK_NOT_FOUND", "task not found")
	}
	if err != nil {
		return nil, apperr.Internal("error fetching task", err)
	}
	task.Description = description.String

	tasks := []models.Task{task}
	if err := attachSubtasks(q, tasks); err != nil {
		return nil, err
	}
	return &tasks[0], nil
}

// GetTask returns the task if it exists and belongs to userID. A task
// owned by someone else is reported not found, never forbidden.
func GetTask(userID, taskID int) (*models.Task, error) {
	tx, err := readTx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	task, err := getTask(tx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.Internal("error committing task fetch", err)
	}
	return task, nil
}

// CreateTask validates and persists a new task for userID. Status
// defaults to PENDING when omitted.
func CreateTask(userID int, in TaskInput) (*models.Task, error) {
	if fields := validateTaskInput(in, false); len(fields) > 0 {
		return nil, apperr.Validation("task validation failed", fields)
	}
	if in.Status == "" {
		in.Status = models.StatusPending
	}

	tx, err := config.DB.Begin()
	if err != nil {
		return nil, apperr.Internal("error starting transaction", err)
	}
	defer tx.Rollback()

	var taskID int
	err = tx.QueryRow(
		"INSERT INTO tasks (user_id, title, description, due_date, status, priority) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id",
		userID, in.Title, in.Description, in.DueDate, in.Status, in.Priority).Scan(&taskID)
	if err != nil {
		return nil, apperr.Internal("error creating task", err)
	}

	task, err := getTask(tx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.Internal("error committing task creation", err)
	}
	return task, nil
}

// UpdateTask replaces every client-writable field of the task. The
// replacement must carry a status: an omitted status is a validation
// failure, never a silent reset. Setting status to DONE is gated on the
// same pending-subtask rule as UpdateTaskStatus.
func UpdateTask(userID, taskID int, in TaskInput) (*models.Task, error) {
	if fields := validateTaskInput(in, true); len(fields) > 0 {
		return nil, apperr.Validation("task validation failed", fields)
	}

	tx, err := config.DB.Begin()
	if err != nil {
		return nil, apperr.Internal("error starting transaction", err)
	}
	defer tx.Rollback()

	if err := requireOwnedTask(tx, userID, taskID); err != nil {
		return nil, err
	}
	if in.Status == models.StatusDone {
		if err := requireNoPendingSubtasks(tx, taskID); err != nil {
			return nil, err
		}
	}

	_, err = tx.Exec(
		"UPDATE tasks SET title = $1, description = $2, due_date = $3, status = $4, priority = $5, updated_at = CURRENT_TIMESTAMP WHERE id = $6",
		in.Title, in.Description, in.DueDate, in.Status, in.Priority, taskID)
	if err != nil {
		return nil, apperr.Internal("error updating task", err)
	}

	task, err := getTask(tx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.Internal("error committing task update", err)
	}
	return task, nil
}

// UpdateTaskStatus moves the task to status. Completing a task with
// pending subtasks is a conflict.
func UpdateTaskStatus(userID, taskID int, status string) (*models.Task, error) {
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

	if err := requireOwnedTask(tx, userID, taskID); err != nil {
		return nil, err
	}
	if status == models.StatusDone {
		if err := requireNoPendingSubtasks(tx, taskID); err != nil {
			return nil, err
		}
	}

	_, err = tx.Exec(
		"UPDATE tasks SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		status, taskID)
	if err != nil {
		return nil, apperr.Internal("error updating task status", err)
	}

	task, err := getTask(tx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.Internal("error committing status update", err)
	}
	return task, nil
}

// DeleteTask removes the task with its subtasks and attachments. The
// database cascade covers the rows; attachment files are unlinked
// best-effort after the transaction commits.
func DeleteTask(userID, taskID int) error {
	tx, err := config.DB.Begin()
	if err != nil {
		return apperr.Internal("error starting transaction", err)
	}
	defer tx.Rollback()

	if err := requireOwnedTask(tx, userID, taskID); err != nil {
		return err
	}

	rows, err := tx.Query("SELECT storage_path FROM attachments WHERE task_id = $1", taskID)
	if err != nil {
		return apperr.Internal("error fetching attachment paths", err)
	}
	paths := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return apperr.Internal("error scanning attachment paths", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return apperr.Internal("error iterating over attachment paths", err)
	}
	rows.Close()

	if _, err := tx.Exec("DELETE FROM tasks WHERE id = $1", taskID); err != nil {
		return apperr.Internal("error deleting task", err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Internal("error committing task deletion", err)
	}

	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			logger.ErrorLogger.Error("Error removing attachment file",
				zap.String("path", p), zap.Error(err))
		}
	}
	return nil
}

// requireOwnedTask verifies through q that the task exists and belongs
// to userID. Wrong-owner and absent collapse to the same not found.
func requireOwnedTask(q queryer, userID, taskID int) error {
	var id int
	err := q.QueryRow("SELECT id FROM tasks WHERE id = $1 AND user_id = $2", taskID, userID).Scan(&id)
	if err == sql.ErrNoRows {
		return apperr.NotFound("TASK_NOT_FOUND", "task not found")
	}
	if err != nil {
		return apperr.Internal("error fetching task", err)
	}
	return nil
}

func requireNoPendingSubtasks(q queryer, taskID int) error {
	var pending int
	err := q.QueryRow(
		"SELECT COUNT(*) FROM subtasks WHERE task_id = $1 AND status <> $2",
		taskID, models.StatusDone).Scan(&pending)
	if err != nil {
		return apperr.Internal("error counting pending subtasks", err)
	}
	if pending > 0 {
		return apperr.Conflict("TASK_WITH_PENDING_SUBTASKS", "cannot complete task with pending subtasks")
	}
	return nil
}
