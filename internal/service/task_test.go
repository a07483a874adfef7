package service_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"taskhub/internal/apperr"
	"taskhub/internal/config"
	"taskhub/internal/models"
	"taskhub/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTaskDefaultsToPending(t *testing.T) {
	userID := createTestUser(t)

	task, err := service.CreateTask(userID, service.TaskInput{
		Title:    "Write report",
		Priority: models.PriorityHigh,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, task.Status)
	assert.Equal(t, userID, task.UserID)
	assert.False(t, task.CreatedAt.IsZero())
	assert.Empty(t, task.Subtasks)
	assert.Zero(t, task.PendingSubtasks)
}

func TestCreateTaskValidation(t *testing.T) {
	userID := createTestUser(t)

	_, err := service.CreateTask(userID, service.TaskInput{Title: "   ", Priority: models.PriorityLow})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = service.CreateTask(userID, service.TaskInput{Title: "No priority"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = service.CreateTask(userID, service.TaskInput{
		Title:    strings.Repeat("x", 256),
		Priority: models.PriorityLow,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Fields, "title")
}

func TestGetTaskOtherUserIsNotFound(t *testing.T) {
	owner := createTestUser(t)
	stranger := createTestUser(t)
	task := createTestTask(t, owner, service.TaskInput{})

	_, err := service.GetTask(stranger, task.ID)
	require.Error(t, err)
	// wrong owner must be indistinguishable from absent
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	got, err := service.GetTask(owner, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
}

func TestUpdateTaskStatusGatedOnPendingSubtasks(t *testing.T) {
	userID := createTestUser(t)
	task := createTestTask(t, userID, service.TaskInput{})
	pending := createTestSubtask(t, userID, task.ID, "todo", "")
	createTestSubtask(t, userID, task.ID, "already done", models.StatusDone)

	_, err := service.UpdateTaskStatus(userID, task.ID, models.StatusDone)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// status must not have moved
	got, err := service.GetTask(userID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)

	// completing the pending subtask unblocks the task
	_, err = service.UpdateSubtaskStatus(userID, pending.ID, models.StatusDone)
	require.NoError(t, err)

	done, err := service.UpdateTaskStatus(userID, task.ID, models.StatusDone)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDone, done.Status)
}

func TestUpdateTaskFullReplaceGatesDoneToo(t *testing.T) {
	userID := createTestUser(t)
	task := createTestTask(t, userID, service.TaskInput{})
	createTestSubtask(t, userID, task.ID, "still open", "")

	// the full-update path enforces the same completion rule as the
	// status path
	_, err := service.UpdateTask(userID, task.ID, service.TaskInput{
		Title:    "Renamed",
		Status:   models.StatusDone,
		Priority: models.PriorityLow,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	updated, err := service.UpdateTask(userID, task.ID, service.TaskInput{
		Title:       "Renamed",
		Description: "new description",
		DueDate:     dateOffset(3),
		Status:      models.StatusInProgress,
		Priority:    models.PriorityLow,
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, "new description", updated.Description)
	assert.Equal(t, models.StatusInProgress, updated.Status)
	assert.Equal(t, models.PriorityLow, updated.Priority)
	require.NotNil(t, updated.DueDate)
}

func TestUpdateTaskOtherUserIsNotFound(t *testing.T) {
	owner := createTestUser(t)
	stranger := createTestUser(t)
	task := createTestTask(t, owner, service.TaskInput{})

	_, err := service.UpdateTask(stranger, task.ID, service.TaskInput{
		Title:    "Hijacked",
		Status:   models.StatusPending,
		Priority: models.PriorityHigh,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestUpdateTaskRequiresStatus(t *testing.T) {
	userID := createTestUser(t)
	task := createTestTask(t, userID, service.TaskInput{})
	_, err := service.UpdateTaskStatus(userID, task.ID, models.StatusInProgress)
	require.NoError(t, err)

	// a full replace without a status is rejected, never defaulted
	_, err = service.UpdateTask(userID, task.ID, service.TaskInput{
		Title:    "Renamed only",
		Priority: models.PriorityHigh,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Fields, "status")

	// the task kept both its status and its title
	got, err := service.GetTask(userID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)
	assert.Equal(t, task.Title, got.Title)
}

func TestListTasksPagination(t *testing.T) {
	userID := createTestUser(t)
	for i := 0; i < 15; i++ {
		createTestTask(t, userID, service.TaskInput{Title: fmt.Sprintf("Task %02d", i)})
	}

	first, err := service.ListTasks(userID, service.TaskFilters{}, 0, 10, "created_at", "DESC")
	require.NoError(t, err)
	assert.Len(t, first.Items, 10)
	assert.EqualValues(t, 15, first.TotalItems)
	assert.Equal(t, 2, first.TotalPages)

	second, err := service.ListTasks(userID, service.TaskFilters{}, 1, 10, "created_at", "DESC")
	require.NoError(t, err)
	assert.Len(t, second.Items, 5)
	assert.Equal(t, 1, second.Page)
}

func TestListTasksFilters(t *testing.T) {
	userID := createTestUser(t)
	createTestTask(t, userID, service.TaskInput{Title: "low pending", Priority: models.PriorityLow})
	createTestTask(t, userID, service.TaskInput{Title: "high pending", Priority: models.PriorityHigh})
	done := createTestTask(t, userID, service.TaskInput{Title: "high done", Priority: models.PriorityHigh})
	_, err := service.UpdateTaskStatus(userID, done.ID, models.StatusDone)
	require.NoError(t, err)

	// filters are AND-combined
	page, err := service.ListTasks(userID, service.TaskFilters{
		Status:   models.StatusPending,
		Priority: models.PriorityHigh,
	}, 0, 10, "title", "ASC")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "high pending", page.Items[0].Title)
}

func TestListTasksSortAllowList(t *testing.T) {
	userID := createTestUser(t)
	createTestTask(t, userID, service.TaskInput{})

	_, err := service.ListTasks(userID, service.TaskFilters{}, 0, 10, "password", "ASC")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	for _, field := range []string{"created_at", "title", "status", "priority", "due_date"} {
		_, err := service.ListTasks(userID, service.TaskFilters{}, 0, 10, field, "ASC")
		assert.NoError(t, err, "sort field %s should be accepted", field)
	}
}

func TestListTasksCarriesSubtaskCounts(t *testing.T) {
	userID := createTestUser(t)
	task := createTestTask(t, userID, service.TaskInput{})
	createTestSubtask(t, userID, task.ID, "one", "")
	createTestSubtask(t, userID, task.ID, "two", models.StatusInProgress)
	createTestSubtask(t, userID, task.ID, "three", models.StatusDone)

	page, err := service.ListTasks(userID, service.TaskFilters{}, 0, 10, "created_at", "DESC")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Len(t, page.Items[0].Subtasks, 3)
	assert.Equal(t, 2, page.Items[0].PendingSubtasks)
}

func TestListOverdueTasks(t *testing.T) {
	userID := createTestUser(t)
	createTestTask(t, userID, service.TaskInput{Title: "yesterday", DueDate: dateOffset(-1)})
	createTestTask(t, userID, service.TaskInput{Title: "last week", DueDate: dateOffset(-7)})
	createTestTask(t, userID, service.TaskInput{Title: "tomorrow", DueDate: dateOffset(1)})
	createTestTask(t, userID, service.TaskInput{Title: "no due date"})

	page, err := service.ListOverdueTasks(userID, 0, 10, "due_date", "ASC")
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "last week", page.Items[0].Title)
	assert.Equal(t, "yesterday", page.Items[1].Title)
}

func TestDeleteTaskCascades(t *testing.T) {
	userID := createTestUser(t)
	task := createTestTask(t, userID, service.TaskInput{})
	subtask := createTestSubtask(t, userID, task.ID, "child", "")

	config.UploadDir = t.TempDir()
	attachment, err := service.UploadAttachment(userID, task.ID,
		strings.NewReader("attachment body"), "notes.txt", "text/plain", 15)
	require.NoError(t, err)
	require.FileExists(t, attachment.StoragePath)

	require.NoError(t, service.DeleteTask(userID, task.ID))

	_, err = service.GetTask(userID, task.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = service.GetSubtask(userID, subtask.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	// attachment file removed along with the rows
	_, statErr := os.Stat(filepath.Clean(attachment.StoragePath))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDeleteTaskOtherUserIsNotFound(t *testing.T) {
	owner := createTestUser(t)
	stranger := createTestUser(t)
	task := createTestTask(t, owner, service.TaskInput{})

	err := service.DeleteTask(stranger, task.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = service.GetTask(owner, task.ID)
	assert.NoError(t, err)
}
