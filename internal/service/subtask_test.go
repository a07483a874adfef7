package service_test

import (
	"fmt"
	"testing"

	"taskhub/internal/apperr"
	"taskhub/internal/models"
	"taskhub/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSubtaskDefaultsToPending(t *testing.T) {
	userID := createTestUser(t)
	task := createTestTask(t, userID, service.TaskInput{})

	subtask, err := service.CreateSubtask(userID, task.ID, "No status given", "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, subtask.Status)
	assert.Equal(t, task.ID, subtask.TaskID)

	explicit, err := service.CreateSubtask(userID, task.ID, "Explicit status", models.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, explicit.Status)
}

func TestCreateSubtaskUnderForeignTaskIsNotFound(t *testing.T) {
	owner := createTestUser(t)
	stranger := createTestUser(t)
	task := createTestTask(t, owner, service.TaskInput{})

	_, err := service.CreateSubtask(stranger, task.ID, "sneaky", "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestGetSubtaskOwnershipThroughParent(t *testing.T) {
	owner := createTestUser(t)
	stranger := createTestUser(t)
	task := createTestTask(t, owner, service.TaskInput{})
	subtask := createTestSubtask(t, owner, task.ID, "mine", "")

	got, err := service.GetSubtask(owner, subtask.ID)
	require.NoError(t, err)
	assert.Equal(t, subtask.ID, got.ID)

	// resolved through the parent task's owner, so a stranger sees
	// not found rather than forbidden
	_, err = service.GetSubtask(stranger, subtask.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestUpdateSubtask(t *testing.T) {
	userID := createTestUser(t)
	task := createTestTask(t, userID, service.TaskInput{})
	subtask := createTestSubtask(t, userID, task.ID, "before", "")

	updated, err := service.UpdateSubtask(userID, subtask.ID, "after", models.StatusDone)
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Title)
	assert.Equal(t, models.StatusDone, updated.Status)

	_, err = service.UpdateSubtask(userID, subtask.ID, "", models.StatusDone)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = service.UpdateSubtaskStatus(userID, subtask.ID, "FINISHED")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCountPendingSubtasks(t *testing.T) {
	userID := createTestUser(t)
	task := createTestTask(t, userID, service.TaskInput{})
	createTestSubtask(t, userID, task.ID, "pending", models.StatusPending)
	createTestSubtask(t, userID, task.ID, "in progress", models.StatusInProgress)
	createTestSubtask(t, userID, task.ID, "cancelled", models.StatusCancelled)
	createTestSubtask(t, userID, task.ID, "done", models.StatusDone)

	// everything except DONE counts as pending
	pending, err := service.CountPendingSubtasks(userID, task.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, pending)

	// idempotent without intervening mutation
	again, err := service.CountPendingSubtasks(userID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, pending, again)
}

func TestListSubtasksStatusFilterAndPagination(t *testing.T) {
	userID := createTestUser(t)
	task := createTestTask(t, userID, service.TaskInput{})
	for i := 0; i < 12; i++ {
		createTestSubtask(t, userID, task.ID, fmt.Sprintf("step %02d", i), "")
	}
	createTestSubtask(t, userID, task.ID, "finished", models.StatusDone)

	page, err := service.ListSubtasks(userID, task.ID, models.StatusPending, 0, 10, "title", "ASC")
	require.NoError(t, err)
	assert.Len(t, page.Items, 10)
	assert.EqualValues(t, 12, page.TotalItems)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, "step 00", page.Items[0].Title)

	rest, err := service.ListSubtasks(userID, task.ID, models.StatusPending, 1, 10, "title", "ASC")
	require.NoError(t, err)
	assert.Len(t, rest.Items, 2)

	_, err = service.ListSubtasks(userID, task.ID, "", 0, 10, "priority", "ASC")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestDeleteSubtask(t *testing.T) {
	userID := createTestUser(t)
	stranger := createTestUser(t)
	task := createTestTask(t, userID, service.TaskInput{})
	subtask := createTestSubtask(t, userID, task.ID, "to delete", "")

	err := service.DeleteSubtask(stranger, subtask.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	// the failed attempt left the row intact
	got, err := service.GetSubtask(userID, subtask.ID)
	require.NoError(t, err)
	assert.Equal(t, subtask.ID, got.ID)

	require.NoError(t, service.DeleteSubtask(userID, subtask.ID))

	_, err = service.GetSubtask(userID, subtask.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
