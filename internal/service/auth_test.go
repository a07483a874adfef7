package service_test

import (
	"fmt"
	"testing"
	"time"

	"taskhub/internal/apperr"
	"taskhub/internal/config"
	"taskhub/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterUser(t *testing.T) {
	stamp := time.Now().UnixNano()
	username := fmt.Sprintf("alice%d", stamp)
	email := fmt.Sprintf("alice%d@example.com", stamp)

	user, err := service.RegisterUser(username, email, "password123")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, username, user.Username)
	assert.Equal(t, email, user.Email)
	assert.Empty(t, user.Password)
}

func TestRegisterDuplicateUsernameIsConflict(t *testing.T) {
	stamp := time.Now().UnixNano()
	username := fmt.Sprintf("bob%d", stamp)

	_, err := service.RegisterUser(username, fmt.Sprintf("bob%d@example.com", stamp), "password123")
	require.NoError(t, err)

	_, err = service.RegisterUser(username, fmt.Sprintf("other%d@example.com", stamp), "password123")
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "USERNAME_EXISTS", appErr.Code)

	// the failed insert must not have left a second row
	var count int
	err = config.DB.QueryRow("SELECT COUNT(*) FROM users WHERE username = $1", username).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRegisterDuplicateEmailIsConflict(t *testing.T) {
	stamp := time.Now().UnixNano()
	email := fmt.Sprintf("carol%d@example.com", stamp)

	_, err := service.RegisterUser(fmt.Sprintf("carol%d", stamp), email, "password123")
	require.NoError(t, err)

	_, err = service.RegisterUser(fmt.Sprintf("carola%d", stamp), email, "password123")
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindConflict, appErr.Kind)
	assert.Equal(t, "EMAIL_EXISTS", appErr.Code)
}

func TestAuthenticateUser(t *testing.T) {
	stamp := time.Now().UnixNano()
	username := fmt.Sprintf("dave%d", stamp)
	_, err := service.RegisterUser(username, fmt.Sprintf("dave%d@example.com", stamp), "correct-horse")
	require.NoError(t, err)

	user, err := service.AuthenticateUser(username, "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, username, user.Username)
	assert.Empty(t, user.Password)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	stamp := time.Now().UnixNano()
	username := fmt.Sprintf("erin%d", stamp)
	_, err := service.RegisterUser(username, fmt.Sprintf("erin%d@example.com", stamp), "correct-horse")
	require.NoError(t, err)

	_, err = service.AuthenticateUser(username, "battery-staple")
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
}

func TestAuthenticateUnknownUser(t *testing.T) {
	_, err := service.AuthenticateUser("nobody-here", "whatever")
	require.Error(t, err)
	// indistinguishable from a wrong password
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
}
