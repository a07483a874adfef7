package service

import (
	"database/sql"
	"strings"

	"taskhub/internal/apperr"
	"taskhub/internal/config"
	"taskhub/internal/models"
	"taskhub/pkg/crypto"

	"github.com/lib/pq"
)

// RegisterUser creates a user with a bcrypt password hash. A taken
// username or email is a conflict and leaves no row behind.
func RegisterUser(username, email, password string) (*models.User, error) {
	hashed, err := crypto.HashPassword(password)
	if err != nil {
		return nil, apperr.Internal("error hashing password", err)
	}

	var user models.User
	err = config.DB.QueryRow(
		"INSERT INTO users (username, email, password) VALUES ($1, $2, $3) RETURNING id, username, email, created_at, updated_at",
		username, email, hashed).Scan(&user.ID, &user.Username, &user.Email, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		// 23505 is unique_violation; the constraint name tells which field collided
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			if strings.Contains(pqErr.Constraint, "email") {
				return nil, apperr.Conflict("EMAIL_EXISTS", "email already in use")
			}
			return nil, apperr.Conflict("USERNAME_EXISTS", "username already exists")
		}
		return nil, apperr.Internal("error creating user", err)
	}
	return &user, nil
}

// AuthenticateUser checks the username/password pair. Unknown username
// and wrong password produce the same failure.
func AuthenticateUser(username, password string) (*models.User, error) {
	var user models.User
	err := config.DB.QueryRow(
		"SELECT id, username, email, password, created_at, updated_at FROM users WHERE username = $1",
		username).Scan(&user.ID, &user.Username, &user.Email, &user.Password, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.Unauthenticated("invalid credentials")
	}
	if err != nil {
		return nil, apperr.Internal("error fetching user", err)
	}

	if err := crypto.CheckPassword(user.Password, password); err != nil {
		return nil, apperr.Unauthenticated("invalid credentials")
	}
	user.Password = ""
	return &user, nil
}
