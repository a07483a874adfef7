package models

import (
	"time"
)

// Task and subtask statuses share one domain.
const (
	StatusPending    = "PENDING"
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusCancelled  = "CANCELLED"
)

const (
	PriorityLow    = "LOW"
	PriorityMedium = "MEDIUM"
	PriorityHigh   = "HIGH"
)

// ValidStatus reports whether status is one of the allowed task states.
func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusInProgress, StatusDone, StatusCancelled:
		return true
	default:
		return false
	}
}

// ValidPriority reports whether priority is one of the allowed priorities.
func ValidPriority(priority string) bool {
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Task struct {
	ID              int        `json:"id"`
	UserID          int        `json:"user_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	DueDate         *time.Time `json:"due_date"`
	Status          string     `json:"status"`
	Priority        string     `json:"priority"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Subtasks        []Subtask  `json:"subtasks"`
	PendingSubtasks int        `json:"pending_subtasks"`
}

type Subtask struct {
	ID        int       `json:"id"`
	TaskID    int       `json:"task_id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Attachment struct {
	ID           int       `json:"id"`
	TaskID       int       `json:"task_id"`
	OriginalName string    `json:"original_name"`
	StorageName  string    `json:"storage_name"`
	MimeType     string    `json:"mime_type"`
	SizeBytes    int64     `json:"size_bytes"`
	StoragePath  string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Page is one page of a paginated listing.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}
