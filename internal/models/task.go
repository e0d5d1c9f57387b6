package models

import (
	"errors"
	"fmt"
)

// Task statuses.
const (
	TaskStatusOpen       = "open"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
)

// ValidTaskStatus reports whether s is a known task status.
func ValidTaskStatus(s string) bool {
	switch s {
	case TaskStatusOpen, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

// Task represents a unit of work within a project.
type Task struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	DueDate   string `json:"due_date,omitempty"` // YYYY-MM-DD
	Synced    bool   `json:"synced"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// Validate checks the fields a new task record must carry.
func (t *Task) Validate() error {
	if t.Title == "" {
		return errors.New("task title is required")
	}
	if t.Status != "" && !ValidTaskStatus(t.Status) {
		return fmt.Errorf("unknown task status %q", t.Status)
	}
	return nil
}
