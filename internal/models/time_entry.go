package models

import "errors"

// TimeEntry represents hours logged against a project or task.
type TimeEntry struct {
	ID          string  `json:"id"`
	ProjectID   string  `json:"project_id"`
	TaskID      string  `json:"task_id,omitempty"`
	Description string  `json:"description,omitempty"`
	Hours       float64 `json:"hours"`
	Date        string  `json:"date"` // YYYY-MM-DD
	Billable    bool    `json:"billable"`
	Synced      bool    `json:"synced"`
	CreatedAt   int64   `json:"created_at"`
	UpdatedAt   int64   `json:"updated_at"`
}

// Validate checks the fields a new time entry must carry.
func (e *TimeEntry) Validate() error {
	if e.ProjectID == "" {
		return errors.New("time entry project_id is required")
	}
	if e.Date == "" {
		return errors.New("time entry date is required")
	}
	if e.Hours <= 0 {
		return errors.New("time entry hours must be positive")
	}
	return nil
}
