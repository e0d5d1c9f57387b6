package models

import (
	"errors"
	"fmt"
)

// Project statuses.
const (
	ProjectStatusActive    = "active"
	ProjectStatusOnHold    = "on_hold"
	ProjectStatusCompleted = "completed"
)

// ValidProjectStatus reports whether s is a known project status.
func ValidProjectStatus(s string) bool {
	switch s {
	case ProjectStatusActive, ProjectStatusOnHold, ProjectStatusCompleted:
		return true
	}
	return false
}

// Project represents a client engagement tracked by the application.
type Project struct {
	ID          string  `json:"id"`
	ClientID    string  `json:"client_id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Status      string  `json:"status"`
	HourlyRate  float64 `json:"hourly_rate,omitempty"`
	StartDate   string  `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate     string  `json:"end_date,omitempty"`
	Synced      bool    `json:"synced"`
	CreatedAt   int64   `json:"created_at"`
	UpdatedAt   int64   `json:"updated_at"`
}

// Validate checks the fields a new project record must carry.
func (p *Project) Validate() error {
	if p.Name == "" {
		return errors.New("project name is required")
	}
	if p.Status != "" && !ValidProjectStatus(p.Status) {
		return fmt.Errorf("unknown project status %q", p.Status)
	}
	return nil
}
