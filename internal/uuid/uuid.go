// Package uuid provides local record ID generation and validation.
//
// New rows created while offline get a client-assigned UUID v4 so later edits
// can reference them before the server has ever seen the record.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// New generates a new UUID v4 string.
func New() string {
	return uuid.New().String()
}

// IsValid checks if a string is a valid UUID.
func IsValid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// Validate returns an error if the string is not a valid UUID.
func Validate(s string) error {
	if !IsValid(s) {
		return fmt.Errorf("invalid UUID format: %q", s)
	}
	return nil
}
