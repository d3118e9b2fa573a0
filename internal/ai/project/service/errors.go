package service

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyInput      = errors.New("empty input")
	ErrSessionNotFound = errors.New("session not found")
)

// PersistenceError means the project persistence collaborator rejected an update.
type PersistenceError struct {
	ProjectID int64
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist project %d: %v", e.ProjectID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
