package db

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches every *NotFoundError
	ErrNotFound = errors.New("not found")

	// ErrAuth matches every *AuthError
	ErrAuth = errors.New("authentication failed")
)

// NotFoundError reports a database, table, or column the catalog does not know
type NotFoundError struct {
	Database string
	Table    string
	Column   string
	Err      error
}

func (e *NotFoundError) Error() string {
	target := e.Table
	if e.Database != "" {
		target = e.Database + "." + e.Table
	}

	msg := fmt.Sprintf("table %s not found", target)
	if e.Column != "" {
		msg = fmt.Sprintf("column %s of table %s not found", e.Column, target)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NotFoundError) Unwrap() error { return e.Err }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AuthError reports rejected or missing credentials, or a denied operation
type AuthError struct {
	Backend string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %v", e.Backend, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool { return target == ErrAuth }
