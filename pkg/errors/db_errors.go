// Package errors provides database error classification and handling utilities.
package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// DatabaseErrorType represents the type of database error.
type DatabaseErrorType int

const (
	// ErrorTypeUnknown represents an unknown database error.
	ErrorTypeUnknown DatabaseErrorType = iota
	// ErrorTypeDuplicateKey represents a unique constraint violation (SQLSTATE 23505).
	ErrorTypeDuplicateKey
	// ErrorTypeConstraintViolation represents a foreign key or check constraint violation.
	ErrorTypeConstraintViolation
	// ErrorTypeNotFound represents a record not found error.
	ErrorTypeNotFound
	// ErrorTypeDeadlock represents a deadlock error (SQLSTATE 40P01).
	ErrorTypeDeadlock
	// ErrorTypeConnectionError represents a database connection error (SQLSTATE class 08).
	ErrorTypeConnectionError
)

// DatabaseError wraps a database error with classification information.
type DatabaseError struct {
	Type        DatabaseErrorType
	OriginalErr error
	SQLState    string
	Message     string
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	if e.SQLState != "" {
		return fmt.Sprintf("%s (SQLSTATE %s): %v", e.Message, e.SQLState, e.OriginalErr)
	}
	return fmt.Sprintf("%s: %v", e.Message, e.OriginalErr)
}

// Unwrap returns the underlying error for errors.Is and errors.As compatibility.
func (e *DatabaseError) Unwrap() error {
	return e.OriginalErr
}

// ClassifyDBError classifies a database error into a specific error type.
//
// It handles GORM errors and PostgreSQL SQLSTATE codes:
//   - gorm.ErrRecordNotFound → ErrorTypeNotFound
//   - gorm.ErrDuplicatedKey / 23505 → ErrorTypeDuplicateKey
//   - 23503, 23514 → ErrorTypeConstraintViolation
//   - 40P01 → ErrorTypeDeadlock
//   - class 08 → ErrorTypeConnectionError
func ClassifyDBError(err error, message string) error {
	if err == nil {
		return nil
	}

	dbErr := &DatabaseError{
		Type:        ErrorTypeUnknown,
		OriginalErr: err,
		Message:     message,
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		dbErr.Type = ErrorTypeNotFound
		return dbErr
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		dbErr.Type = ErrorTypeDuplicateKey
		return dbErr
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		dbErr.SQLState = pgErr.Code
		switch {
		case pgErr.Code == "23505":
			dbErr.Type = ErrorTypeDuplicateKey
		case pgErr.Code == "23503" || pgErr.Code == "23514":
			dbErr.Type = ErrorTypeConstraintViolation
		case pgErr.Code == "40P01":
			dbErr.Type = ErrorTypeDeadlock
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08":
			dbErr.Type = ErrorTypeConnectionError
		}
	}

	return dbErr
}

// IsDuplicateKey reports whether err is a unique constraint violation.
func IsDuplicateKey(err error) bool {
	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return dbErr.Type == ErrorTypeDuplicateKey
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsNotFound reports whether err is a record-not-found error.
func IsNotFound(err error) bool {
	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return dbErr.Type == ErrorTypeNotFound
	}
	return errors.Is(err, gorm.ErrRecordNotFound)
}
