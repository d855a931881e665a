package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrReferenced is returned when deleting a row other rows still point at.
	ErrReferenced = errors.New("still referenced")
	// ErrMissingReference is returned when a write points at a row that does
	// not exist.
	ErrMissingReference = errors.New("referenced row does not exist")
)

const codeForeignKeyViolation pq.ErrorCode = "23503"

// ErrInvalidValue is returned when a value does not fit its column.
var ErrInvalidValue = errors.New("value out of range for column")

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeForeignKeyViolation
}

// invalidValue maps data exceptions (class 22, e.g. numeric out of range) to
// ErrInvalidValue and returns any other error unchanged.
func invalidValue(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "22" {
		return fmt.Errorf("%w: %s", ErrInvalidValue, pqErr.Message)
	}
	return err
}

// IsTransient reports whether err comes from data store unavailability,
// a timeout, or a concurrency abort, so the whole unit of work may be retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code.Class() {
	case "08", "53", "57":
		// connection exception, insufficient resources, operator intervention
		return true
	}
	switch pqErr.Code {
	case "40001", "40P01":
		// serialization_failure, deadlock_detected
		return true
	}
	return false
}
