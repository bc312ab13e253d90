package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Common repository errors
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
	// ErrClaimLost means a recipient was no longer held by the caller's claim when its
	// outcome was written, so the write was discarded.
	ErrClaimLost = errors.New("recipient claim lost")
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
