package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// PermissionError means the store rejected the operation due to access
// rules. The message carries actionable guidance for the operator.
type PermissionError struct {
	Op  string
	Err error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s: permission denied by the store; check your session and the database access rules", e.Op)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// QuotaError means the store reported usage-limit exhaustion. It is a
// retry-later condition, not retried automatically.
type QuotaError struct {
	Op  string
	Err error
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: store usage limit reached; try again later", e.Op)
}

func (e *QuotaError) Unwrap() error { return e.Err }

// TransientError covers any other store failure (network, unknown). The
// underlying message is preserved; the operation is surfaced once and not
// retried.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PostgreSQL error classes that map onto the permission and quota kinds.
// Class 28 is invalid authorization, 42501 is insufficient_privilege,
// class 53 is insufficient resources.
const (
	pgInsufficientPrivilege = "42501"
	pgInvalidAuthorization  = "28000"
	pgInvalidPassword       = "28P01"
	pgDiskFull              = "53100"
	pgOutOfMemory           = "53200"
	pgTooManyConnections    = "53300"
	pgConfigLimitExceeded   = "53400"
)

// classify converts a raw database error into the store error taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgInsufficientPrivilege, pgInvalidAuthorization, pgInvalidPassword:
			return &PermissionError{Op: op, Err: err}
		case pgDiskFull, pgOutOfMemory, pgTooManyConnections, pgConfigLimitExceeded:
			return &QuotaError{Op: op, Err: err}
		}
	}

	return &TransientError{Op: op, Err: err}
}
