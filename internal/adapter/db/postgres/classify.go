package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"user-records-api/internal/adapter/db/pool"
	pkgerrors "user-records-api/pkg/errors"
)

var errUserNotFound = pkgerrors.NewNotFoundError("user", "User not found")

// classify maps a driver or pool error onto the error taxonomy. Anything it
// does not recognise becomes an internal error.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errUserNotFound
	case isConstraintViolation(err):
		return pkgerrors.NewConstraintViolationError("user", constraintMessage(err), fmt.Errorf("%s: %w", op, err))
	case errors.Is(err, pool.ErrPoolExhausted):
		return pkgerrors.NewTransientError("database busy, retry later", fmt.Errorf("%s: %w", op, err))
	case isTransient(err):
		return pkgerrors.NewTransientError("database unavailable", fmt.Errorf("%s: %w", op, err))
	default:
		return pkgerrors.NewInternalError(op, err)
	}
}

func isConstraintViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) ||
		errors.Is(err, gorm.ErrForeignKeyViolated) ||
		errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return true
	}
	var pgErr *pgconn.PgError
	// Class 23: integrity constraint violation.
	return errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23")
}

func constraintMessage(err error) string {
	var pgErr *pgconn.PgError
	if errors.Is(err, gorm.ErrDuplicatedKey) || (errors.As(err, &pgErr) && pgErr.Code == "23505") {
		return "Email already exists"
	}
	return "user rejected by a store constraint"
}

func isTransient(err error) bool {
	if errors.Is(err, pool.ErrPoolClosed) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"), // connection exception
			strings.HasPrefix(pgErr.Code, "53"), // insufficient resources
			strings.HasPrefix(pgErr.Code, "57P"): // operator intervention
			return true
		}
		return false
	}

	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
