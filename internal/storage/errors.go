package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"

	"budget/internal/core"
)

// SQLite primary result codes. Extended codes carry the primary code in
// the low byte.
const (
	sqliteBusy       = 5
	sqliteLocked     = 6
	sqliteCantOpen   = 14
	sqliteConstraint = 19
)

// mapError classifies a driver error into the ledger error taxonomy. Errors
// it does not recognise are wrapped with the operation name.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqliteConstraint:
			return &core.ConstraintViolationError{Constraint: sqliteConstraintName(sqliteErr.Error()), Err: err}
		case sqliteBusy, sqliteLocked, sqliteCantOpen:
			return &core.ConnectivityError{Op: op, Err: err}
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "23"):
			name := pgErr.ConstraintName
			if name == "" {
				name = pgErr.Code
			}
			return &core.ConstraintViolationError{Constraint: name, Err: err}
		case strings.HasPrefix(pgErr.Code, "08"), pgErr.Code == "57014", pgErr.Code == "55P03":
			return &core.ConnectivityError{Op: op, Err: err}
		}
	}

	if isConnectivity(err) {
		return &core.ConnectivityError{Op: op, Err: err}
	}

	return fmt.Errorf("%s: %w", op, err)
}

func isConnectivity(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || pgconn.Timeout(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// sqliteConstraintName pulls the constraint detail out of messages such as
// "constraint failed: UNIQUE constraint failed: accounts.name (2067)".
func sqliteConstraintName(msg string) string {
	const marker = "constraint failed: "
	if i := strings.LastIndex(msg, marker); i >= 0 {
		detail := msg[i+len(marker):]
		if j := strings.Index(detail, " ("); j >= 0 {
			detail = detail[:j]
		}
		return detail
	}
	return "constraint"
}
