package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/apptcrm/services/booking-service/internal/errs"
)

const (
	codeExclusionViolation = "23P01"
	codeSerialization      = "40001"
	codeDeadlock           = "40P01"
	codeQueryCanceled      = "57014"
	codeLockNotAvailable   = "55P03"
)

// classify maps driver errors onto the engine's taxonomy. Errors that already carry a
// taxonomy sentinel pass through untouched.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{errs.ErrNotFound, errs.ErrValidation, errs.ErrSlotUnavailable, errs.ErrTransientStore} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, errs.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == codeExclusionViolation:
			return fmt.Errorf("%s: %w", op, errs.ErrSlotUnavailable)
		case pgErr.Code == codeSerialization, pgErr.Code == codeDeadlock,
			pgErr.Code == codeQueryCanceled, pgErr.Code == codeLockNotAvailable,
			strings.HasPrefix(pgErr.Code, "08"):
			return errs.Transient(op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var connErr *pgconn.ConnectError
	if pgconn.Timeout(err) || errors.As(err, &connErr) || errors.Is(err, context.DeadlineExceeded) {
		return errs.Transient(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
