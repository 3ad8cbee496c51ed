package errors

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// reKeyField extracts the key from a unique violation detail: "Key (field)=(value) already exists.".
// Expression keys such as lower(email) are captured whole.
var reKeyField = regexp.MustCompile(`Key \((.+?)\)=\(`)

// reExprArg extracts the column from a single-argument expression key, e.g. lower(email).
var reExprArg = regexp.MustCompile(`^[a-z_]+\(([a-z_]+)\)$`)

// MapDBError maps database errors to AppError instances:
// pgx.ErrNoRows and sql.ErrNoRows to NotFound, unique violations to Conflict,
// check and NOT NULL violations to Validation, and context errors to Timeout/Canceled.
// Unrecognized errors are returned unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &AppError{Code: ErrCodeTimeout, Message: "Request timed out. Please try again.", Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &AppError{Code: ErrCodeCanceled, Message: "Request was canceled.", Cause: err}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &AppError{Code: ErrCodeNotFound, Message: "Resource not found", Cause: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}
	return err
}

func mapPgError(pgErr *pgconn.PgError) error {
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return &AppError{
			Code:    ErrCodeConflict,
			Message: "This value already exists. Please choose a different one.",
			Field:   uniqueField(pgErr),
			Cause:   pgErr,
		}
	case pgerrcode.CheckViolation:
		field := firstNonEmpty(pgErr.ColumnName, inferFieldFromConstraint(pgErr.ConstraintName))
		msg := "Invalid data. Please check your input."
		if field != "" {
			msg = "This field has an invalid value."
		}
		return &AppError{Code: ErrCodeValidation, Message: msg, Field: field, Cause: pgErr}
	case pgerrcode.NotNullViolation:
		msg := "Required field is missing. Please check your input."
		if pgErr.ColumnName != "" {
			msg = "This field is required."
		}
		return &AppError{Code: ErrCodeValidation, Message: msg, Field: pgErr.ColumnName, Cause: pgErr}
	default:
		return &AppError{
			Code:    ErrCodeInternal,
			Message: "A database error occurred. Please try again.",
			Cause:   pgErr,
		}
	}
}

// uniqueField prefers column metadata, then the Detail key, then the constraint name.
func uniqueField(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		key := m[1]
		if arg := reExprArg.FindStringSubmatch(key); len(arg) == 2 {
			return arg[1]
		}
		if !strings.ContainsAny(key, "(, ") {
			return key
		}
		return ""
	}
	return inferFieldFromConstraint(pgErr.ConstraintName)
}

// inferFieldFromConstraint infers a column from "<table>_<column>_<suffix>" constraint names,
// e.g. "users_role_check" → "role". Multi-column and expression names yield "".
func inferFieldFromConstraint(constraintName string) string {
	parts := strings.Split(constraintName, "_")
	if len(parts) != 3 {
		return ""
	}
	switch parts[1] {
	case "lower", "upper", "trim":
		return ""
	}
	return parts[1]
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
