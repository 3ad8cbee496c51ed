package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapDBError_NilError(t *testing.T) {
	assert.NoError(t, MapDBError(nil))
}

func TestMapDBError_ContextErrors(t *testing.T) {
	assert.True(t, IsTimeout(MapDBError(fmt.Errorf("query: %w", context.DeadlineExceeded))))
	assert.True(t, IsCanceled(MapDBError(context.Canceled)))
}

func TestMapDBError_NoRows(t *testing.T) {
	err := MapDBError(pgx.ErrNoRows)
	assert.True(t, IsNotFound(err))
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestMapDBError_UniqueViolation(t *testing.T) {
	tests := []struct {
		name      string
		pgErr     *pgconn.PgError
		wantField string
	}{
		{
			name:      "column metadata",
			pgErr:     &pgconn.PgError{Code: pgerrcode.UniqueViolation, ColumnName: "id"},
			wantField: "id",
		},
		{
			name: "expression index detail",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "users_email_lower_idx",
				Detail:         "Key (lower(email))=(jane@example.com) already exists.",
			},
			wantField: "email",
		},
		{
			name:      "plain key detail",
			pgErr:     &pgconn.PgError{Code: pgerrcode.UniqueViolation, Detail: "Key (id)=(u1) already exists."},
			wantField: "id",
		},
		{
			name:      "composite key detail",
			pgErr:     &pgconn.PgError{Code: pgerrcode.UniqueViolation, Detail: "Key (email, role)=(a, b) already exists."},
			wantField: "",
		},
		{
			name:      "constraint name only",
			pgErr:     &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_email_key"},
			wantField: "email",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.pgErr)
			require.True(t, IsConflict(err))
			assert.Equal(t, tt.wantField, GetField(err))
		})
	}
}

func TestMapDBError_CheckViolation(t *testing.T) {
	err := MapDBError(&pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: "users_role_check"})
	require.True(t, IsValidation(err))
	assert.Equal(t, "role", GetField(err))

	generic := MapDBError(&pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: "something"})
	require.True(t, IsValidation(generic))
	assert.Empty(t, GetField(generic))
}

func TestMapDBError_NotNullViolation(t *testing.T) {
	err := MapDBError(&pgconn.PgError{Code: pgerrcode.NotNullViolation, ColumnName: "email"})
	require.True(t, IsValidation(err))
	assert.Equal(t, "email", GetField(err))
}

func TestMapDBError_UnknownPgError(t *testing.T) {
	err := MapDBError(&pgconn.PgError{Code: pgerrcode.SerializationFailure})
	assert.Equal(t, ErrCodeInternal, GetCode(err))
}

func TestMapDBError_StandardError(t *testing.T) {
	plain := errors.New("dial tcp: refused")
	assert.Same(t, plain, MapDBError(plain))
}

func TestInferFieldFromConstraint(t *testing.T) {
	tests := map[string]string{
		"users_role_check":      "role",
		"users_email_key":       "email",
		"users_email_lower_idx": "",
		"users_lower_idx":       "",
		"users_pkey":            "",
		"":                      "",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, inferFieldFromConstraint(in))
		})
	}
}
