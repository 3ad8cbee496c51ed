package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/target/powra-portal/internal/core"
	"github.com/target/powra-portal/internal/data/database"
	"github.com/target/powra-portal/internal/data/pgxutil"
	domainauth "github.com/target/powra-portal/internal/domain/auth"
	"github.com/target/powra-portal/internal/domain/model"
	apperrors "github.com/target/powra-portal/internal/errors"
	"github.com/target/powra-portal/internal/ports"
)

// UserRepo provides database operations for portal users.
type UserRepo struct {
	DB *sql.DB
}

var (
	_ core.UserRepository  = (*UserRepo)(nil)
	_ ports.UserRoleLookup = (*UserRepo)(nil)
)

// NewUserRepo creates a new UserRepo.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db}
}

const (
	userColumnsSQL = `id, email, first_name, last_name, role, created_at, updated_at`

	userGetByIDQuery = `SELECT ` + userColumnsSQL + ` FROM users WHERE id = $1`

	userGetRoleQuery = `SELECT role FROM users WHERE id = $1`

	userUpsertQuery = `
		INSERT INTO users (id, email, first_name, last_name, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			email      = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name  = EXCLUDED.last_name,
			role       = EXCLUDED.role,
			updated_at = now()
		RETURNING ` + userColumnsSQL

	userDeleteQuery = `DELETE FROM users WHERE id = $1`

	userSetRoleQuery = `UPDATE users SET role = $2, updated_at = now() WHERE id = $1 RETURNING ` + userColumnsSQL
)

func userColumns() []string {
	return []string{"id", "email", "first_name", "last_name", "role", "created_at", "updated_at"}
}

// GetByID retrieves a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	u, err := r.queryOne(ctx, userGetByIDQuery, id)
	if err != nil {
		return nil, r.mapErr(err, id)
	}
	return u, nil
}

// GetRole returns the stored role column for a user. It returns ports.ErrUserNotFound
// when the row does not exist.
func (r *UserRepo) GetRole(ctx context.Context, userID string) (string, error) {
	var role string
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, userGetRoleQuery, userID).Scan(&role)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ports.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get user role: %w", apperrors.MapDBError(err))
	}
	return role, nil
}

// List retrieves users with optional filters and sorting.
func (r *UserRepo) List(ctx context.Context, opts model.UsersListOptions) ([]*model.User, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := max(opts.Offset, 0)

	query, args := database.BuildListQuery(buildUserQueryOptions(opts, limit, offset))

	var rowsOut []model.User
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.User])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", apperrors.MapDBError(err))
	}

	res := make([]*model.User, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// Upsert inserts a user or updates the existing row with the same ID.
// The request is expected to be normalized and validated.
func (r *UserRepo) Upsert(ctx context.Context, req model.UpsertUserRequest) (*model.User, error) {
	u, err := r.queryOne(ctx, userUpsertQuery, req.ID, req.Email, req.FirstName, req.LastName, req.Role)
	if err != nil {
		return nil, r.mapErr(err, req.ID)
	}
	return u, nil
}

// SetRole updates the role of an existing user.
func (r *UserRepo) SetRole(ctx context.Context, id string, role domainauth.Role) (*model.User, error) {
	u, err := r.queryOne(ctx, userSetRoleQuery, id, role.String())
	if err != nil {
		return nil, r.mapErr(err, id)
	}
	return u, nil
}

// Delete removes a user row.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx, userDeleteQuery, id)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("delete user: %w", apperrors.MapDBError(err))
	}
	if affected == 0 {
		return apperrors.NotFoundf("user %s not found", id)
	}
	return nil
}

func (r *UserRepo) queryOne(ctx context.Context, q string, args ...any) (*model.User, error) {
	var u model.User
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		u, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
		return err
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) mapErr(err error, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFoundf("user %s not found", id)
	}
	return apperrors.MapDBError(err)
}

func buildUserQueryOptions(opts model.UsersListOptions, limit, offset int) *database.ListQueryOptions {
	queryOpts := []database.ListQueryOption{
		database.WithColumns(userColumns()...),
		database.WithLimit(limit),
		database.WithOffset(offset),
	}
	if opts.Q != nil && strings.TrimSpace(*opts.Q) != "" {
		queryOpts = append(queryOpts, database.WithCondition(
			database.WhereAnyILike(database.ContainsPattern(strings.TrimSpace(*opts.Q)), "email", "first_name", "last_name"),
		))
	}
	if opts.Role != nil {
		queryOpts = append(queryOpts, database.WithCondition(
			database.WhereCond("role", database.In, opts.Role.StoredNames()),
		))
	}
	sortCol, sortDir := validateUserSort(opts.Sort, opts.Dir)
	queryOpts = append(queryOpts, database.WithOrderBy(sortCol, sortDir, "id"))
	return database.NewListQueryOptions("users", queryOpts...)
}

// validateUserSort returns a safe sort column and direction, defaulting to email ascending.
func validateUserSort(sort, dir string) (string, string) {
	sortCol := "email"
	switch strings.ToLower(strings.TrimSpace(sort)) {
	case "created_at":
		sortCol = "created_at"
	case "role":
		sortCol = "role"
	}
	sortDir := "ASC"
	if strings.EqualFold(strings.TrimSpace(dir), "desc") {
		sortDir = "DESC"
	}
	return sortCol, sortDir
}
