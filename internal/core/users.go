package core

import (
	"context"

	domainauth "github.com/target/powra-portal/internal/domain/auth"
	"github.com/target/powra-portal/internal/domain/model"
)

// UserRepository defines data operations on portal user records.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	List(ctx context.Context, opts model.UsersListOptions) ([]*model.User, error)
	Upsert(ctx context.Context, req model.UpsertUserRequest) (*model.User, error)
	// SetRole updates the role column and returns the updated record.
	SetRole(ctx context.Context, id string, role domainauth.Role) (*model.User, error)
	// Delete removes the row. A missing row is a not-found error.
	Delete(ctx context.Context, id string) error
}

// SessionRevoker signs a user out of every live session.
type SessionRevoker interface {
	RevokeUser(ctx context.Context, userID string) (int, error)
}
