package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/powra-portal/internal/core"
	domainauth "github.com/target/powra-portal/internal/domain/auth"
	"github.com/target/powra-portal/internal/domain/model"
	apperrors "github.com/target/powra-portal/internal/errors"
	"github.com/target/powra-portal/internal/observability/audit"
	"github.com/target/powra-portal/internal/observability/notify"
)

// UserServiceOptions groups dependencies for UserService.
type UserServiceOptions struct {
	Repo   core.UserRepository // Required
	Hooks  RoleChangeHooks     // Optional
	Logger *slog.Logger        // Optional

	// Sessions signs deleted users out. Nil when sessions are not server-side.
	Sessions core.SessionRevoker

	// StoredRolesShadowed is set when identity claims are consulted before the users
	// table. Stored role changes would not alter access, so they are refused.
	StoredRolesShadowed bool
}

// RoleChangeHooks are notified after a stored role actually changes.
type RoleChangeHooks struct {
	Audit    *audit.Logger
	Notifier notify.Sink
	Now      func() time.Time
}

// SetRoleInput names the user, the requested role (the "manager" alias is accepted),
// and who asked for the change.
type SetRoleInput struct {
	UserID string
	Role   string
	Actor  string
}

// UserService manages portal user records and their stored roles.
type UserService struct {
	repo     core.UserRepository
	hooks    RoleChangeHooks
	sessions core.SessionRevoker
	shadowed bool
	logger   *slog.Logger
}

// NewUserService constructs a new UserService.
func NewUserService(opts UserServiceOptions) *UserService {
	if opts.Repo == nil {
		panic("UserRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hooks := opts.Hooks
	if hooks.Now == nil {
		hooks.Now = time.Now
	}
	return &UserService{
		repo:     opts.Repo,
		hooks:    hooks,
		sessions: opts.Sessions,
		shadowed: opts.StoredRolesShadowed,
		logger:   logger.With("component", "user_service"),
	}
}

// List returns users ordered by email.
func (s *UserService) List(ctx context.Context, opts model.UsersListOptions) ([]*model.User, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Limit > 500 {
		opts.Limit = 500
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	users, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ErrStoredRolesShadowed is the conflict returned for role writes that identity
// claims would override.
var ErrStoredRolesShadowed = apperrors.Conflict(
	"stored roles do not decide access; AUTH_ROLE_SOURCES must list store before metadata")

// Upsert creates a user or updates the row with the same ID on behalf of actor.
// created reports whether the row is new. Changing an existing user's role runs the
// same hooks as SetRole.
func (s *UserService) Upsert(ctx context.Context, actor string, req model.UpsertUserRequest) (*model.User, bool, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, false, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid user")
	}
	prev, err := s.repo.GetByID(ctx, req.ID)
	switch {
	case apperrors.IsNotFound(err):
		prev = nil
	case err != nil:
		return nil, false, fmt.Errorf("get user: %w", err)
	case s.shadowed && !sameRole(prev.Role, req.Role):
		return nil, false, ErrStoredRolesShadowed
	}

	u, err := s.repo.Upsert(ctx, req)
	if err != nil {
		return nil, false, fmt.Errorf("upsert user: %w", err)
	}
	if prev == nil {
		s.hooks.Audit.UserCreated(ctx, actor, u.ID, u.Role)
		s.logger.InfoContext(ctx, "user created", "user_id", u.ID, "role", u.Role, "actor", actor)
		return u, true, nil
	}
	if !sameRole(prev.Role, u.Role) {
		s.afterRoleChange(ctx, actor, prev, u)
	}
	return u, false, nil
}

// SetRole changes a user's stored role. Hooks run only when the canonical role differs
// from the previous one; a failed notification is logged and does not fail the change.
func (s *UserService) SetRole(ctx context.Context, in SetRoleInput) (*model.User, error) {
	role, ok := domainauth.ParseRole(in.Role)
	if !ok {
		return nil, apperrors.ValidationField("role", fmt.Sprintf("unknown role %q", in.Role))
	}
	if s.shadowed {
		return nil, ErrStoredRolesShadowed
	}
	prev, err := s.repo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u, err := s.repo.SetRole(ctx, in.UserID, role)
	if err != nil {
		return nil, fmt.Errorf("set role: %w", err)
	}

	if !sameRole(prev.Role, u.Role) {
		s.afterRoleChange(ctx, in.Actor, prev, u)
	}
	return u, nil
}

// Delete removes a user row on behalf of actor and signs the user out. Admins cannot
// delete themselves. A failed sign-out is logged; the row stays deleted.
func (s *UserService) Delete(ctx context.Context, actor, id string) error {
	if id == actor {
		return apperrors.Conflict("you cannot delete your own account")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.hooks.Audit.UserDeleted(ctx, actor, id)

	revoked := 0
	if s.sessions != nil {
		n, err := s.sessions.RevokeUser(ctx, id)
		if err != nil {
			s.logger.WarnContext(ctx, "revoke sessions failed", "user_id", id, "error", err)
		}
		revoked = n
	}
	s.logger.InfoContext(ctx, "user deleted", "user_id", id, "actor", actor, "sessions_revoked", revoked)
	return nil
}

func sameRole(a, b string) bool {
	ra, _ := domainauth.ParseRole(a)
	rb, _ := domainauth.ParseRole(b)
	return ra == rb
}

func (s *UserService) afterRoleChange(ctx context.Context, actor string, prev, next *model.User) {
	s.hooks.Audit.RoleChange(ctx, actor, next.ID, prev.Role, next.Role)
	if s.hooks.Notifier == nil {
		return
	}
	severity := notify.SeverityInfo
	if next.Role == domainauth.RoleAdmin.String() {
		severity = notify.SeverityHigh
	}
	err := s.hooks.Notifier.SendRoleChange(ctx, notify.RoleChangePayload{
		UserID:     next.ID,
		Email:      next.Email,
		From:       prev.Role,
		To:         next.Role,
		Actor:      actor,
		Severity:   severity,
		OccurredAt: s.hooks.Now(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "role change notification failed", "user_id", next.ID, "error", err)
	}
}
