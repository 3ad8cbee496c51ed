package httpx

import (
	"context"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/target/powra-portal/internal/domain/auth"
	"github.com/target/powra-portal/internal/domain/model"
	apperrors "github.com/target/powra-portal/internal/errors"
	"github.com/target/powra-portal/internal/service"
)

const (
	defaultUsersLimit = 50
	maxUsersLimit     = 500
)

// UserAdminService defines the user operations the admin surfaces need.
type UserAdminService interface {
	List(ctx context.Context, opts model.UsersListOptions) ([]*model.User, error)
	Upsert(ctx context.Context, actor string, req model.UpsertUserRequest) (*model.User, bool, error)
	SetRole(ctx context.Context, in service.SetRoleInput) (*model.User, error)
	Delete(ctx context.Context, actor, id string) error
}

// UserHandlers serves the signed-in user's profile and the admin user API.
type UserHandlers struct {
	Svc UserAdminService
}

// meResponse describes the caller.
type meResponse struct {
	User      statusUser `json:"user"`
	Role      string     `json:"role"`
	Groups    []string   `json:"groups,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Me returns the session user and resolved role.
// GET /api/me.
func (h *UserHandlers) Me(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		WriteJSON(w, http.StatusUnauthorized, map[string]string{
			"error":   "Authentication required",
			"message": "No valid session found",
		})
		return
	}
	out := meResponse{
		User:   *newStatusUser(sess),
		Role:   RoleFromContext(r.Context()).String(),
		Groups: sess.Groups,
	}
	if !sess.ExpiresAt.IsZero() {
		out.ExpiresAt = &sess.ExpiresAt
	}
	WriteJSON(w, http.StatusOK, out)
}

type usersListResponse struct {
	Items  []*model.User `json:"items"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// List returns portal users.
// GET /api/admin/users?q=&role=&limit=&offset=&sort=&dir=.
func (h *UserHandlers) List(w http.ResponseWriter, r *http.Request) {
	opts, _, err := parseUsersListOptions(r)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	users, err := h.Svc.List(r.Context(), opts)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	if users == nil {
		users = []*model.User{}
	}
	WriteJSON(w, http.StatusOK, usersListResponse{Items: users, Limit: opts.Limit, Offset: opts.Offset})
}

// Create adds a users row, or updates the row with the same id. New rows answer 201.
// POST /api/admin/users.
func (h *UserHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req model.UpsertUserRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	u, created, err := h.Svc.Upsert(r.Context(), actorID(r), req)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	WriteJSON(w, status, u)
}

// Delete removes a users row.
// DELETE /api/admin/users/{id}.
func (h *UserHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Delete(r.Context(), actorID(r), id); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setRoleRequest struct {
	Role string `json:"role"`
}

// SetRole changes a user's stored role.
// PUT /api/admin/users/{id}/role.
func (h *UserHandlers) SetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}
	var req setRoleRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	u, err := h.Svc.SetRole(r.Context(), service.SetRoleInput{UserID: id, Role: req.Role, Actor: actorID(r)})
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, u)
}

func userIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		WriteServiceError(w, r, apperrors.ValidationField("id", "user id is required"))
		return "", false
	}
	return id, true
}

// actorID names the signed-in admin for audit records.
func actorID(r *http.Request) string {
	if sess, ok := SessionFromContext(r.Context()); ok && sess.UserID != "" {
		return sess.UserID
	}
	return "unknown"
}

// parseUsersListOptions reads the shared user list query. The returned filter is
// filled even when err is set so pages can echo the input back.
func parseUsersListOptions(r *http.Request) (model.UsersListOptions, UsersFilter, error) {
	q := r.URL.Query()
	limit, offset := ParseLimitOffset(r, defaultUsersLimit, maxUsersLimit)
	sortField, sortDir := ParseSortParam(q, "sort", "dir")
	opts := model.UsersListOptions{
		Limit:  limit,
		Offset: offset,
		Sort:   sortField,
		Dir:    sortDir,
	}
	filter := UsersFilter{
		Q:      strings.TrimSpace(q.Get("q")),
		Role:   strings.TrimSpace(q.Get("role")),
		Limit:  limit,
		Offset: offset,
	}
	if filter.Q != "" {
		opts.Q = &filter.Q
	}
	if filter.Role != "" {
		role, ok := domainauth.ParseRole(filter.Role)
		if !ok {
			return opts, filter, apperrors.ValidationField("role", "role must be one of admin, supervisor, user")
		}
		opts.Role = &role
	}
	return opts, filter, nil
}
