// Package audit writes structured audit records for access decisions and role changes.
package audit

import (
	"context"
	"log/slog"

	"github.com/target/powra-portal/internal/domain/access"
)

// Logger emits audit records through slog under the "audit" group.
type Logger struct {
	logger *slog.Logger
}

// New returns an audit Logger. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger.With("component", "audit")}
}

// Decision records an access-chain decision. Denials log at info, passes at debug.
func (l *Logger) Decision(ctx context.Context, userID string, d access.Decision) {
	if l == nil {
		return
	}
	level := slog.LevelInfo
	msg := "access denied"
	if d.Passed() {
		level = slog.LevelDebug
		msg = "access granted"
	}
	l.logger.LogAttrs(ctx, level, msg,
		slog.Group("audit",
			slog.String("event", "access_decision"),
			slog.String("user_id", userID),
			slog.String("role", d.Role.String()),
			slog.String("path", d.Path),
			slog.String("checked_path", d.CheckedPath),
			slog.String("class", d.Class.String()),
			slog.String("outcome", d.Outcome.String()),
			slog.String("reason", d.Reason),
		),
	)
}

// RoleChange records a change to a user's stored role.
func (l *Logger) RoleChange(ctx context.Context, actor, userID, from, to string) {
	l.userEvent(ctx, "user role changed", "role_change", actor, userID,
		slog.String("from", from),
		slog.String("to", to),
	)
}

// UserCreated records a users row added by an admin.
func (l *Logger) UserCreated(ctx context.Context, actor, userID, role string) {
	l.userEvent(ctx, "user created", "user_created", actor, userID, slog.String("role", role))
}

// UserDeleted records a users row removed by an admin.
func (l *Logger) UserDeleted(ctx context.Context, actor, userID string) {
	l.userEvent(ctx, "user deleted", "user_deleted", actor, userID)
}

func (l *Logger) userEvent(ctx context.Context, msg, event, actor, userID string, extra ...slog.Attr) {
	if l == nil {
		return
	}
	attrs := append([]slog.Attr{
		slog.String("event", event),
		slog.String("actor", actor),
		slog.String("user_id", userID),
	}, extra...)
	l.logger.LogAttrs(ctx, slog.LevelInfo, msg, slog.Attr{Key: "audit", Value: slog.GroupValue(attrs...)})
}
