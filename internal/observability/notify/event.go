// Package notify delivers security notifications to chat and paging sinks.
package notify

import (
	"context"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityHigh = "high"
	SeverityInfo = "info"
)

// RoleChangePayload describes a change to a user's stored role.
type RoleChangePayload struct {
	UserID     string
	Email      string
	From       string
	To         string
	Actor      string
	Severity   string
	OccurredAt time.Time
}

// Sink describes a destination capable of consuming role change notifications.
type Sink interface {
	SendRoleChange(ctx context.Context, payload RoleChangePayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload RoleChangePayload) error

// SendRoleChange implements the Sink interface.
func (f SinkFunc) SendRoleChange(ctx context.Context, payload RoleChangePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
