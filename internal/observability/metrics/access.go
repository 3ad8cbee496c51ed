// Package metrics emits the portal's StatsD metrics.
package metrics

import (
	"maps"
	"time"

	"github.com/target/powra-portal/internal/domain/access"
	obserrors "github.com/target/powra-portal/internal/observability/errors"
	"github.com/target/powra-portal/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Stage names where the access chain reached its decision.
const (
	StageSession = "session"
	StageRole    = "role"
	StageRecover = "recover"
)

// AccessMetric captures one access-chain decision for metric emission.
type AccessMetric struct {
	Decision access.Decision
	Stage    string
	Duration time.Duration
	Err      error
}

// EmitAccessDecision emits the access.decision counter and access.chain timing.
func EmitAccessDecision(sink statsd.Sink, in AccessMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{
		"outcome": in.Decision.Outcome.String(),
		"class":   in.Decision.Class.String(),
		"stage":   in.Stage,
	}
	if in.Decision.Role != "" {
		tags["role"] = in.Decision.Role.String()
	}
	if in.Decision.Reason != "" {
		tags["reason"] = in.Decision.Reason
	}
	if class := obserrors.Classify(in.Err); class != "" {
		tags["error_class"] = class
	}

	sink.Count("access.decision", 1, tags)
	if in.Duration > 0 {
		sink.Timing("access.chain", in.Duration, CloneTags(tags))
	}
}

// LoginMetric captures a login callback or logout attempt.
type LoginMetric struct {
	// Step is "callback" or "logout".
	Step   string
	Result string
	Err    error
}

// EmitLogin emits the auth.login counter.
func EmitLogin(sink statsd.Sink, in LoginMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{"step": in.Step, "result": in.Result}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}
	sink.Count("auth.login", 1, tags)
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	return maps.Clone(src)
}
