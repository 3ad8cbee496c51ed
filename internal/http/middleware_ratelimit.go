package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// AdminRateLimits caps admin user mutations per signed-in actor within Window.
// A zero limit leaves that mutation unthrottled.
type AdminRateLimits struct {
	Window  time.Duration
	Create  int
	SetRole int
	Delete  int
}

// LimitPerActor throttles next to limit requests per window for each session user.
// Requests without a session are keyed by client IP. Rejections are 429 JSON.
func LimitPerActor(limit int, window time.Duration) func(http.Handler) http.Handler {
	if limit <= 0 || window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(limit, window,
		httprate.WithKeyFuncs(actorKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			WriteJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":   "rate_limited",
				"message": "Too many attempts. Please try again later.",
			})
		}),
	)
}

func actorKey(r *http.Request) (string, error) {
	if sess, ok := SessionFromContext(r.Context()); ok && sess.UserID != "" {
		return "user:" + sess.UserID, nil
	}
	return httprate.KeyByIP(r)
}
