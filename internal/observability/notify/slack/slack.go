// Package slack posts notifications to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/target/powra-portal/internal/observability/notify"
)

// Config captures the subset of Slack webhook behaviour we need.
type Config struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// UserURLPrefix, when set, links user IDs to the admin users page.
	UserURLPrefix string
}

// Client delivers role change notifications to a Slack webhook.
type Client struct {
	webhookURL    string
	channel       string
	username      string
	retryLimit    int
	userURLPrefix string
	client        *http.Client
	// initialInterval is the first retry delay.
	initialInterval time.Duration
}

var _ notify.Sink = (*Client)(nil)

// NewClient builds a Slack webhook client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		webhookURL:      webhookURL,
		channel:         strings.TrimSpace(cfg.Channel),
		username:        fallbackString(strings.TrimSpace(cfg.Username), "powra-portal"),
		retryLimit:      max(cfg.RetryLimit, 0),
		userURLPrefix:   strings.TrimSpace(cfg.UserURLPrefix),
		client:          hc,
		initialInterval: 200 * time.Millisecond,
	}, nil
}

// SendRoleChange posts a formatted message to Slack. 4xx responses other than 429 are not retried.
func (c *Client) SendRoleChange(ctx context.Context, payload notify.RoleChangePayload) error {
	body, err := json.Marshal(c.formatMessage(payload))
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, c.post(ctx, body)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.retryLimit+1)),
	)
	return err
}

func (c *Client) formatMessage(payload notify.RoleChangePayload) map[string]any {
	timestamp := payload.OccurredAt
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	var text strings.Builder
	text.WriteString("*Portal role change*")
	if payload.To != "" {
		text.WriteString(" → `")
		text.WriteString(escapeSlackText(payload.To))
		text.WriteByte('`')
	}
	text.WriteByte('\n')
	appendSlackField(&text, "Severity", fallbackString(payload.Severity, notify.SeverityInfo))
	appendSlackField(&text, "User", c.formatUserValue(payload.UserID, payload.Email))
	appendSlackField(&text, "Previous role", escapeSlackText(payload.From))
	appendSlackField(&text, "Changed by", escapeSlackText(payload.Actor))
	text.WriteString("• Timestamp: ")
	text.WriteString(timestamp.UTC().Format(time.RFC3339))

	msg := map[string]any{
		"text":     text.String(),
		"username": c.username,
	}
	if c.channel != "" {
		msg["channel"] = c.channel
	}
	return msg
}

func (c *Client) formatUserValue(userID, email string) string {
	id := escapeSlackText(strings.TrimSpace(userID))
	mail := escapeSlackText(strings.TrimSpace(email))
	label := id
	if mail != "" {
		label = fmt.Sprintf("%s (%s)", mail, id)
	}
	if link := c.buildUserLink(strings.TrimSpace(userID)); link != "" {
		return fmt.Sprintf("<%s|%s>", link, label)
	}
	return label
}

func (c *Client) buildUserLink(userID string) string {
	if c.userURLPrefix == "" || userID == "" {
		return ""
	}
	u, err := url.Parse(c.userURLPrefix)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	link, err := url.JoinPath(u.String(), userID)
	if err != nil {
		return ""
	}
	return link
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create slack request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if _, err := io.Copy(io.Discard, resp.Body); err != nil {
			return fmt.Errorf("drain slack response body: %w", err)
		}
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	statusErr := fmt.Errorf("slack webhook %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if secs, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && secs > 0 {
			return backoff.RetryAfter(secs)
		}
		return statusErr
	case resp.StatusCode < 500:
		return backoff.Permanent(statusErr)
	default:
		return statusErr
	}
}

func fallbackString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func escapeSlackText(value string) string {
	if value == "" {
		return ""
	}
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(value)
}

func appendSlackField(text *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	text.WriteString("• ")
	text.WriteString(label)
	text.WriteString(": ")
	text.WriteString(value)
	text.WriteByte('\n')
}
