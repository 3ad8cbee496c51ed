// Package redis keeps portal login sessions in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	domainauth "github.com/target/powra-portal/internal/domain/auth"
)

// DefaultKeyPrefix namespaces session keys.
const DefaultKeyPrefix = "powra:session:"

// ErrNotFound is returned when a session id names no live session.
var ErrNotFound = errors.New("session not found")

// SessionStoreOptions configures SessionStore.
type SessionStoreOptions struct {
	// KeyPrefix defaults to DefaultKeyPrefix.
	KeyPrefix string
	// Now overrides the clock (tests).
	Now func() time.Time
}

// SessionStore persists sessions as JSON under <prefix>sid:<id> and indexes each
// user's live session ids under <prefix>user:<user id>, so an account can be signed
// out everywhere at once.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ Store = (*SessionStore)(nil)

// NewSessionStore constructs a SessionStore over client.
func NewSessionStore(client redis.UniversalClient, opts SessionStoreOptions) *SessionStore {
	if client == nil {
		panic("redis client is required")
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &SessionStore{client: client, prefix: prefix, now: now}
}

func (s *SessionStore) sessionKey(id string) string { return s.prefix + "sid:" + id }

func (s *SessionStore) userKey(userID string) string { return s.prefix + "user:" + userID }

// Save writes sess until its ExpiresAt and adds it to the owner's index. The index
// lives as long as the longest session saved into it.
func (s *SessionStore) Save(ctx context.Context, sess domainauth.Session) error {
	if sess.ID == "" || sess.UserID == "" {
		return errors.New("session id and user id are required")
	}
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", sess.ID)
	}
	body, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	idx := s.userKey(sess.UserID)
	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.sessionKey(sess.ID), body, ttl)
		p.SAdd(ctx, idx, sess.ID)
		p.ExpireNX(ctx, idx, ttl)
		p.ExpireGT(ctx, idx, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Get loads a live session. Missing and expired sessions are ErrNotFound.
func (s *SessionStore) Get(ctx context.Context, id string) (domainauth.Session, error) {
	if id == "" {
		return domainauth.Session{}, ErrNotFound
	}
	raw, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domainauth.Session{}, ErrNotFound
	}
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("get session: %w", err)
	}

	var sess domainauth.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return domainauth.Session{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	if sess.Expired(s.now()) {
		_ = s.remove(ctx, sess)
		return domainauth.Session{}, ErrNotFound
	}
	return sess, nil
}

// Delete removes one session. Unknown ids are not an error.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	raw, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	var sess domainauth.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		// Unreadable payloads have no usable owner; drop the key alone.
		return s.client.Del(ctx, s.sessionKey(id)).Err()
	}
	return s.remove(ctx, sess)
}

func (s *SessionStore) remove(ctx context.Context, sess domainauth.Session) error {
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.sessionKey(sess.ID))
		p.SRem(ctx, s.userKey(sess.UserID), sess.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// RevokeUser deletes every session held by userID and returns how many were live.
func (s *SessionStore) RevokeUser(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, nil
	}
	idx := s.userKey(userID)
	ids, err := s.client.SMembers(ctx, idx).Result()
	if err != nil {
		return 0, fmt.Errorf("list sessions for %s: %w", userID, err)
	}

	// Keys are deleted one by one: session and index keys hash to different
	// cluster slots.
	dels := make([]*redis.IntCmd, 0, len(ids))
	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, id := range ids {
			dels = append(dels, p.Del(ctx, s.sessionKey(id)))
		}
		p.Del(ctx, idx)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("revoke sessions for %s: %w", userID, err)
	}
	revoked := 0
	for _, d := range dels {
		revoked += int(d.Val())
	}
	return revoked, nil
}
