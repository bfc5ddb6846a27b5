// Package rediscache keeps notification session state and rate-limit counters
// in Redis.
package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ukydev/fleet-maintenance/internal/alerts"
)

const keyPrefix = "fleet:notifications:"

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient creates a go-redis client and checks the connection.
func NewClient(ctx context.Context, o Options) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{Addr: o.Addr, Password: o.Password, DB: o.DB})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return c, nil
}

// SessionStore implements alerts.SessionStore on Redis sets. Each session has
// one set of dismissed ids and one of read ids, both expiring after ttl of
// inactivity.
type SessionStore struct {
	c   *redis.Client
	ttl time.Duration
}

var _ alerts.SessionStore = (*SessionStore)(nil)

// NewSessionStore wraps an existing client.
func NewSessionStore(c *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{c: c, ttl: ttl}
}

func dismissedKey(session string) string { return keyPrefix + session + ":dismissed" }
func readKey(session string) string      { return keyPrefix + session + ":read" }

// State loads both sets of the session in one round trip.
func (s *SessionStore) State(ctx context.Context, session string) (alerts.SessionState, error) {
	pipe := s.c.Pipeline()
	dismissed := pipe.SMembers(ctx, dismissedKey(session))
	read := pipe.SMembers(ctx, readKey(session))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return alerts.SessionState{}, fmt.Errorf("redis session state: %w", err)
	}
	return alerts.SessionState{
		Dismissed: toSet(dismissed.Val()),
		Read:      toSet(read.Val()),
	}, nil
}

// Dismiss adds ids to the session's dismissed set.
func (s *SessionStore) Dismiss(ctx context.Context, session string, ids ...string) error {
	return s.add(ctx, dismissedKey(session), ids)
}

// MarkRead adds ids to the session's read set.
func (s *SessionStore) MarkRead(ctx context.Context, session string, ids ...string) error {
	return s.add(ctx, readKey(session), ids)
}

func (s *SessionStore) add(ctx context.Context, key string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	pipe := s.c.TxPipeline()
	pipe.SAdd(ctx, key, members...)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis sadd: %w", err)
	}
	return nil
}

func toSet(members []string) map[string]struct{} {
	out := make(map[string]struct{}, len(members))
	for _, m := range members {
		out[m] = struct{}{}
	}
	return out
}
