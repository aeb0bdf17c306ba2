package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingReply = "\x00pending"

// MessageDeduper remembers inbound provider message ids so that webhook retries
// are answered with the first reply instead of creating a second grievance.
type MessageDeduper interface {
	// Claim returns claimed=true for the first delivery of messageID. For a repeat
	// delivery it returns the stored reply, or "" while the first one is still running.
	Claim(ctx context.Context, messageID string) (claimed bool, reply string, err error)
	Complete(ctx context.Context, messageID, reply string) error
	Release(ctx context.Context, messageID string) error
}

// RedisDeduper зберігає MessageSid у Redis через SETNX з TTL.
type RedisDeduper struct {
	Redis  *redis.Client
	TTL    time.Duration
	Prefix string
}

func NewRedisDeduper(rdb *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{Redis: rdb, TTL: ttl, Prefix: "inbound:"}
}

func (d *RedisDeduper) Claim(ctx context.Context, messageID string) (bool, string, error) {
	if messageID == "" {
		return true, "", nil
	}
	ok, err := d.Redis.SetNX(ctx, d.Prefix+messageID, pendingReply, d.TTL).Result()
	if err != nil {
		return false, "", err
	}
	if ok {
		return true, "", nil
	}

	reply, err := d.Redis.Get(ctx, d.Prefix+messageID).Result()
	if errors.Is(err, redis.Nil) {
		// Ключ щойно протермінувався
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	if reply == pendingReply {
		return false, "", nil
	}
	return false, reply, nil
}

func (d *RedisDeduper) Complete(ctx context.Context, messageID, reply string) error {
	if messageID == "" {
		return nil
	}
	return d.Redis.Set(ctx, d.Prefix+messageID, reply, d.TTL).Err()
}

func (d *RedisDeduper) Release(ctx context.Context, messageID string) error {
	if messageID == "" {
		return nil
	}
	return d.Redis.Del(ctx, d.Prefix+messageID).Err()
}

// NoopDeduper is used when Redis is not configured; every delivery is processed.
type NoopDeduper struct{}

func (NoopDeduper) Claim(context.Context, string) (bool, string, error) { return true, "", nil }
func (NoopDeduper) Complete(context.Context, string, string) error      { return nil }
func (NoopDeduper) Release(context.Context, string) error               { return nil }
