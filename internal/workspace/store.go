package workspace

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/contest"
	redisclient "github.com/CDeX-Labs/CDeX-Contest-Service/internal/redis"
)

const workspaceKeyFmt = "workspace:%s:%s" // contestID, userID

// Store is the optional durable side of the workspace cache.
type Store interface {
	Save(ctx context.Context, contestID, userID, problemID string, lang contest.Language, source string) error
	LoadAll(ctx context.Context, contestID, userID string) (map[key]string, error)
	Delete(ctx context.Context, contestID, userID string) error
}

// RedisStore keeps one hash per (contest, participant), one field per
// (problem, language) buffer. The TTL bounds how long abandoned buffers
// outlive a disconnect; it should cover the contest window.
type RedisStore struct {
	redis *redisclient.Client
	ttl   time.Duration
}

func NewRedisStore(redis *redisclient.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{redis: redis, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, contestID, userID, problemID string, lang contest.Language, source string) error {
	hashKey := fmt.Sprintf(workspaceKeyFmt, contestID, userID)
	field := problemID + ":" + string(lang)
	if err := s.redis.HSet(ctx, hashKey, field, source); err != nil {
		return err
	}
	return s.redis.Expire(ctx, hashKey, s.ttl)
}

func (s *RedisStore) LoadAll(ctx context.Context, contestID, userID string) (map[key]string, error) {
	hashKey := fmt.Sprintf(workspaceKeyFmt, contestID, userID)
	fields, err := s.redis.HGetAll(ctx, hashKey)
	if err != nil {
		return nil, err
	}

	entries := make(map[key]string, len(fields))
	for field, source := range fields {
		idx := strings.LastIndex(field, ":")
		if idx <= 0 {
			continue
		}
		entries[key{
			problemID: field[:idx],
			language:  contest.Language(field[idx+1:]),
		}] = source
	}
	return entries, nil
}

func (s *RedisStore) Delete(ctx context.Context, contestID, userID string) error {
	return s.redis.Del(ctx, fmt.Sprintf(workspaceKeyFmt, contestID, userID))
}
