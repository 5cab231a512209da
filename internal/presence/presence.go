package presence

import (
	"context"
	"fmt"
	"time"

	redisclient "github.com/CDeX-Labs/CDeX-Contest-Service/internal/redis"
	"github.com/rs/zerolog"
)

const (
	userKeyFmt    = "presence:user:%s"
	contestKeyFmt = "presence:contest:%s"
	presenceTTL   = 5 * time.Minute
)

// Manager tracks who is connected and which contests they are actively
// sitting in, shared across service instances through Redis. Entries expire
// with a TTL so a crashed instance cannot leave ghosts behind; live
// instances refresh on the WebSocket ping cadence.
type Manager struct {
	redis      *redisclient.Client
	instanceID string
	logger     zerolog.Logger
}

func NewManager(redis *redisclient.Client, instanceID string, logger zerolog.Logger) *Manager {
	return &Manager{
		redis:      redis,
		instanceID: instanceID,
		logger:     logger.With().Str("component", "presence").Logger(),
	}
}

func (m *Manager) SetOnline(ctx context.Context, userID string) error {
	key := fmt.Sprintf(userKeyFmt, userID)
	if err := m.redis.HSet(ctx, key, m.instanceID, time.Now().Unix()); err != nil {
		return err
	}
	return m.redis.Expire(ctx, key, presenceTTL)
}

func (m *Manager) SetOffline(ctx context.Context, userID string) error {
	key := fmt.Sprintf(userKeyFmt, userID)
	return m.redis.HDel(ctx, key, m.instanceID)
}

func (m *Manager) IsOnline(ctx context.Context, userID string) (bool, error) {
	key := fmt.Sprintf(userKeyFmt, userID)
	count, err := m.redis.HLen(ctx, key)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ContestJoined marks the user as sitting in a contest session.
func (m *Manager) ContestJoined(ctx context.Context, contestID, userID string) error {
	key := fmt.Sprintf(contestKeyFmt, contestID)
	if err := m.redis.HSet(ctx, key, userID, m.instanceID); err != nil {
		return err
	}
	return m.redis.Expire(ctx, key, presenceTTL)
}

// ContestLeft removes the user from the contest roster. Called when the
// session ends, whatever the reason.
func (m *Manager) ContestLeft(ctx context.Context, contestID, userID string) error {
	key := fmt.Sprintf(contestKeyFmt, contestID)
	return m.redis.HDel(ctx, key, userID)
}

// ContestParticipantCount reports how many users currently hold a live
// session in the contest, across all instances.
func (m *Manager) ContestParticipantCount(ctx context.Context, contestID string) (int64, error) {
	key := fmt.Sprintf(contestKeyFmt, contestID)
	return m.redis.HLen(ctx, key)
}

// ContestParticipants returns userID -> hosting instance for the contest.
func (m *Manager) ContestParticipants(ctx context.Context, contestID string) (map[string]string, error) {
	key := fmt.Sprintf(contestKeyFmt, contestID)
	return m.redis.HGetAll(ctx, key)
}

// Refresh extends the user's presence and contest entries. Driven by the
// connection keepalive so entries outlive exactly the connections they
// describe.
func (m *Manager) Refresh(ctx context.Context, userID string, contestIDs []string) error {
	if err := m.SetOnline(ctx, userID); err != nil {
		return err
	}
	for _, contestID := range contestIDs {
		key := fmt.Sprintf(contestKeyFmt, contestID)
		if err := m.redis.Expire(ctx, key, presenceTTL); err != nil {
			return err
		}
	}
	return nil
}
