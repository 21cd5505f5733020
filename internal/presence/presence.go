// Package presence mirrors live room membership into Redis sets so the REST
// API can report active collaborators. The mirror is best-effort and never
// consulted by the relay: in-process membership is the source of truth for
// fan-out.
package presence

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "presence:room:"

// A stale entry from a crashed process ages out instead of lingering.
const roomTTL = 24 * time.Hour

type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
}

func NewTracker(rdb *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{redis: rdb, logger: logger.With().Str("component", "presence").Logger()}
}

func (t *Tracker) Join(ctx context.Context, roomID, connID string) {
	if t == nil || t.redis == nil {
		return
	}
	key := keyPrefix + roomID
	if err := t.redis.SAdd(ctx, key, connID).Err(); err != nil {
		t.logger.Debug().Err(err).Str("room", roomID).Msg("presence join skipped")
		return
	}
	t.redis.Expire(ctx, key, roomTTL)
}

func (t *Tracker) Leave(ctx context.Context, roomID, connID string) {
	if t == nil || t.redis == nil {
		return
	}
	if err := t.redis.SRem(ctx, keyPrefix+roomID, connID).Err(); err != nil {
		t.logger.Debug().Err(err).Str("room", roomID).Msg("presence leave skipped")
	}
}

// Members lists the connection ids currently shown as present in the room.
func (t *Tracker) Members(ctx context.Context, roomID string) []string {
	if t == nil || t.redis == nil {
		return nil
	}
	members, err := t.redis.SMembers(ctx, keyPrefix+roomID).Result()
	if err != nil {
		t.logger.Debug().Err(err).Str("room", roomID).Msg("presence read skipped")
		return nil
	}
	return members
}
