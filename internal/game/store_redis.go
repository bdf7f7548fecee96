package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStateMirror keeps the latest public state of each live room in Redis so
// it can be read without touching the room lock. It is write-only from the
// room's point of view: nothing is ever restored from it.
type RedisStateMirror struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStateMirror(rdb *redis.Client, ttl time.Duration) *RedisStateMirror {
	return &RedisStateMirror{rdb: rdb, ttl: ttl}
}

func (s *RedisStateMirror) key(code string) string {
	return fmt.Sprintf("room:%s:state", code)
}

func (s *RedisStateMirror) Save(ctx context.Context, st PublicState) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode room state: %w", err)
	}
	return s.rdb.Set(ctx, s.key(st.Code), b, s.ttl).Err()
}

func (s *RedisStateMirror) Load(ctx context.Context, code string) (PublicState, bool, error) {
	val, err := s.rdb.Get(ctx, s.key(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return PublicState{}, false, nil
	}
	if err != nil {
		return PublicState{}, false, err
	}

	var st PublicState
	if err := json.Unmarshal(val, &st); err != nil {
		return PublicState{}, false, fmt.Errorf("decode room state: %w", err)
	}
	return st, true, nil
}

func (s *RedisStateMirror) Delete(ctx context.Context, code string) error {
	return s.rdb.Del(ctx, s.key(code)).Err()
}
