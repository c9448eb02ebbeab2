package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	id "cynergists/pkg/domain"
)

// defaultTTL keeps abandoned conversations from accumulating forever.
// Refreshed on every append, so active conversations never expire mid-flow.
const defaultTTL = 30 * 24 * time.Hour

// RedisStore keeps conversation history in a Redis list, one entry per
// message, keyed conv:<tenant>:<agent>.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed conversation store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, ttl: defaultTTL}
}

func redisKey(tenantID id.TenantID, agentName string) string {
	return fmt.Sprintf("conv:%s:%s", tenantID.String(), strings.ToLower(agentName))
}

// Append pushes messages onto the end of the list and refreshes the TTL.
func (s *RedisStore) Append(ctx context.Context, tenantID id.TenantID, agentName string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	values := make([]any, 0, len(msgs))
	for _, m := range msgs {
		raw, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		values = append(values, raw)
	}

	key := redisKey(tenantID, agentName)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, values...)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append conversation: %w", err)
	}
	return nil
}

// History returns the full oldest-first history for a pair.
func (s *RedisStore) History(ctx context.Context, tenantID id.TenantID, agentName string) ([]Message, error) {
	raw, err := s.client.LRange(ctx, redisKey(tenantID, agentName), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	out := make([]Message, 0, len(raw))
	for _, entry := range raw {
		var m Message
		if err := json.Unmarshal([]byte(entry), &m); err != nil {
			return nil, fmt.Errorf("unmarshal message: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

// Clear removes a pair's history.
func (s *RedisStore) Clear(ctx context.Context, tenantID id.TenantID, agentName string) error {
	if err := s.client.Del(ctx, redisKey(tenantID, agentName)).Err(); err != nil {
		return fmt.Errorf("clear conversation: %w", err)
	}
	return nil
}
