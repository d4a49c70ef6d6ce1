package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/advisor-ai/advisor/pkg/types"
)

// sessionKeyPrefix namespaces session documents in redis.
const sessionKeyPrefix = "advisor:session:"

// sessionDoc is the JSON document stored per session.
type sessionDoc struct {
	ID           string       `json:"id"`
	Turns        []types.Turn `json:"turns"`
	Tokens       int          `json:"tokens"`
	CreatedAt    time.Time    `json:"createdAt"`
	LastActiveAt time.Time    `json:"lastActiveAt"`
}

// RedisStore keeps session history in redis so multiple advisor instances
// can share sessions. Idle expiry rides on redis key TTLs, refreshed on
// every read and write.
type RedisStore struct {
	client *redis.Client
	budget int
	ttl    time.Duration
}

// NewRedisStore connects to redis at url (redis:// form) and verifies the
// connection. A non-positive ttl defaults to 24 hours.
func NewRedisStore(url string, budget int, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, budget: budget, ttl: ttl}, nil
}

func (s *RedisStore) key(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

// load fetches and decodes a session document. Missing keys return nil.
func (s *RedisStore) load(ctx context.Context, sessionID string) (*sessionDoc, error) {
	val, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc sessionDoc
	if err := json.Unmarshal([]byte(val), &doc); err != nil {
		return nil, err
	}
	// Refresh TTL on read; a failed refresh is not fatal.
	_ = s.client.Expire(ctx, s.key(sessionID), s.ttl).Err()
	return &doc, nil
}

// Append implements Store. It uses WATCH/MULTI/EXEC so concurrent writers
// on different instances cannot lose turns.
func (s *RedisStore) Append(ctx context.Context, sessionID string, turns ...types.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	key := s.key(sessionID)

	txn := func(tx *redis.Tx) error {
		now := time.Now()
		doc := &sessionDoc{ID: sessionID, CreatedAt: now}

		val, err := tx.Get(ctx, key).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil {
			doc = &sessionDoc{}
			if err := json.Unmarshal([]byte(val), doc); err != nil {
				return err
			}
		}

		for i := range turns {
			t := turns[i]
			if t.Tokens <= 0 {
				t.Tokens = turnCost(t)
			}
			if t.CreatedAt.IsZero() {
				t.CreatedAt = now
			}
			doc.Turns = append(doc.Turns, t)
		}
		doc.Turns, doc.Tokens = evictOverBudget(doc.Turns, s.budget, len(turns))
		doc.LastActiveAt = now

		newVal, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newVal, s.ttl)
			return nil
		})
		return err
	}

	// Retry on optimistic lock conflicts.
	for attempt := 0; attempt < 5; attempt++ {
		err := s.client.Watch(ctx, txn, key)
		if err != redis.TxFailedErr {
			return err
		}
	}
	return fmt.Errorf("append session %s: too many concurrent writers", sessionID)
}

// History implements Store.
func (s *RedisStore) History(ctx context.Context, sessionID string, maxTokens int) ([]types.Turn, error) {
	doc, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	return window(doc.Turns, maxTokens), nil
}

// Turns implements Store.
func (s *RedisStore) Turns(ctx context.Context, sessionID string) ([]types.Turn, error) {
	doc, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	return doc.Turns, nil
}

// Info implements Store.
func (s *RedisStore) Info(ctx context.Context, sessionID string) (*types.SessionInfo, error) {
	doc, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	return &types.SessionInfo{
		ID:           sessionID,
		CreatedAt:    doc.CreatedAt,
		LastActiveAt: doc.LastActiveAt,
		TurnCount:    len(doc.Turns),
		TokenCount:   doc.Tokens,
	}, nil
}

// Evict implements Store.
func (s *RedisStore) Evict(ctx context.Context, sessionID string) error {
	n, err := s.client.Del(ctx, s.key(sessionID)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
