package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// noExpiryScore is the index score for sessions saved without a TTL (2100-01-01).
const noExpiryScore = 4102444800

// RedisStore persists checkpoints in Redis, one hash per session plus a
// sorted-set index scored by expiry time. It lets several server replicas
// resume each other's sessions.
type RedisStore struct {
	client  *backend.Client
	prefix  string
	ttl     time.Duration
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL expires idle checkpoints after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix. Default: "flowgraph:checkpoint:".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithOpTimeout bounds each Redis round trip. Default: 5s.
func WithOpTimeout(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewRedisStore connects to the Redis server at addr.
func NewRedisStore(addr, password string, db int, opts ...RedisOption) *RedisStore {
	client := backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreFromClient(client, opts...)
}

// NewRedisStoreFromClient wraps an existing client. Close closes the client.
func NewRedisStoreFromClient(client *backend.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:  client,
		prefix:  "flowgraph:checkpoint:",
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "index"
}

func (s *RedisStore) op() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// Save implements Store.
func (s *RedisStore) Save(sessionID string, data []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}

	ctx, cancel := s.op()
	defer cancel()

	now := time.Now().UTC()
	score := float64(now.Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = noExpiryScore
	}

	key := s.key(sessionID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		"data", data,
		"timestamp", now.Format(time.RFC3339Nano),
		"size", len(data),
	)
	pipe.HIncrBy(ctx, key, "saves", 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	} else {
		// A store without TTL must not inherit an expiry set by an earlier writer.
		pipe.Persist(ctx, key)
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: sessionID})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *RedisStore) Load(sessionID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	ctx, cancel := s.op()
	defer cancel()

	data, err := s.client.HGet(ctx, s.key(sessionID), "data").Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return data, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(sessionID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}

	ctx, cancel := s.op()
	defer cancel()

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(sessionID))
	pipe.ZRem(ctx, s.indexKey(), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// List implements Store. Expired sessions are pruned from the index first.
func (s *RedisStore) List() ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	ctx, cancel := s.op()
	defer cancel()

	now := strconv.FormatInt(time.Now().Unix(), 10)
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", "("+now).Err(); err != nil {
		return nil, fmt.Errorf("prune expired sessions: %w", err)
	}

	sessions, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	infos := make([]Info, 0, len(sessions))
	for _, id := range sessions {
		vals, err := s.client.HMGet(ctx, s.key(id), "saves", "timestamp", "size").Result()
		if err != nil {
			return nil, fmt.Errorf("read session %s: %w", id, err)
		}
		if vals[0] == nil {
			// Key expired before the index was pruned.
			continue
		}
		info := Info{SessionID: id}
		info.Saves, _ = strconv.Atoi(fmt.Sprint(vals[0]))
		info.Timestamp, _ = time.Parse(time.RFC3339Nano, fmt.Sprint(vals[1]))
		info.Size, _ = strconv.ParseInt(fmt.Sprint(vals[2]), 10, 64)
		infos = append(infos, info)
	}
	sortInfos(infos)
	return infos, nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
