package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "snapdash:session:"

// maxUpdateRetries bounds optimistic-lock retries in Update.
const maxUpdateRetries = 10

// RedisStore keeps sessions in Redis so several server instances can share
// them. Every read or write extends the session's TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.Mutex
}

// NewRedisStore connects to addr and verifies the connection with a ping.
// ttl <= 0 defaults to 30 minutes.
func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

// Get returns the session for id and refreshes its TTL.
func (r *RedisStore) Get(ctx context.Context, id string) (Session, error) {
	if err := ValidateID(id); err != nil {
		return Session{}, err
	}

	data, err := r.client.GetEx(ctx, redisKey(id), r.ttl).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("reading session from redis: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("decoding session: %w", err)
	}
	return sess, nil
}

// Put stores s with the store's TTL.
func (r *RedisStore) Put(ctx context.Context, sess Session) error {
	if err := ValidateID(sess.ID); err != nil {
		return err
	}
	sess.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := r.client.Set(ctx, redisKey(sess.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("writing session to redis: %w", err)
	}
	return nil
}

// Update applies fn inside a WATCH/MULTI transaction, retrying when another
// writer touches the key in between.
func (r *RedisStore) Update(ctx context.Context, id string, fn UpdateFunc) (Session, error) {
	if err := ValidateID(id); err != nil {
		return Session{}, err
	}
	key := redisKey(id)

	var updated Session
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return fmt.Errorf("reading session from redis: %w", err)
		}
		var sess Session
		if err := json.Unmarshal(data, &sess); err != nil {
			return fmt.Errorf("decoding session: %w", err)
		}
		if err := fn(&sess); err != nil {
			return err
		}
		sess.ID = id
		sess.UpdatedAt = time.Now().UTC()

		out, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("encoding session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, r.ttl)
			return nil
		})
		if err == nil {
			updated = sess
		}
		return err
	}

	for range maxUpdateRetries {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return Session{}, err
		}
		return updated, nil
	}
	return Session{}, ErrConflict
}

// Delete removes the session for id.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, redisKey(id)).Result()
	if err != nil {
		return fmt.Errorf("deleting session from redis: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks the Redis connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the client. Safe to call more than once.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}
