package store

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	redisSlotPrefix = "slot:"
	redisIndexKey   = "slots"
)

// RedisBackend keeps each document under slot:<name> and indexes slot names
// in a sorted set scored by update time
type RedisBackend struct {
	client    *redis.Client
	namespace string
}

// NewRedisBackend connects and pings the server. namespace prefixes every key.
func NewRedisBackend(opts *redis.Options, namespace string) (*RedisBackend, error) {
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisBackend{client: client, namespace: namespace}, nil
}

func (b *RedisBackend) slotKey(name string) string {
	return b.namespace + redisSlotPrefix + name
}

func (b *RedisBackend) indexKey() string {
	return b.namespace + redisIndexKey
}

// Put writes the document and its index entry in one transaction
func (b *RedisBackend) Put(ctx context.Context, name string, doc []byte, updatedAt time.Time) error {
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, b.slotKey(name), doc, 0)
		pipe.ZAdd(ctx, b.indexKey(), &redis.Z{
			Score:  float64(updatedAt.UnixMilli()),
			Member: name,
		})
		return nil
	})
	return err
}

// Get returns a slot document
func (b *RedisBackend) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := b.client.Get(ctx, b.slotKey(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSlotNotFound
	}
	return data, err
}

// List reads the index, newest first
func (b *RedisBackend) List(ctx context.Context) ([]SlotInfo, error) {
	entries, err := b.client.ZRevRangeWithScores(ctx, b.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	slots := make([]SlotInfo, 0, len(entries))
	for _, z := range entries {
		name, ok := z.Member.(string)
		if !ok {
			continue
		}
		slots = append(slots, SlotInfo{
			Name:      name,
			UpdatedAt: time.UnixMilli(int64(z.Score)),
		})
	}
	return slots, nil
}

// Delete removes the document and its index entry
func (b *RedisBackend) Delete(ctx context.Context, name string) error {
	var del *redis.IntCmd
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, b.slotKey(name))
		pipe.ZRem(ctx, b.indexKey(), name)
		return nil
	})
	if err != nil {
		return err
	}
	if del.Val() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// Close closes the client
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
