package otp

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// 只有 nonce 一致且尚未被使用时才写入 consumed 字段
var consumeScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'nonce') ~= ARGV[1] then
	return 0
end
return redis.call('HSETNX', KEYS[1], 'consumed', '1')
`)

var failureScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'nonce') ~= ARGV[1] then
	return 0
end
return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
`)

type RedisStore struct {
	rdb     *redis.Client
	timeout time.Duration
}

func NewRedisStore(rdb *redis.Client, timeout time.Duration) *RedisStore {
	return &RedisStore{
		rdb:     rdb,
		timeout: timeout,
	}
}

func (s *RedisStore) Save(ctx context.Context, c *Challenge, retainUntil time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key := c.Key.String()
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"code", c.Code,
			"nonce", c.Nonce,
			"issued_at", c.IssuedAt.UnixMilli(),
			"expires_at", c.ExpiresAt.UnixMilli(),
		)
		pipe.PExpireAt(ctx, key, retainUntil)
		return nil
	})
	return err
}

func (s *RedisStore) Load(ctx context.Context, key Key) (*Challenge, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	fields, err := s.rdb.HGetAll(ctx, key.String()).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, errNotFound
	}

	issuedAt, err := strconv.ParseInt(fields["issued_at"], 10, 64)
	if err != nil {
		return nil, errors.New("corrupted otp challenge: issued_at")
	}
	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, errors.New("corrupted otp challenge: expires_at")
	}

	attempts := 0
	if v, ok := fields["attempts"]; ok {
		if attempts, err = strconv.Atoi(v); err != nil {
			return nil, errors.New("corrupted otp challenge: attempts")
		}
	}

	_, consumed := fields["consumed"]
	return &Challenge{
		Key:       key,
		Code:      fields["code"],
		Nonce:     fields["nonce"],
		IssuedAt:  time.UnixMilli(issuedAt),
		ExpiresAt: time.UnixMilli(expiresAt),
		Consumed:  consumed,
		Attempts:  attempts,
	}, nil
}

func (s *RedisStore) MarkConsumed(ctx context.Context, key Key, nonce string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := consumeScript.Run(ctx, s.rdb, []string{key.String()}, nonce).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *RedisStore) RecordFailure(ctx context.Context, key Key, nonce string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return failureScript.Run(ctx, s.rdb, []string{key.String()}, nonce).Int()
}
