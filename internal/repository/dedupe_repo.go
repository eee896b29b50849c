package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDeduper claims short-lived checkout keys so a double submit reuses the
// first order instead of opening a second one.
type RedisDeduper struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisDeduper(rdb *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisDeduper{rdb: rdb, ttl: ttl}
}

// CheckoutKey is everything that makes two checkout requests the same
// purchase. Orders are only reused when all of it matches.
type CheckoutKey struct {
	UserID    string
	Kind      string
	PostType  string
	PostID    *uint
	BoostType string
	Amount    int64
}

func (k CheckoutKey) String() string {
	post := "-"
	if k.PostID != nil {
		post = fmt.Sprintf("%s.%d", k.PostType, *k.PostID)
	}
	boost := k.BoostType
	if boost == "" {
		boost = "-"
	}
	return fmt.Sprintf("checkout:%s:%s:%s:%s:%d", k.UserID, k.Kind, post, boost, k.Amount)
}

// Claim stores reference under key unless the key is taken. When it is, the
// reference already stored is returned with claimed=false.
func (d *RedisDeduper) Claim(ctx context.Context, key, reference string) (existing string, claimed bool, err error) {
	ok, err := d.rdb.SetNX(ctx, key, reference, d.ttl).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return reference, true, nil
	}
	existing, err = d.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return existing, false, nil
}

func (d *RedisDeduper) Release(ctx context.Context, key string) error {
	return d.rdb.Del(ctx, key).Err()
}
