package redis

import (
	"context"

	"github.com/autom8ter/notify/errors"
	"github.com/autom8ter/notify/store"
	"github.com/autom8ter/notify/store/registry"
	redis "github.com/go-redis/redis/v9"
	"github.com/spf13/cast"
)

func init() {
	registry.Register("redis", func(params map[string]interface{}) (store.Store, error) {
		return open(
			cast.ToString(params["addr"]),
			cast.ToString(params["password"]),
			cast.ToInt(params["db"]),
		)
	})
}

type redisStore struct {
	client *redis.Client
}

func open(addr, password string, db int) (store.Store, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, errors.Wrap(err, errors.Unavailable, "failed to connect to redis: %s", addr)
	}
	return &redisStore{client: client}, nil
}

// New returns a store over an existing redis client
func New(client *redis.Client) store.Store {
	return &redisStore{client: client}
}

func (r *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, errors.Unavailable, "")
	}
	return value, true, nil
}

func (r *redisStore) Set(ctx context.Context, key, value string) error {
	return errors.Wrap(r.client.Set(ctx, key, value, 0).Err(), errors.Unavailable, "")
}

func (r *redisStore) Del(ctx context.Context, keys ...string) error {
	return errors.Wrap(r.client.Del(ctx, keys...).Err(), errors.Unavailable, "")
}

func (r *redisStore) Incr(ctx context.Context, key string) (int64, error) {
	value, err := r.client.Incr(ctx, key).Result()
	return value, errors.Wrap(err, errors.Unavailable, "")
}

func (r *redisStore) Push(ctx context.Context, key string, values ...string) (int64, error) {
	args := make([]interface{}, 0, len(values))
	for _, value := range values {
		args = append(args, value)
	}
	count, err := r.client.RPush(ctx, key, args...).Result()
	return count, errors.Wrap(err, errors.Unavailable, "")
}

func (r *redisStore) PopPush(ctx context.Context, src, dst string) (string, bool, error) {
	value, err := r.client.LMove(ctx, src, dst, "LEFT", "RIGHT").Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, errors.Unavailable, "")
	}
	return value, true, nil
}

func (r *redisStore) Rem(ctx context.Context, key, value string) (int64, error) {
	count, err := r.client.LRem(ctx, key, 1, value).Result()
	return count, errors.Wrap(err, errors.Unavailable, "")
}

func (r *redisStore) Range(ctx context.Context, key string) ([]string, error) {
	values, err := r.client.LRange(ctx, key, 0, -1).Result()
	return values, errors.Wrap(err, errors.Unavailable, "")
}

func (r *redisStore) Len(ctx context.Context, key string) (int64, error) {
	count, err := r.client.LLen(ctx, key).Result()
	return count, errors.Wrap(err, errors.Unavailable, "")
}

func (r *redisStore) Close() error {
	return r.client.Close()
}
