package redisrepo

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/dignilife/faceauth-client/credentials"
)

var _ credentials.Repo = (*RedisRepo)(nil)

const defaultOpTimeout = 3 * time.Second

// RedisRepo stores tokens as fields of a single Redis hash, so pair writes and
// clears are one command each. Values are cached in memory so Get never waits
// on the network.
type RedisRepo struct {
	client    *redis.Client
	key       string
	opTimeout time.Duration

	values map[string]string
	lock   sync.RWMutex
}

// RedisRepoOption configures a RedisRepo
type RedisRepoOption func(*RedisRepo)

// WithOpTimeout bounds each write issued to Redis
func WithOpTimeout(d time.Duration) RedisRepoOption {
	return func(rr *RedisRepo) {
		rr.opTimeout = d
	}
}

// NewClient parses a redis:// URL and verifies connectivity
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, errors.New("[redisrepo.NewClient] redis url is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "[redisrepo.NewClient] parse redis url")
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "[redisrepo.NewClient] ping redis")
	}
	return client, nil
}

// Open loads the current tokens from the hash "<prefix>:credentials"
func Open(ctx context.Context, client *redis.Client, prefix string, options ...RedisRepoOption) (*RedisRepo, error) {
	if client == nil {
		return nil, errors.New("[redisrepo.Open] redis client is required")
	}

	rr := &RedisRepo{
		client:    client,
		key:       prefix + ":credentials",
		opTimeout: defaultOpTimeout,
		values:    make(map[string]string),
	}
	for _, opt := range options {
		opt(rr)
	}

	if err := rr.Reload(ctx); err != nil {
		return nil, err
	}
	return rr, nil
}

// Reload replaces the cached values with the contents of Redis
func (rr *RedisRepo) Reload(ctx context.Context) error {
	values, err := rr.client.HGetAll(ctx, rr.key).Result()
	if err != nil {
		return errors.Wrap(err, "[RedisRepo.Reload] HGETALL")
	}

	rr.lock.Lock()
	defer rr.lock.Unlock()
	rr.values = values
	return nil
}

func (rr *RedisRepo) Get(key string) (string, bool) {
	rr.lock.RLock()
	defer rr.lock.RUnlock()

	value, ok := rr.values[key]
	return value, ok
}

func (rr *RedisRepo) Set(key, value string) error {
	if err := credentials.CheckValue(key, value); err != nil {
		return err
	}
	return rr.hset(map[string]string{key: value})
}

func (rr *RedisRepo) SetSession(session credentials.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	return rr.hset(map[string]string{
		credentials.AccessTokenKey:  session.AccessToken,
		credentials.RefreshTokenKey: session.RefreshToken,
	})
}

func (rr *RedisRepo) Clear() error {
	rr.lock.Lock()
	defer rr.lock.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), rr.opTimeout)
	defer cancel()

	rr.values = make(map[string]string)
	if err := rr.client.Del(ctx, rr.key).Err(); err != nil {
		return errors.Wrap(err, "[RedisRepo.Clear] DEL")
	}
	return nil
}

func (rr *RedisRepo) hset(fields map[string]string) error {
	rr.lock.Lock()
	defer rr.lock.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), rr.opTimeout)
	defer cancel()

	args := make([]interface{}, 0, 2*len(fields))
	for k, v := range fields {
		args = append(args, k, v)
	}
	if err := rr.client.HSet(ctx, rr.key, args...).Err(); err != nil {
		return errors.Wrap(err, "[RedisRepo.hset] HSET")
	}
	for k, v := range fields {
		rr.values[k] = v
	}
	return nil
}
