package workflowstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/reybrally/order-pipeline/internal/app/workflow"
)

// RedisStore хранит исполнения как JSON под префиксованным ключом.
// SetNX атомарно "застолбит" имя исполнения; TTL — окно идемпотентности:
// передоставка события внутри окна увидит существующую запись, после
// истечения — начнёт свежий запуск.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

func NewRedisStore(cfg RedisConfig) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &RedisStore{rdb: rdb, prefix: cfg.Prefix, ttl: cfg.TTL}
}

func (s *RedisStore) makeKey(name string) string { return s.prefix + name }

func (s *RedisStore) Create(ctx context.Context, e workflow.Execution) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, s.makeKey(e.Name), data, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return workflow.ErrAlreadyExists
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, e workflow.Execution) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	// KeepTTL: окно идемпотентности отсчитывается от claim-а, не от апдейтов
	return s.rdb.Set(ctx, s.makeKey(e.Name), data, redis.KeepTTL).Err()
}

func (s *RedisStore) Get(ctx context.Context, name string) (workflow.Execution, error) {
	b, err := s.rdb.Get(ctx, s.makeKey(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return workflow.Execution{}, workflow.ErrNotFound
		}
		return workflow.Execution{}, err
	}
	var e workflow.Execution
	if err := json.Unmarshal(b, &e); err != nil {
		return workflow.Execution{}, err
	}
	return e, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error { return s.rdb.Close() }
