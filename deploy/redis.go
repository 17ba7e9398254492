package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/juls0730/fluxops/pkg"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	runKeyPrefix    = "flux:run:"
	markerKeyPrefix = "flux:deployment:start:"
)

type RedisConfig struct {
	Addr     string `mapstructure:"addr" json:"addr"`
	Password string `mapstructure:"password" json:"password"`
	DB       int    `mapstructure:"db" json:"db"`
}

// RedisStore keeps runs and start markers in redis so several daemons can
// serve the same deployment.
type RedisStore struct {
	client *redis.Client
	logger *zap.SugaredLogger
}

var (
	_ RunStore = (*RedisStore)(nil)
	_ Marker   = (*RedisStore)(nil)
)

func NewRedisStore(cfg RedisConfig, logger *zap.SugaredLogger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Infof("Connected to redis at %s", cfg.Addr)

	return &RedisStore{client: client, logger: logger}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Get(ctx context.Context, id string) (pkg.DeploymentRun, bool, error) {
	var run pkg.DeploymentRun

	data, err := s.client.Get(ctx, runKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return run, false, nil
	}
	if err != nil {
		return run, false, fmt.Errorf("failed to load run %s: %w", id, err)
	}

	if err := json.Unmarshal(data, &run); err != nil {
		return run, false, fmt.Errorf("failed to decode run %s: %w", id, err)
	}

	return run, true, nil
}

func (s *RedisStore) Put(ctx context.Context, run pkg.DeploymentRun, ttl time.Duration) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run %s: %w", run.ID, err)
	}

	if err := s.client.Set(ctx, runKeyPrefix+run.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store run %s: %w", run.ID, err)
	}

	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, runKeyPrefix+id).Err()
}

// MarkStart stores the start time as unix nanoseconds.
func (s *RedisStore) MarkStart(ctx context.Context, runID string, at time.Time, ttl time.Duration) error {
	return s.client.Set(ctx, markerKeyPrefix+runID, strconv.FormatInt(at.UnixNano(), 10), ttl).Err()
}

func (s *RedisStore) StartedAt(ctx context.Context, runID string) (time.Time, bool, error) {
	value, err := s.client.Get(ctx, markerKeyPrefix+runID).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read start marker: %w", err)
	}

	return time.Unix(0, value), true, nil
}

func (s *RedisStore) ClearStart(ctx context.Context, runID string) error {
	return s.client.Del(ctx, markerKeyPrefix+runID).Err()
}
