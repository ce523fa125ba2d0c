package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fieldserve/workflow-service/internal/config"
)

const lastLocationTTL = 24 * time.Hour

// Redis wraps the go-redis client with the caches the workflow engine uses:
// the last-known location per ticket and per-user unread counters.
type Redis struct {
	Client *redis.Client
}

// CachedLocation is the last validated sample logged for a ticket.
type CachedLocation struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRedis connects to Redis using the provided configuration.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

// SetLastLocation caches the most recent validated sample for a ticket.
func (r *Redis) SetLastLocation(ctx context.Context, ticketID string, loc CachedLocation) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	payload, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, lastLocationKey(ticketID), payload, lastLocationTTL).Err()
}

// GetLastLocation returns the cached sample, or nil on a miss.
func (r *Redis) GetLastLocation(ctx context.Context, ticketID string) (*CachedLocation, error) {
	if r == nil || r.Client == nil {
		return nil, errors.New("redis client not configured")
	}
	raw, err := r.Client.Get(ctx, lastLocationKey(ticketID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var loc CachedLocation
	if err := json.Unmarshal(raw, &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

// IncrUnread bumps a user's unread notification counter.
func (r *Redis) IncrUnread(ctx context.Context, userID string) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Incr(ctx, unreadKey(userID)).Err()
}

// DecrUnread lowers a user's unread counter, clamping at zero.
func (r *Redis) DecrUnread(ctx context.Context, userID string) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	val, err := r.Client.Decr(ctx, unreadKey(userID)).Result()
	if err != nil {
		return err
	}
	if val < 0 {
		return r.Client.Set(ctx, unreadKey(userID), 0, 0).Err()
	}
	return nil
}

// GetUnread reads a user's unread counter; callers fall back to the store
// when redis is unavailable.
func (r *Redis) GetUnread(ctx context.Context, userID string) (int64, error) {
	if r == nil || r.Client == nil {
		return 0, errors.New("redis client not configured")
	}
	val, err := r.Client.Get(ctx, unreadKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return val, err
}

func lastLocationKey(ticketID string) string {
	return fmt.Sprintf("workflow:ticket:%s:last_location", ticketID)
}

func unreadKey(userID string) string {
	return fmt.Sprintf("workflow:user:%s:unread", userID)
}
