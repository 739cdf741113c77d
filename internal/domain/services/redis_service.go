package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"apex-http-service/internal/infrastructure/config"

	"github.com/go-redis/redis/v8"
)

const (
	revokedTokenPrefix = "revoked_token:"
	revokedUserPrefix  = "revoked_user:"
)

// InterfaceRedisService defines the Redis service interface
type InterfaceRedisService interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
	RevokeUserTokens(ctx context.Context, userID uint, at time.Time, ttl time.Duration) error
	UserTokensRevokedAt(ctx context.Context, userID uint) (time.Time, bool, error)
	GetClient() *redis.Client
	Close() error
}

// RedisService handles Redis operations
type RedisService struct {
	Client *redis.Client
}

// NewRedisService creates a new Redis service
func NewRedisService(cfg *config.Config) InterfaceRedisService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return NewRedisServiceWithClient(client)
}

// NewRedisServiceWithClient wraps an existing client
func NewRedisServiceWithClient(client *redis.Client) InterfaceRedisService {
	return &RedisService{Client: client}
}

// 1 Set sets a JSON encoded value in Redis with expiration
func (s *RedisService) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, key, jsonValue, expiration).Err()
}

// 2 Get gets a value from Redis by key, ErrCacheMiss if absent
func (s *RedisService) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := s.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(val, dest)
}

// 3 Delete deletes keys from Redis
func (s *RedisService) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.Client.Del(ctx, keys...).Err()
}

// 4 Ping checks the connection
func (s *RedisService) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}

// 5 RevokeToken stores a revoked token id until it would have expired anyway
func (s *RedisService) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.Client.Set(ctx, revokedTokenPrefix+jti, 1, ttl).Err()
}

// 6 IsTokenRevoked reports whether the token id was revoked
func (s *RedisService) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.Client.Exists(ctx, revokedTokenPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// 7 RevokeUserTokens stores the unix second before which the user's tokens are invalid
func (s *RedisService) RevokeUserTokens(ctx context.Context, userID uint, at time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.Client.Set(ctx, revokedUserPrefix+strconv.FormatUint(uint64(userID), 10), at.Unix(), ttl).Err()
}

// 8 UserTokensRevokedAt returns the user's revocation time if one is recorded
func (s *RedisService) UserTokensRevokedAt(ctx context.Context, userID uint) (time.Time, bool, error) {
	sec, err := s.Client.Get(ctx, revokedUserPrefix+strconv.FormatUint(uint64(userID), 10)).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(sec, 0), true, nil
}

// GetClient returns the underlying client
func (s *RedisService) GetClient() *redis.Client {
	return s.Client
}

// Close closes the client
func (s *RedisService) Close() error {
	return s.Client.Close()
}
