package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/portal/internal/model"
)

// KeyPrefix はRedis上のキー接頭辞。
const KeyPrefix = "portal:news:"

// redisClient はRedisキャッシュが使うコマンドの最小集合。
// *redis.Clientがこれを満たす。
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisConfig はRedis接続設定。
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis は複数インスタンスで共有できるRedisバックエンドのキャッシュ。
// エントリはJSONで保存し、有効期限はRedisのEXに任せる。
type Redis struct {
	client redisClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisClient はRedisに接続し、疎通を確認したクライアントを返す。
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewRedis はRedisを生成する。
func NewRedis(client redisClient, ttl time.Duration, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, ttl: ttl, logger: logger}
}

// Get はキャッシュを参照する。Redisエラーや壊れたエントリはミスとして扱う。
func (r *Redis) Get(ctx context.Context, key string) (*model.CachedResponse, bool) {
	raw, err := r.client.Get(ctx, KeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("cache get failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return nil, false
	}

	var resp model.CachedResponse
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Envelope == nil {
		r.logger.Warn("cache entry corrupted", slog.String("key", key))
		return nil, false
	}
	return &resp, true
}

// Set はエントリをTTL付きで保存する。失敗はログに残すのみ。
func (r *Redis) Set(ctx context.Context, key string, resp *model.CachedResponse) {
	if resp == nil {
		return
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		r.logger.Warn("cache encode failed", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	if err := r.client.Set(ctx, KeyPrefix+key, raw, r.ttl).Err(); err != nil {
		r.logger.Warn("cache set failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}
