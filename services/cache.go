package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/GrainArc/SectorMap/metrics"
	"github.com/redis/go-redis/v9"
)

// FeatureCache 单个图斑要素 JSON 的读缓存；出错只记日志，不影响请求。
// 每个 id 带一个版本号，Invalidate 使版本号递增；
// 未命中时 Get 返回读取时的版本号，回填时交给 Set，版本号已变化则放弃写入，
// 避免提交前读到的旧数据在失效之后写回缓存。
type FeatureCache interface {
	Get(ctx context.Context, id uint) (data []byte, version int64, ok bool)
	Set(ctx context.Context, id uint, version int64, data []byte)
	Invalidate(ctx context.Context, ids ...uint)
}

// NewFeatureCache client 为 nil 时返回空实现
func NewFeatureCache(client *redis.Client, ttl time.Duration, log *slog.Logger) FeatureCache {
	if client == nil {
		return NoopCache{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &redisCache{client: client, ttl: ttl, log: log}
}

func featureKey(id uint) string {
	return fmt.Sprintf("sector:feature:%d", id)
}

// 版本号不设过期，过期后归零会与旧版本号重合
func versionKey(id uint) string {
	return fmt.Sprintf("sector:version:%d", id)
}

// KEYS[1] 要素 KEYS[2] 版本号；ARGV[1] 读取时的版本号 ARGV[2] 数据 ARGV[3] 过期毫秒
var setIfVersion = redis.NewScript(`
local v = redis.call('GET', KEYS[2]) or '0'
if v ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

func (c *redisCache) Get(ctx context.Context, id uint) ([]byte, int64, bool) {
	pipe := c.client.Pipeline()
	dataCmd := pipe.Get(ctx, featureKey(id))
	versionCmd := pipe.Get(ctx, versionKey(id))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		c.log.Warn("cache_get_failed", "id", id, "err", err)
		metrics.CacheMissesTotal.Inc()
		return nil, -1, false
	}

	version, err := versionCmd.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.log.Warn("cache_version_invalid", "id", id, "err", err)
		version = -1
	}
	data, err := dataCmd.Bytes()
	if err != nil {
		metrics.CacheMissesTotal.Inc()
		return nil, version, false
	}
	metrics.CacheHitsTotal.Inc()
	return data, version, true
}

// Set version 为负表示读取版本号失败，不回填
func (c *redisCache) Set(ctx context.Context, id uint, version int64, data []byte) {
	if version < 0 {
		return
	}
	keys := []string{featureKey(id), versionKey(id)}
	stored, err := setIfVersion.Run(ctx, c.client, keys, version, data, c.ttl.Milliseconds()).Int()
	if err != nil {
		c.log.Warn("cache_set_failed", "id", id, "err", err)
		return
	}
	if stored == 0 {
		c.log.Debug("cache_set_skipped", "id", id, "version", version)
	}
}

func (c *redisCache) Invalidate(ctx context.Context, ids ...uint) {
	if len(ids) == 0 {
		return
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Incr(ctx, versionKey(id))
			pipe.Del(ctx, featureKey(id))
		}
		return nil
	})
	if err != nil {
		c.log.Warn("cache_invalidate_failed", "ids", ids, "err", err)
	}
}

// NoopCache 未配置 Redis 时使用
type NoopCache struct{}

func (NoopCache) Get(context.Context, uint) ([]byte, int64, bool) { return nil, 0, false }
func (NoopCache) Set(context.Context, uint, int64, []byte)        {}
func (NoopCache) Invalidate(context.Context, ...uint)             {}
