// Package ratelimit 提供基于 Redis 的固定窗口限流
// Redis 故障时放行请求（fail-open），限流器不能成为单点故障
package ratelimit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Preset 端点限流预设
type Preset struct {
	Limit  int
	Window time.Duration
}

// 各端点类别的固定预设
var (
	PresetChat   = Preset{Limit: 10, Window: time.Minute}
	PresetScrape = Preset{Limit: 5, Window: time.Minute}
	PresetRead   = Preset{Limit: 100, Window: time.Minute}
)

// Counter 带 TTL 的计数器存储
// 首次命中时以窗口长度设置 TTL，窗口内后续命中保留剩余 TTL
type Counter interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
}

// redisCounter Redis 计数器
type redisCounter struct {
	client *redis.Client
}

// NewRedisCounter 创建 Redis 计数器
func NewRedisCounter(client *redis.Client) Counter {
	return &redisCounter{client: client}
}

// Increment 自增计数并返回剩余 TTL
func (c *redisCounter) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}

	count := incr.Val()
	ttl := pttl.Val()

	// 新窗口：设置过期时间
	if count == 1 || ttl < 0 {
		if err := c.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		ttl = window
	}

	return count, ttl, nil
}

// Result 限流检查结果
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter 固定窗口限流器
type Limiter struct {
	counter Counter
}

// NewLimiter 创建限流器
func NewLimiter(counter Counter) *Limiter {
	return &Limiter{counter: counter}
}

// Check 检查并计数一次请求
// identity 为 user:<id> 或 ip:<addr>，key 形如 ratelimit:<endpoint>:<identity>
func (l *Limiter) Check(ctx context.Context, endpoint, identity string, preset Preset) *Result {
	key := fmt.Sprintf("ratelimit:%s:%s", endpoint, identity)

	count, ttl, err := l.counter.Increment(ctx, key, preset.Window)
	if err != nil {
		// fail-open：存储不可用时放行
		log.Printf("rate limit store unavailable, allowing request: %v", err)
		return &Result{
			Allowed:   true,
			Limit:     preset.Limit,
			Remaining: preset.Limit - 1,
			ResetAt:   time.Now().Add(preset.Window),
		}
	}

	resetAt := time.Now().Add(ttl)
	remaining := preset.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	result := &Result{
		Allowed:   count <= int64(preset.Limit),
		Limit:     preset.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
	if !result.Allowed {
		result.RetryAfter = ttl
	}
	return result
}
