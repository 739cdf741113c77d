package middleware

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"sync"
	"time"

	"apex-http-service/internal/error/response"
	Logger "apex-http-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gopkg.in/yaml.v3"
)

// 限流策略名
const (
	PolicyGeneral  = "general"
	PolicyAuth     = "auth"
	PolicyWrite    = "write"
	PolicyDispatch = "dispatch"
	PolicyReport   = "report"
)

// RateLimitPolicy 固定窗口限流策略
type RateLimitPolicy struct {
	Name                   string        `yaml:"-"`
	Limit                  int           `yaml:"limit"`
	Window                 time.Duration `yaml:"window"`
	Message                string        `yaml:"message"`
	SkipSuccessfulRequests bool          `yaml:"skip_successful_requests"`
}

// DefaultPolicies 默认限流策略
func DefaultPolicies() map[string]RateLimitPolicy {
	return map[string]RateLimitPolicy{
		PolicyGeneral: {
			Name: PolicyGeneral, Limit: 100, Window: 15 * time.Minute,
			Message: "Too many requests from this IP, please try again later.",
		},
		PolicyAuth: {
			Name: PolicyAuth, Limit: 5, Window: 15 * time.Minute, SkipSuccessfulRequests: true,
			Message: "Too many login attempts, please try again after 15 minutes.",
		},
		PolicyWrite: {
			Name: PolicyWrite, Limit: 60, Window: time.Minute,
			Message: "Too many write operations, please slow down.",
		},
		PolicyDispatch: {
			Name: PolicyDispatch, Limit: 30, Window: time.Minute,
			Message: "Too many dispatch operations, please slow down.",
		},
		PolicyReport: {
			Name: PolicyReport, Limit: 10, Window: 5 * time.Minute,
			Message: "Too many report exports, please try again later.",
		},
	}
}

type policyFile struct {
	Policies map[string]RateLimitPolicy `yaml:"policies"`
}

// ParsePolicies 在默认策略上合并 YAML 覆盖，未填写的字段保持默认
func ParsePolicies(data []byte) (map[string]RateLimitPolicy, error) {
	policies := DefaultPolicies()
	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rate limit policies: %w", err)
	}
	for name, override := range file.Policies {
		p, ok := policies[name]
		if !ok {
			p = RateLimitPolicy{Name: name, Window: time.Minute}
		}
		if override.Limit < 0 || override.Window < 0 {
			return nil, fmt.Errorf("rate limit policy %q: limit and window must be positive", name)
		}
		if override.Limit > 0 {
			p.Limit = override.Limit
		}
		if override.Window > 0 {
			p.Window = override.Window
		}
		if override.Message != "" {
			p.Message = override.Message
		}
		p.SkipSuccessfulRequests = p.SkipSuccessfulRequests || override.SkipSuccessfulRequests
		if p.Limit == 0 {
			return nil, fmt.Errorf("rate limit policy %q: limit is required", name)
		}
		policies[name] = p
	}
	return policies, nil
}

// LoadPolicies 读取策略文件，path 为空时返回默认策略
func LoadPolicies(path string) (map[string]RateLimitPolicy, error) {
	if path == "" {
		return DefaultPolicies(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate limit policies: %w", err)
	}
	return ParsePolicies(data)
}

// RateLimitStore 计数存储
type RateLimitStore interface {
	// Increment 计数加一，返回当前窗口计数和窗口重置时间
	Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
	// Decrement 回退 Increment 所在窗口的计数，窗口已重置时不做处理
	Decrement(ctx context.Context, key string, resetAt time.Time) error
}

type windowCounter struct {
	count   int64
	resetAt time.Time
}

// MemoryStore 进程内计数存储
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*windowCounter
	now      func() time.Time
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
}

// NewMemoryStore 创建内存存储并启动过期清理，使用完毕需调用 Close
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	s := &MemoryStore{
		counters: make(map[string]*windowCounter),
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.janitor(cleanupInterval)
	return s
}

func (s *MemoryStore) janitor(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryStore) sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, c := range s.counters {
		if !now.Before(c.resetAt) {
			delete(s.counters, key)
		}
	}
}

// Increment 计数加一
func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[key]
	if !ok || !now.Before(c.resetAt) {
		c = &windowCounter{resetAt: now.Add(window)}
		s.counters[key] = c
	}
	c.count++
	return c.count, c.resetAt, nil
}

// Decrement 计数减一，只作用于 resetAt 对应的窗口
func (s *MemoryStore) Decrement(_ context.Context, key string, resetAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.counters[key]; ok && c.count > 0 && c.resetAt.Equal(resetAt) {
		c.count--
	}
	return nil
}

// Len 当前计数器数量
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}

// Close 停止清理协程，可重复调用
func (s *MemoryStore) Close() error {
	s.once.Do(func() {
		close(s.stop)
		<-s.done
	})
	return nil
}

// RedisStore 基于 Redis 的共享计数存储
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore 创建 Redis 计数存储
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "ratelimit:"}
}

// Increment INCR 与 PTTL 在同一管道执行，新键再设置过期
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	key = s.prefix + key
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, err
	}

	ttl := pttl.Val()
	if ttl < 0 {
		if err := s.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, time.Time{}, err
		}
		ttl = window
	}
	return incr.Val(), time.Now().Add(ttl), nil
}

// decrementScript 键存在且计数为正时才 DECR，避免过期后生成负数计数
var decrementScript = redis.NewScript(`
if redis.call("PTTL", KEYS[1]) > 0 and tonumber(redis.call("GET", KEYS[1]) or "0") > 0 then
	return redis.call("DECR", KEYS[1])
end
return 0
`)

// Decrement 计数减一，窗口已过期时跳过
func (s *RedisStore) Decrement(ctx context.Context, key string, resetAt time.Time) error {
	if !time.Now().Before(resetAt) {
		return nil
	}
	return decrementScript.Run(ctx, s.client, []string{s.prefix + key}).Err()
}

// RateLimiterConfig 单条路由的限流配置
type RateLimiterConfig struct {
	KeyFunc func(*gin.Context) string // 自定义键生成函数，默认按IP
	Methods []string                  // 仅对这些方法限流，为空时不限制方法
}

// RateLimiter 按策略限流
type RateLimiter struct {
	store    RateLimitStore
	policies map[string]RateLimitPolicy
}

// NewRateLimiter 创建限流器，policies 为空时使用默认策略
func NewRateLimiter(store RateLimitStore, policies map[string]RateLimitPolicy) *RateLimiter {
	if policies == nil {
		policies = DefaultPolicies()
	}
	for name, p := range policies {
		p.Name = name
		policies[name] = p
	}
	return &RateLimiter{store: store, policies: policies}
}

// Policy 获取策略
func (rl *RateLimiter) Policy(name string) (RateLimitPolicy, bool) {
	p, ok := rl.policies[name]
	return p, ok
}

// WriteMethods 写操作方法
var WriteMethods = []string{"POST", "PUT", "PATCH", "DELETE"}

// Limit 返回指定策略的限流中间件，未知策略直接放行
func (rl *RateLimiter) Limit(name string, config ...RateLimiterConfig) gin.HandlerFunc {
	policy, ok := rl.policies[name]
	if !ok {
		Logger.Warning("[RateLimit] 未知的限流策略 %s", name)
		return func(c *gin.Context) { c.Next() }
	}
	var cfg RateLimiterConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}

	return func(c *gin.Context) {
		if len(cfg.Methods) > 0 && !containsMethod(cfg.Methods, c.Request.Method) {
			c.Next()
			return
		}

		key := policy.Name + ":" + cfg.KeyFunc(c)
		count, resetAt, err := rl.store.Increment(c.Request.Context(), key, policy.Window)
		if err != nil {
			Logger.Warning("[RateLimit] 计数存储不可用，放行请求: %v", err)
			c.Next()
			return
		}

		resetSeconds := int(math.Ceil(time.Until(resetAt).Seconds()))
		if resetSeconds < 0 {
			resetSeconds = 0
		}
		remaining := int64(policy.Limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("RateLimit-Limit", strconv.Itoa(policy.Limit))
		c.Header("RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("RateLimit-Reset", strconv.Itoa(resetSeconds))

		if count > int64(policy.Limit) {
			c.Header("Retry-After", strconv.Itoa(resetSeconds))
			response.TooManyRequests(c, policy.Message, resetSeconds)
			return
		}

		c.Next()

		if policy.SkipSuccessfulRequests && c.Writer.Status() < 400 {
			if err := rl.store.Decrement(c.Request.Context(), key, resetAt); err != nil {
				Logger.Warning("[RateLimit] 回退计数失败: %v", err)
			}
		}
	}
}

func containsMethod(methods []string, method string) bool {
	for _, m := range methods {
		if m == method {
			return true
		}
	}
	return false
}
