package middleware

import (
	"bytes"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// 缓存条目
type cacheEntry struct {
	Status      int
	ContentType string
	Content     []byte
	Expiration  time.Time
}

// 内存缓存
type memoryCache struct {
	sync.RWMutex
	items     map[string]cacheEntry
	lastSweep time.Time
}

// 全局缓存实例
var cache = &memoryCache{
	items: make(map[string]cacheEntry),
}

// sweepInterval 写入时顺带清理过期条目的最小间隔
const sweepInterval = time.Minute

func (m *memoryCache) get(key string) (cacheEntry, bool) {
	m.RLock()
	entry, ok := m.items[key]
	m.RUnlock()
	if !ok || !entry.Expiration.After(time.Now()) {
		return cacheEntry{}, false
	}
	return entry, true
}

func (m *memoryCache) set(key string, entry cacheEntry) {
	now := time.Now()
	m.Lock()
	defer m.Unlock()
	if now.Sub(m.lastSweep) > sweepInterval {
		for k, e := range m.items {
			if !e.Expiration.After(now) {
				delete(m.items, k)
			}
		}
		m.lastSweep = now
	}
	m.items[key] = entry
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Expiration time.Duration             // 缓存过期时间
	Methods    []string                  // 需要缓存的HTTP方法
	KeyFunc    func(*gin.Context) string // 自定义缓存键生成函数
}

// DefaultCacheConfig 默认缓存配置
var DefaultCacheConfig = CacheConfig{
	Expiration: 30 * time.Second,
	Methods:    []string{http.MethodGet},
	KeyFunc:    defaultKeyFunc,
}

// 默认缓存键：路径 + 排序后的查询参数 + 角色，键以路径开头便于按前缀清除
func defaultKeyFunc(c *gin.Context) string {
	queryParams := c.Request.URL.Query()
	queryKeys := make([]string, 0, len(queryParams))
	for key := range queryParams {
		queryKeys = append(queryKeys, key)
	}
	sort.Strings(queryKeys)

	var b strings.Builder
	b.WriteString(c.Request.URL.Path)
	b.WriteString("?")
	for _, key := range queryKeys {
		values := append([]string(nil), queryParams[key]...)
		sort.Strings(values)
		for _, value := range values {
			b.WriteString(key + "=" + value + "&")
		}
	}
	b.WriteString("#role=")
	b.WriteString(CurrentRole(c))
	return b.String()
}

// Cache 创建缓存中间件，仅缓存 200 响应
func Cache(config ...CacheConfig) gin.HandlerFunc {
	var cfg CacheConfig
	if len(config) > 0 {
		cfg = config[0]
	} else {
		cfg = DefaultCacheConfig
	}
	if cfg.Expiration <= 0 {
		cfg.Expiration = DefaultCacheConfig.Expiration
	}
	if len(cfg.Methods) == 0 {
		cfg.Methods = DefaultCacheConfig.Methods
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = DefaultCacheConfig.KeyFunc
	}

	return func(c *gin.Context) {
		if !containsMethod(cfg.Methods, c.Request.Method) {
			c.Next()
			return
		}

		key := cfg.KeyFunc(c)
		if entry, found := cache.get(key); found {
			c.Header("X-Cache", "HIT")
			c.Data(entry.Status, entry.ContentType, entry.Content)
			c.Abort()
			return
		}

		writer := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = writer
		c.Header("X-Cache", "MISS")

		c.Next()

		if writer.Status() == http.StatusOK {
			cache.set(key, cacheEntry{
				Status:      http.StatusOK,
				ContentType: writer.Header().Get("Content-Type"),
				Content:     append([]byte(nil), writer.body.Bytes()...),
				Expiration:  time.Now().Add(cfg.Expiration),
			})
		}
	}
}

// responseWriter 在写出响应的同时保存一份副本
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// PurgeCache 清除所有缓存
func PurgeCache() {
	cache.Lock()
	defer cache.Unlock()
	cache.items = make(map[string]cacheEntry)
}

// PurgeCacheByPrefix 清除路径以 prefix 开头的缓存
func PurgeCacheByPrefix(prefix string) {
	cache.Lock()
	defer cache.Unlock()
	for key := range cache.items {
		if strings.HasPrefix(key, prefix) {
			delete(cache.items, key)
		}
	}
}

// InvalidateOnWrite 写请求成功后清除指定前缀的缓存
func InvalidateOnWrite(prefixes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if c.Request.Method == http.MethodGet || c.Writer.Status() >= 400 {
			return
		}
		for _, prefix := range prefixes {
			PurgeCacheByPrefix(prefix)
		}
	}
}

// CacheStats 缓存统计
func CacheStats() map[string]interface{} {
	now := time.Now()
	cache.RLock()
	defer cache.RUnlock()
	active := 0
	for _, e := range cache.items {
		if e.Expiration.After(now) {
			active++
		}
	}
	return map[string]interface{}{
		"entries": len(cache.items),
		"active":  active,
	}
}
