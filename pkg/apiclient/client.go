// Package apiclient 内部API的HTTP客户端，统一注入令牌和包装错误
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// 客户端侧错误码
const (
	CodeNetworkError = "NETWORK_ERROR"
	CodeNoToken      = "NO_TOKEN"
	CodeDecodeError  = "DECODE_ERROR"
)

// APIError 所有请求失败都返回该类型，Status 为 0 表示请求未到达服务端
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// IsCode 判断 err 是否为指定错误码的 APIError
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// envelope 服务端统一响应格式
type envelope struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// LoginResult 登录结果
type LoginResult struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      json.RawMessage `json:"user"`
}

// Client 内部API客户端
type Client struct {
	http *resty.Client

	mu    sync.RWMutex
	token string
}

// Option 客户端配置项
type Option func(*Client)

// WithTimeout 设置单次请求超时
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// WithRetry 网络错误时重试
func WithRetry(count int, wait time.Duration) Option {
	return func(c *Client) {
		c.http.SetRetryCount(count).
			SetRetryWaitTime(wait).
			SetRetryMaxWaitTime(wait * 4)
	}
}

// WithToken 使用已有令牌
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New 创建客户端，baseURL 形如 http://localhost:8080/api/internal/v1
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(15*time.Second).
			SetHeader("Accept", "application/json"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken 设置后续请求使用的令牌
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token 当前令牌
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// request 单次调用参数
type request struct {
	method string
	path   string
	query  map[string]string
	body   interface{}
	public bool
}

// 1. Get 带查询参数的 GET 请求
func (c *Client) Get(ctx context.Context, path string, query map[string]string, out interface{}) error {
	return c.do(ctx, request{method: http.MethodGet, path: path, query: query}, out)
}

// 2. Post 发送JSON请求体
func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, request{method: http.MethodPost, path: path, body: body}, out)
}

// 3. Put 整体更新
func (c *Client) Put(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, request{method: http.MethodPut, path: path, body: body}, out)
}

// 4. Patch 部分更新
func (c *Client) Patch(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, request{method: http.MethodPatch, path: path, body: body}, out)
}

// 5. Delete 删除资源
func (c *Client) Delete(ctx context.Context, path string, query map[string]string, out interface{}) error {
	return c.do(ctx, request{method: http.MethodDelete, path: path, query: query}, out)
}

// 6. Login 登录并保存令牌
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var result LoginResult
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   map[string]string{"email": email, "password": password},
		public: true,
	}, &result)
	if err != nil {
		return nil, err
	}
	c.SetToken(result.Token)
	return &result, nil
}

// 7. Health 查询依赖状态，无需令牌
func (c *Client) Health(ctx context.Context) (map[string]interface{}, error) {
	var status map[string]interface{}
	err := c.do(ctx, request{method: http.MethodGet, path: "/health/status", public: true}, &status)
	return status, err
}

func (c *Client) do(ctx context.Context, req request, out interface{}) error {
	r := c.http.R().SetContext(ctx)
	if !req.public {
		token := c.Token()
		if token == "" {
			return &APIError{Code: CodeNoToken, Message: "access token is required"}
		}
		r.SetAuthToken(token)
	}
	if len(req.query) > 0 {
		r.SetQueryParams(req.query)
	}
	if req.body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(req.body)
	}

	resp, err := r.Execute(req.method, req.path)
	if err != nil {
		return &APIError{Code: CodeNetworkError, Message: err.Error()}
	}

	var env envelope
	decodeErr := json.Unmarshal(resp.Body(), &env)

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		apiErr := &APIError{
			Status:  resp.StatusCode(),
			Code:    fmt.Sprintf("HTTP_%d", resp.StatusCode()),
			Message: http.StatusText(resp.StatusCode()),
		}
		if decodeErr == nil {
			if env.Code != "" {
				apiErr.Code = env.Code
			}
			if env.Message != "" {
				apiErr.Message = env.Message
			}
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if decodeErr != nil {
		return &APIError{Status: resp.StatusCode(), Code: CodeDecodeError, Message: decodeErr.Error()}
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &APIError{Status: resp.StatusCode(), Code: CodeDecodeError, Message: err.Error()}
	}
	return nil
}
