// Package llm 封装上游模型服务的 HTTP 客户端
// 非流式调用对 429/529 做有界指数退避重试，流式调用不在内部重试
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Message 对话消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request 模型调用请求
type Request struct {
	Model     string    `json:"model"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
	Stream    bool      `json:"stream,omitempty"`
}

// Usage 令牌用量
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response 非流式响应
type Response struct {
	Model      string `json:"model"`
	Content    string `json:"-"`
	StopReason string `json:"stop_reason"`
	Usage      Usage  `json:"usage"`
}

// APIError 上游返回的错误，携带原始状态码与消息
type APIError struct {
	StatusCode int
	Type       string
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream model error (status %d, type %s): %s", e.StatusCode, e.Type, e.Message)
}

// retryable 429 与 529（过载）可重试
func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == 529
}

// Config 客户端配置
type Config struct {
	APIKey     string
	BaseURL    string
	Version    string
	MaxRetries int
	Timeout    time.Duration
}

// Client 上游模型客户端
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient 创建客户端
func NewClient(cfg Config) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Call 非流式调用
// 对 429（优先使用 Retry-After）和 529 按 2^attempt 秒退避，最多 MaxRetries 次，
// 其余非 2xx 立即返回上游状态与消息
func (c *Client) Call(ctx context.Context, req *Request) (*Response, error) {
	req.Stream = false

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := backoffDelay(lastErr, attempt)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := c.do(ctx, req)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		apiErr, ok := err.(*APIError)
		if !ok || !apiErr.retryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("model call failed after %d retries: %w", c.cfg.MaxRetries, lastErr)
}

// CallStream 流式调用，返回上游事件流
// 流式路径不重试，由上层决定是否回退到非流式调用
func (c *Client) CallStream(ctx context.Context, req *Request) (io.ReadCloser, error) {
	req.Stream = true

	httpResp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode != http.StatusOK {
		defer httpResp.Body.Close()
		return nil, parseAPIError(httpResp)
	}

	return httpResp.Body, nil
}

// do 执行一次非流式请求
func (c *Client) do(ctx context.Context, req *Request) (*Response, error) {
	httpResp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, parseAPIError(httpResp)
	}

	var wire struct {
		Model   string `json:"model"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
		Usage      Usage  `json:"usage"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode model response: %w", err)
	}

	resp := &Response{
		Model:      wire.Model,
		StopReason: wire.StopReason,
		Usage:      wire.Usage,
	}
	for _, block := range wire.Content {
		if block.Type == "text" {
			resp.Content += block.Text
		}
	}
	return resp, nil
}

// send 发送请求
func (c *Client) send(ctx context.Context, req *Request) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build model request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", c.cfg.Version)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("model request failed: %w", err)
	}
	return httpResp, nil
}

// parseAPIError 解析非 2xx 响应
func parseAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if seconds, err := strconv.Atoi(ra); err == nil {
			apiErr.RetryAfter = time.Duration(seconds) * time.Second
		}
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var wire struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &wire); err == nil && wire.Error.Message != "" {
		apiErr.Type = wire.Error.Type
		apiErr.Message = wire.Error.Message
	} else {
		apiErr.Message = string(body)
	}
	return apiErr
}

// backoffDelay 计算下一次重试前的等待时间
func backoffDelay(lastErr error, attempt int) time.Duration {
	if apiErr, ok := lastErr.(*APIError); ok && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter
	}
	return time.Duration(1<<uint(attempt)) * time.Second
}
