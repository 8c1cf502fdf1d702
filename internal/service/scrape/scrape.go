// Package scrape 实现文档抓取代理
// 结果缓存在 Redis 中；抓取失败时回退到最近一次成功的副本，
// 没有副本时返回空内容而不是报错
package scrape

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ashwinyue/vault-ai/internal/config"
)

// ErrUnknownService service 参数不在已知文档站之列
var ErrUnknownService = errors.New("unknown documentation service")

// knownServices 常用服务商文档入口
var knownServices = map[string]string{
	"stripe":   "https://docs.stripe.com/api",
	"github":   "https://docs.github.com/en/rest",
	"aws":      "https://docs.aws.amazon.com/iam/",
	"openai":   "https://platform.openai.com/docs/api-reference",
	"sendgrid": "https://www.twilio.com/docs/sendgrid",
	"vercel":   "https://vercel.com/docs/rest-api",
}

// Request 抓取请求
type Request struct {
	URL          string `json:"url"`
	Service      string `json:"service"`
	ForceRefresh bool   `json:"forceRefresh"`
}

// Result 抓取结果
type Result struct {
	URL       string    `json:"url"`
	Content   string    `json:"content"`
	Cached    bool      `json:"cached"`
	ScrapedAt time.Time `json:"scrapedAt"`
}

// Service 文档抓取服务
type Service struct {
	cfg        *config.ScrapeConfig
	redis      *redis.Client
	resolver   Resolver
	httpClient *http.Client
}

// NewService 创建抓取服务
func NewService(cfg *config.ScrapeConfig, redisClient *redis.Client) *Service {
	client := &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second}
	return &Service{
		cfg:        cfg,
		redis:      redisClient,
		resolver:   NewDoHResolver(cfg.DoHEndpoint, client),
		httpClient: client,
	}
}

// Scrape 抓取一个文档页面
// URL 校验（含 SSRF 检查）先于一切网络调用
func (s *Service) Scrape(ctx context.Context, req *Request) (*Result, error) {
	raw := req.URL
	if req.Service != "" {
		mapped, ok := knownServices[req.Service]
		if !ok {
			return nil, ErrUnknownService
		}
		raw = mapped
	}
	if raw == "" {
		return nil, fmt.Errorf("%w: url or service is required", ErrInvalidURL)
	}

	target, err := validateTarget(ctx, s.resolver, raw)
	if err != nil {
		return nil, err
	}

	if !req.ForceRefresh {
		if result := s.fromCache(ctx, cacheKey(target.String())); result != nil {
			return result, nil
		}
	}

	content, err := s.fetch(ctx, target.String())
	if err != nil {
		log.Printf("scrape failed for %s: %v", target, err)
		// 回退到最近一次成功的副本
		if result := s.fromCache(ctx, lastKnownKey(target.String())); result != nil {
			return result, nil
		}
		return &Result{URL: target.String(), Content: "", ScrapedAt: time.Now()}, nil
	}

	result := &Result{URL: target.String(), Content: content, ScrapedAt: time.Now()}
	s.store(ctx, target.String(), result)
	return result, nil
}

// fetch 抓取并转换为 markdown
// 配置了抓取服务商时走服务商，否则直接抓取页面并本地转换
func (s *Service) fetch(ctx context.Context, target string) (string, error) {
	if s.cfg.ProviderURL != "" {
		return s.fetchViaProvider(ctx, target)
	}
	return s.fetchDirect(ctx, target)
}

// fetchViaProvider 通过抓取服务商获取 markdown
func (s *Service) fetchViaProvider(ctx context.Context, target string) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"url":     target,
		"formats": []string{"markdown"},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.ProviderURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.ProviderKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.ProviderKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("scrape provider returned status %d", resp.StatusCode)
	}

	var wire struct {
		Data struct {
			Markdown string `json:"markdown"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return "", err
	}
	return wire.Data.Markdown, nil
}

// fetchDirect 直接抓取页面并转换为 markdown
func (s *Service) fetchDirect(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return "", err
	}

	return htmltomarkdown.ConvertString(string(data))
}

// fromCache 读取缓存副本
func (s *Service) fromCache(ctx context.Context, key string) *Result {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("scrape cache read failed: %v", err)
		}
		return nil
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	result.Cached = true
	return &result
}

// store 写入缓存：带 TTL 的常规副本加一份无 TTL 的最近成功副本
func (s *Service) store(ctx context.Context, target string, result *Result) {
	data, err := json.Marshal(result)
	if err != nil {
		return
	}

	ttl := time.Duration(s.cfg.CacheTTL) * time.Second
	if err := s.redis.Set(ctx, cacheKey(target), data, ttl).Err(); err != nil {
		log.Printf("scrape cache write failed: %v", err)
	}
	if err := s.redis.Set(ctx, lastKnownKey(target), data, 0).Err(); err != nil {
		log.Printf("scrape cache write failed: %v", err)
	}
}

func cacheKey(target string) string {
	return "scrape:cache:" + hashTarget(target)
}

func lastKnownKey(target string) string {
	return "scrape:last:" + hashTarget(target)
}

func hashTarget(target string) string {
	sum := sha256.Sum256([]byte(target))
	return hex.EncodeToString(sum[:])
}
