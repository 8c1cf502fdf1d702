package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	AI       AIConfig
	Scrape   ScrapeConfig
	CORS     CORSConfig
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string
	Environment string
	Version     string
	Debug       bool
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string
	Port         int
	Mode         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// AuthConfig 认证配置
// JWTSecret 必须与上游签发令牌时使用的共享密钥一致
type AuthConfig struct {
	JWTSecret string
}

// AIConfig 上游模型服务配置
type AIConfig struct {
	APIKey     string
	BaseURL    string
	Version    string
	FastModel  string
	SmartModel string
	MaxTokens  int
	MaxRetries int
	Timeout    int
}

// ScrapeConfig 文档抓取配置
type ScrapeConfig struct {
	ProviderURL string // 抓取服务地址，为空时直接抓取并转换
	ProviderKey string
	DoHEndpoint string // DNS-over-HTTPS 端点，用于 SSRF 检查
	CacheTTL    int    // 缓存秒数
	Timeout     int
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins []string
}

var globalConfig *Config

// Load 加载配置
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 环境变量
	v.SetEnvPrefix("VAULT_AI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("config not loaded")
	}
	return globalConfig
}

// IsProduction 是否为生产环境
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetAddr 获取服务器地址
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAddr 获取 Redis 地址
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "vault-ai")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.debug", true)

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 120)

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "vault_ai")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.maxLifetime", 300)

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// AI
	v.SetDefault("ai.baseUrl", "https://api.anthropic.com")
	v.SetDefault("ai.version", "2023-06-01")
	v.SetDefault("ai.fastModel", "claude-3-5-haiku-latest")
	v.SetDefault("ai.smartModel", "claude-sonnet-4-20250514")
	v.SetDefault("ai.maxTokens", 4096)
	v.SetDefault("ai.maxRetries", 3)
	v.SetDefault("ai.timeout", 120)

	// Scrape
	v.SetDefault("scrape.dohEndpoint", "https://dns.google/resolve")
	v.SetDefault("scrape.cacheTtl", 86400)
	v.SetDefault("scrape.timeout", 30)

	// CORS
	v.SetDefault("cors.allowedOrigins", []string{})
}
