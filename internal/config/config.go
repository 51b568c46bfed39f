package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 应用配置
type Config struct {
	Env       string
	AppSecret string
	Port      string

	// TMDB
	TMDBAPIKey       string
	TMDBBaseURL      string
	CatalogCacheTTL  time.Duration
	CatalogRateLimit float64

	// 协作后端（Redis 为空时使用进程内实现）
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DocumentID    string

	// 会话身份
	IdentityMode      string
	SwitchSettleDelay time.Duration
	DetachTimeout     time.Duration
	PresenceTTL       time.Duration
	PresenceSweep     string

	// 共享片单同步模式：replace | cas
	PlanningSyncMode string

	CORSOrigins []string
}

// Load 加载配置
func Load() *Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	rateLimit, err := strconv.ParseFloat(getEnv("CATALOG_RATE_LIMIT", "20"), 64)
	if err != nil || rateLimit <= 0 {
		rateLimit = 20
	}

	appSecret := getEnv("APP_SECRET", "your-secret-key-change-in-production")
	if getEnv("APP_ENV", "development") == "production" && appSecret == "your-secret-key-change-in-production" {
		fmt.Println("【严重警告】生产环境正在使用默认密钥！请立即设置 APP_SECRET 环境变量。")
	}

	return &Config{
		Env:       getEnv("APP_ENV", "development"),
		AppSecret: appSecret,
		Port:      getEnv("PORT", "5007"),

		TMDBAPIKey:       getEnv("TMDB_API_KEY", ""),
		TMDBBaseURL:      getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		CatalogCacheTTL:  getDuration("CATALOG_CACHE_TTL", 5*time.Minute),
		CatalogRateLimit: rateLimit,

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       redisDB,
		DocumentID:    getEnv("DOCUMENT_ID", "movie-night-planner"),

		IdentityMode:      getEnv("IDENTITY_MODE", "pool"),
		SwitchSettleDelay: getDuration("SWITCH_SETTLE_DELAY", 100*time.Millisecond),
		DetachTimeout:     getDuration("DETACH_TIMEOUT", 2*time.Second),
		PresenceTTL:       getDuration("PRESENCE_TTL", 90*time.Second),
		PresenceSweep:     getEnv("PRESENCE_SWEEP", "@every 30s"),

		PlanningSyncMode: getEnv("PLANNING_SYNC_MODE", "replace"),

		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration 解析 time.Duration 格式，非法值回退默认
func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		fmt.Printf("配置 %s=%q 无效，使用默认值 %v\n", key, raw, defaultValue)
		return defaultValue
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
