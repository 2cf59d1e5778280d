package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config 应用配置
type Config struct {
	Port      string
	DBPath    string
	JWTSecret string // 为空时不启用鉴权

	GeocoderURL       string
	GeocoderUserAgent string
	GeocoderTimeout   time.Duration
	DefaultLocale     string // 学习到国家代码之前使用的语言

	StepSource      string // COUNTER / DETECTOR / UNAVAILABLE
	IngestRateLimit int    // 每个客户端每分钟的推送请求数，0 表示不限制
}

// Load 加载配置
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = ":8080"
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./data/walkaround/walkaround.db"
	}

	geocoderURL := os.Getenv("GEOCODER_URL")
	if geocoderURL == "" {
		geocoderURL = "https://nominatim.openstreetmap.org"
	}

	userAgent := os.Getenv("GEOCODER_USER_AGENT")
	if userAgent == "" {
		userAgent = "walkaround-go/1.0"
	}

	timeout := 10 * time.Second
	if v := os.Getenv("GEOCODER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Printf("Invalid GEOCODER_TIMEOUT %q, using %v", v, timeout)
		} else {
			timeout = d
		}
	}

	locale := os.Getenv("DEFAULT_LOCALE")
	if locale == "" {
		locale = "en"
	}

	stepSource := os.Getenv("STEP_SOURCE")
	if stepSource == "" {
		stepSource = "DETECTOR"
	}

	rateLimit := 600
	if v := os.Getenv("INGEST_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			log.Printf("Invalid INGEST_RATE_LIMIT %q, using %d", v, rateLimit)
		} else {
			rateLimit = n
		}
	}

	return &Config{
		Port:              port,
		DBPath:            dbPath,
		JWTSecret:         os.Getenv("JWT_SECRET"),
		GeocoderURL:       geocoderURL,
		GeocoderUserAgent: userAgent,
		GeocoderTimeout:   timeout,
		DefaultLocale:     locale,
		StepSource:        stepSource,
		IngestRateLimit:   rateLimit,
	}
}
