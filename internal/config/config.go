package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"stockbridge/internal/domain"
)

type Config struct {
	ShioajiAPIKey    string
	ShioajiSecretKey string
	ShioajiBaseURL   string

	TelegramBotToken string
	DatabaseURL      string
	RedisURL         string

	ContractsTimeoutSecs int
	ContractRefreshHours int
	QuotePollSecs        int
	QuoteCacheTTLSecs    int
	QuoteStreamSecs      int
	WatchSymbols         []string
	AlertMovePct         float64
	UnknownSymbolPolicy  domain.UnknownSymbolPolicy

	MCPTransport          string
	MCPHTTPBind           string
	MCPHTTPPort           int
	MCPAuthToken          string
	MCPRequestTimeoutSecs int
	MCPRateLimitPerMin    int
}

func Load() *Config {
	cfg := &Config{
		ShioajiAPIKey:    os.Getenv("SHIOAJI_API_KEY"),
		ShioajiSecretKey: os.Getenv("SHIOAJI_SECRET_KEY"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		MCPAuthToken:     os.Getenv("MCP_AUTH_TOKEN"),
	}

	if cfg.ShioajiAPIKey == "" {
		log.Println("Warning: SHIOAJI_API_KEY not set")
	}
	if cfg.ShioajiSecretKey == "" {
		log.Println("Warning: SHIOAJI_SECRET_KEY not set")
	}
	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set")
	}
	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}

	cfg.ShioajiBaseURL = strings.TrimSpace(os.Getenv("SHIOAJI_BASE_URL"))
	if cfg.ShioajiBaseURL == "" {
		cfg.ShioajiBaseURL = "https://api.sinotrade.com.tw"
	}
	cfg.ShioajiBaseURL = strings.TrimRight(cfg.ShioajiBaseURL, "/")

	cfg.ContractsTimeoutSecs = 120
	if v := strings.TrimSpace(os.Getenv("SHIOAJI_CONTRACTS_TIMEOUT_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ContractsTimeoutSecs = n
		}
	}

	cfg.ContractRefreshHours = 24
	if v := strings.TrimSpace(os.Getenv("CONTRACT_REFRESH_HOURS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ContractRefreshHours = n
		}
	}

	cfg.QuotePollSecs = 30
	if v := strings.TrimSpace(os.Getenv("QUOTE_POLL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.QuotePollSecs = n
		}
	}

	cfg.QuoteCacheTTLSecs = 30
	if v := strings.TrimSpace(os.Getenv("QUOTE_CACHE_TTL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.QuoteCacheTTLSecs = n
		}
	}

	cfg.QuoteStreamSecs = 5
	if v := strings.TrimSpace(os.Getenv("QUOTE_STREAM_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.QuoteStreamSecs = n
		}
	}

	cfg.WatchSymbols = parseWatchSymbols(os.Getenv("WATCH_SYMBOLS"))

	cfg.AlertMovePct = 3.0
	if v := strings.TrimSpace(os.Getenv("ALERT_MOVE_PCT")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
			cfg.AlertMovePct = n
		}
	}

	cfg.UnknownSymbolPolicy = domain.PolicyOmit
	if v := strings.TrimSpace(os.Getenv("UNKNOWN_SYMBOL_POLICY")); v != "" {
		policy := domain.UnknownSymbolPolicy(strings.ToLower(v))
		if policy.IsValid() {
			cfg.UnknownSymbolPolicy = policy
		} else {
			log.Printf("Warning: unsupported UNKNOWN_SYMBOL_POLICY=%q, defaulting to omit", v)
		}
	}

	cfg.MCPTransport = strings.ToLower(strings.TrimSpace(os.Getenv("MCP_TRANSPORT")))
	if cfg.MCPTransport == "" {
		cfg.MCPTransport = "stdio"
	}
	if cfg.MCPTransport != "stdio" && cfg.MCPTransport != "http" {
		log.Printf("Warning: unsupported MCP_TRANSPORT=%q, defaulting to stdio", cfg.MCPTransport)
		cfg.MCPTransport = "stdio"
	}

	cfg.MCPHTTPBind = strings.TrimSpace(os.Getenv("MCP_HTTP_BIND"))
	if cfg.MCPHTTPBind == "" {
		cfg.MCPHTTPBind = "127.0.0.1"
	}

	cfg.MCPHTTPPort = 8090
	if v := strings.TrimSpace(os.Getenv("MCP_HTTP_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPHTTPPort = n
		}
	}

	cfg.MCPRequestTimeoutSecs = 10
	if v := strings.TrimSpace(os.Getenv("MCP_REQUEST_TIMEOUT_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPRequestTimeoutSecs = n
		}
	}

	cfg.MCPRateLimitPerMin = 60
	if v := strings.TrimSpace(os.Getenv("MCP_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPRateLimitPerMin = n
		}
	}

	return cfg
}

func parseWatchSymbols(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{"2330", "2317", "2454"}
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		code := strings.TrimSpace(part)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	if len(out) == 0 {
		return []string{"2330", "2317", "2454"}
	}
	return out
}
