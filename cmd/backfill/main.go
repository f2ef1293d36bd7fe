package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"stockbridge/internal/broker"
	"stockbridge/internal/config"
	"stockbridge/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultDays  = 90
	defaultCodes = "2330,2317,2454"
)

var (
	loadEnvFunc = godotenv.Load
	openPool    = pgxpool.New
)

type options struct {
	days  int
	codes []string
}

func main() {
	loadEnvFunc()

	opts, err := parseOptions(os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatalf("parse options: %v", err)
	}

	cfg := config.Load()
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Fatal("DATABASE_URL is required")
	}
	if cfg.ShioajiAPIKey == "" || cfg.ShioajiSecretKey == "" {
		log.Fatal("SHIOAJI_API_KEY and SHIOAJI_SECRET_KEY are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Minute)
	defer cancel()

	pool, err := openPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping postgres: %v", err)
	}

	tracer := trace.NewNoopTracerProvider().Tracer("backfill")
	candleRepo := repository.NewCandleRepository(pool, tracer)
	if err := candleRepo.RunMigrations(ctx); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	client := broker.NewClient(broker.Config{
		BaseURL:   cfg.ShioajiBaseURL,
		APIKey:    cfg.ShioajiAPIKey,
		SecretKey: cfg.ShioajiSecretKey,
	}, tracer)
	if err := client.Login(ctx); err != nil {
		log.Fatalf("shioaji login: %v", err)
	}
	defer func() {
		if err := client.Logout(context.Background()); err != nil {
			log.Printf("shioaji logout: %v", err)
		}
	}()

	end := time.Now()
	start := end.AddDate(0, 0, -opts.days)

	log.Printf("starting kbar backfill: days=%d codes=%s", opts.days, strings.Join(opts.codes, ","))

	totalUpserted := 0
	for _, code := range opts.codes {
		candles, err := client.KBars(ctx, code, start, end)
		if err != nil {
			log.Fatalf("fetch kbars for %s: %v", code, err)
		}
		if len(candles) == 0 {
			log.Printf("no kbars returned for %s", code)
			continue
		}
		if err := candleRepo.UpsertCandles(ctx, candles); err != nil {
			log.Fatalf("upsert candles for %s: %v", code, err)
		}
		totalUpserted += len(candles)
		log.Printf("backfilled %s: %d candles", code, len(candles))
	}

	log.Printf(
		"backfill complete: codes=%d total_candles=%d days=%d",
		len(opts.codes),
		totalUpserted,
		opts.days,
	)
}

func parseOptions(args []string, getenv func(string) string) (options, error) {
	fs := flag.NewFlagSet("backfill", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	daysDefault := defaultBackfillDays(getenv)
	codesDefault := defaultBackfillCodes(getenv)
	days := fs.Int("days", daysDefault, "number of historical days to backfill (default from BACKFILL_DAYS, else 90)")
	codesRaw := fs.String("codes", strings.Join(codesDefault, ","), "comma-separated stock codes to backfill")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if *days <= 0 {
		return options{}, fmt.Errorf("days must be > 0")
	}

	codes, err := normalizeCodes(*codesRaw)
	if err != nil {
		return options{}, err
	}

	return options{
		days:  *days,
		codes: codes,
	}, nil
}

func defaultBackfillDays(getenv func(string) string) int {
	v := strings.TrimSpace(getenv("BACKFILL_DAYS"))
	if v != "" {
		n, err := strconv.Atoi(v)
		if err == nil && n > 0 {
			return n
		}
	}
	return defaultDays
}

func defaultBackfillCodes(getenv func(string) string) []string {
	for _, key := range []string{"BACKFILL_CODES", "WATCH_SYMBOLS"} {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			continue
		}
		codes, err := normalizeCodes(v)
		if err == nil && len(codes) > 0 {
			return codes
		}
	}
	return strings.Split(defaultCodes, ",")
}

func normalizeCodes(raw string) ([]string, error) {
	parts := strings.Split(raw, ",")
	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		code := strings.TrimSpace(p)
		if code == "" {
			continue
		}
		if !isStockCode(code) {
			return nil, fmt.Errorf("invalid stock code: %s", code)
		}
		if _, exists := seen[code]; exists {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("codes cannot be empty")
	}
	return out, nil
}

// Listed Taiwan equities and ETFs use 4 to 6 digit codes.
func isStockCode(code string) bool {
	if len(code) < 4 || len(code) > 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
