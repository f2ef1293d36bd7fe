package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"stockbridge/internal/broker"
	"stockbridge/internal/cache"
	"stockbridge/internal/config"
	"stockbridge/internal/db"
	mcpserver "stockbridge/internal/mcp"
	"stockbridge/internal/repository"
	"stockbridge/internal/service"
	"stockbridge/internal/tools"
	"stockbridge/pkg/tracing"

	"github.com/joho/godotenv"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/trace"
)

const defaultMCPHTTPMaxBodyBytes int64 = 1 << 20 // 1MiB

// brokerGateway adds session management to the market data calls the
// service layer consumes.
type brokerGateway interface {
	service.MarketDataClient
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
}

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	initPostgresFunc = db.InitPostgres
	initRedisFunc    = cache.InitRedis
	initTracerFunc   = tracing.InitTracer
	newBrokerFunc    = func(cfg *config.Config, tracer trace.Tracer) brokerGateway {
		return broker.NewClient(broker.Config{
			BaseURL:          cfg.ShioajiBaseURL,
			APIKey:           cfg.ShioajiAPIKey,
			SecretKey:        cfg.ShioajiSecretKey,
			ContractsTimeout: time.Duration(cfg.ContractsTimeoutSecs) * time.Second,
		}, tracer)
	}
	newRegistryFunc   = tools.NewRegistry
	newMCPServerFunc  = mcpserver.NewServer
	newMCPHandlerFunc = mcpserver.NewHTTPTransportHandler
	runStdioFunc      = func(ctx context.Context, server *sdkmcp.Server) error {
		return server.Run(ctx, &sdkmcp.StdioTransport{})
	}
	startHTTPServerFunc  = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFn = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	setupSignalNotify    = ossignal.Notify
	waitForSignalFunc    = func(quit <-chan os.Signal) { <-quit }
)

func main() {
	loadEnvFunc()
	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initPostgresFunc(ctx, cfg.DatabaseURL)
	initRedisFunc(ctx, cfg.RedisURL)

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	var candleRepo service.MarketCandleRepository
	var contractRepo service.MarketContractRepository
	if db.Pool != nil {
		candles := repository.NewCandleRepository(db.Pool, tracer)
		contracts := repository.NewContractRepository(db.Pool, tracer)
		if err := candles.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run candle migrations: %v", err)
		}
		if err := contracts.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run contract migrations: %v", err)
		}
		candleRepo = candles
		contractRepo = contracts
	}

	gateway := newBrokerFunc(cfg, tracer)
	if err := gateway.Login(ctx); err != nil {
		log.Fatalf("shioaji login failed: %v", err)
	}
	defer func() {
		logoutCtx, logoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer logoutCancel()
		if err := gateway.Logout(logoutCtx); err != nil {
			log.Printf("shioaji logout failed: %v", err)
		}
	}()

	quotes := cache.NewQuoteCache(cache.Client, time.Duration(cfg.QuoteCacheTTLSecs)*time.Second)
	marketService := service.NewMarketService(tracer, gateway, quotes, candleRepo, contractRepo, cfg.UnknownSymbolPolicy)

	if n, err := marketService.RefreshContracts(ctx); err != nil {
		log.Printf("initial contract refresh failed: %v", err)
	} else {
		log.Printf("contract book loaded: %d contracts", n)
	}

	registry, err := newRegistryFunc(marketService)
	if err != nil {
		log.Fatalf("failed to build tool registry: %v", err)
	}

	mcpSrv := newMCPServerFunc(tracer, registry, marketService, mcpserver.ServerConfig{
		RequestTimeout: time.Duration(cfg.MCPRequestTimeoutSecs) * time.Second,
	})

	switch cfg.MCPTransport {
	case "", "stdio":
		if err := runStdioFunc(ctx, mcpSrv); err != nil {
			log.Fatalf("mcp stdio server failed: %v", err)
		}
	case "http":
		if err := runHTTPMode(ctx, cancel, cfg, mcpSrv); err != nil {
			log.Fatalf("mcp http server failed: %v", err)
		}
	default:
		log.Fatalf("unsupported MCP_TRANSPORT: %s", cfg.MCPTransport)
	}
}

func runHTTPMode(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, mcpSrv *sdkmcp.Server) error {
	if strings.TrimSpace(cfg.MCPAuthToken) == "" {
		return fmt.Errorf("MCP_AUTH_TOKEN is required when MCP_TRANSPORT=http")
	}

	handler := newMCPHandlerFunc(mcpSrv, mcpserver.HTTPHandlerConfig{
		AuthToken:       cfg.MCPAuthToken,
		RateLimitPerMin: cfg.MCPRateLimitPerMin,
		MaxBodyBytes:    defaultMCPHTTPMaxBodyBytes,
	})

	addr := net.JoinHostPort(cfg.MCPHTTPBind, fmt.Sprintf("%d", cfg.MCPHTTPPort))
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		log.Printf("mcp http server listening on %s", addr)
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Printf("mcp http server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFn(srv, shutdownCtx); err != nil {
		return fmt.Errorf("mcp server forced to shutdown: %w", err)
	}
	return nil
}
