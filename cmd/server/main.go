package main

import (
	"context"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"stockbridge/internal/bot"
	"stockbridge/internal/broker"
	"stockbridge/internal/cache"
	"stockbridge/internal/chart"
	"stockbridge/internal/config"
	"stockbridge/internal/db"
	"stockbridge/internal/handler"
	"stockbridge/internal/job"
	"stockbridge/internal/repository"
	"stockbridge/internal/service"
	"stockbridge/pkg/tracing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	_ "stockbridge/docs"
)

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
	newContractSyncFunc    = job.NewContractSync
	newQuotePollerFunc     = job.NewQuotePoller
	startContractSyncFunc  = func(s *job.ContractSync, ctx context.Context) { go s.Start(ctx) }
	startQuotePollerFunc   = func(p *job.QuotePoller, ctx context.Context) { go p.Start(ctx) }
	newChartRendererFunc   = chart.NewRenderer
	startTelegramBotFunc   = bot.StartTelegramBot
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.Default
	setupSignalNotify      = ossignal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Stockbridge API
// @version         1.0
// @description     Taiwan stock market data service backed by the Shioaji gateway.

// @host      localhost:8080
// @BasePath  /
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Postgres and Redis
	initPostgresFunc(ctx, cfg.DatabaseURL)
	initRedisFunc(ctx, cfg.RedisURL)

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Create repositories and run migrations
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

	// Log in to the Shioaji gateway
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

	// Create the market service on top of broker, cache and store
	quotes := cache.NewQuoteCache(cache.Client, time.Duration(cfg.QuoteCacheTTLSecs)*time.Second)
	marketService := service.NewMarketService(tracer, gateway, quotes, candleRepo, contractRepo, cfg.UnknownSymbolPolicy)

	if n, err := marketService.RefreshContracts(ctx); err != nil {
		log.Printf("initial contract refresh failed: %v", err)
	} else {
		log.Printf("contract book loaded: %d contracts", n)
	}

	charts := newChartRendererFunc()

	// Start Telegram bot; its dispatcher receives watchlist quote batches
	os.Setenv("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	alerts := startTelegramBotFunc(marketService, charts, cfg.WatchSymbols, cfg.AlertMovePct)

	// Start background jobs (stopped by ctx cancel)
	contractSync := newContractSyncFunc(tracer, marketService, time.Duration(cfg.ContractRefreshHours)*time.Hour)
	startContractSyncFunc(contractSync, ctx)
	quotePoller := newQuotePollerFunc(tracer, marketService, alerts, cfg.WatchSymbols, time.Duration(cfg.QuotePollSecs)*time.Second)
	startQuotePollerFunc(quotePoller, ctx)

	// Create handlers and routes
	h := newHandlerFunc(tracer, marketService, charts, time.Duration(cfg.QuoteStreamSecs)*time.Second)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("stockbridge"))
	r.Use(cors.Default())

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    httpAddrFromEnv(),
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}

func httpAddrFromEnv() string {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		return ":8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}
