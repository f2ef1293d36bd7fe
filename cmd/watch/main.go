package main

import (
	"context"
	"log"
	"time"

	"stockbridge/internal/broker"
	"stockbridge/internal/cache"
	"stockbridge/internal/config"
	"stockbridge/internal/service"
	"stockbridge/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
)

// brokerGateway adds session management to the market data calls the
// service layer consumes.
type brokerGateway interface {
	service.MarketDataClient
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
}

var (
	loadEnvFunc    = godotenv.Load
	loadConfigFunc = config.Load
	newBrokerFunc  = func(cfg *config.Config, tracer trace.Tracer) brokerGateway {
		return broker.NewClient(broker.Config{
			BaseURL:          cfg.ShioajiBaseURL,
			APIKey:           cfg.ShioajiAPIKey,
			SecretKey:        cfg.ShioajiSecretKey,
			ContractsTimeout: time.Duration(cfg.ContractsTimeoutSecs) * time.Second,
		}, tracer)
	}
	runProgramFunc = func(m tea.Model) error {
		p := tea.NewProgram(m, tea.WithAltScreen())
		_, err := p.Run()
		return err
	}
)

func main() {
	loadEnvFunc()
	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracer := trace.NewNoopTracerProvider().Tracer("watch")

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
	marketService := service.NewMarketService(tracer, gateway, quotes, nil, nil, cfg.UnknownSymbolPolicy)

	if _, err := marketService.RefreshContracts(ctx); err != nil {
		log.Printf("contract refresh failed, stock browser may be empty: %v", err)
	}

	app := tui.NewAppModel(tui.Services{
		Quotes:    marketService,
		Stocks:    marketService,
		Watchlist: cfg.WatchSymbols,
	})

	if err := runProgramFunc(app); err != nil {
		log.Fatalf("watch tui failed: %v", err)
	}
}
