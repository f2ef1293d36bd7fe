package tools

import (
	"context"
	"time"

	"stockbridge/internal/domain"
)

// MarketDataService exposes the market operations the tools call into.
type MarketDataService interface {
	GetStockPrices(ctx context.Context, symbols []string) ([]*domain.Quote, []string, error)
	GetKBars(ctx context.Context, code string, start, end time.Time) ([]*domain.Candle, error)
	ListStocks(ctx context.Context, filter domain.ContractFilter) ([]*domain.Contract, error)
}
