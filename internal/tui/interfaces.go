package tui

import (
	"context"

	"stockbridge/internal/domain"
)

// QuoteQuerier provides quote data to the TUI.
type QuoteQuerier interface {
	GetStockPrices(ctx context.Context, symbols []string) ([]*domain.Quote, []string, error)
}

// ContractQuerier provides contract data to the TUI.
type ContractQuerier interface {
	ListStocks(ctx context.Context, filter domain.ContractFilter) ([]*domain.Contract, error)
}

// Services bundles all service dependencies injected into the TUI.
type Services struct {
	Quotes    QuoteQuerier
	Stocks    ContractQuerier
	Watchlist []string
}
