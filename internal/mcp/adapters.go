package mcp

import (
	"context"

	"stockbridge/internal/domain"
)

// MarketReader exposes the market queries the MCP resources serve.
type MarketReader interface {
	GetStockPrices(ctx context.Context, symbols []string) ([]*domain.Quote, []string, error)
	ListStocks(ctx context.Context, filter domain.ContractFilter) ([]*domain.Contract, error)
}
