package tools

import (
	"context"
	"errors"
	"fmt"

	"stockbridge/internal/domain"
	"stockbridge/internal/toolbox"
)

// NewRegistry builds a registry holding every market tool bound to svc.
func NewRegistry(svc MarketDataService) (*toolbox.Registry, error) {
	registry := toolbox.NewRegistry()
	if err := registry.Register(Market(svc)...); err != nil {
		return nil, err
	}
	return registry, nil
}

// Market returns the market tool definitions in registration order.
func Market(svc MarketDataService) []*toolbox.Definition {
	return []*toolbox.Definition{
		getStockPrice(svc),
		getKBars(svc),
		listStocks(svc),
	}
}

func getStockPrice(svc MarketDataService) *toolbox.Definition {
	return &toolbox.Definition{
		Name:        "get_stock_price",
		Description: "Get the latest trade price for one or more Taiwan stock codes",
		Params: []toolbox.Param{
			{Name: "symbols", Type: toolbox.TypeStringList, Required: true, Description: "stock code or comma-separated codes, e.g. 2330 or 2330,2317"},
		},
		Handler: func(ctx context.Context, args toolbox.Args) (any, error) {
			if svc == nil {
				return nil, fmt.Errorf("market service unavailable")
			}
			quotes, _, err := svc.GetStockPrices(ctx, args.StringList("symbols"))
			if err != nil {
				return nil, err
			}
			prices := make(map[string]float64, len(quotes))
			for _, q := range quotes {
				prices[q.Code] = q.Price
			}
			return prices, nil
		},
	}
}

func getKBars(svc MarketDataService) *toolbox.Definition {
	return &toolbox.Definition{
		Name:        "get_kbars",
		Description: "Get OHLCV candles for a stock code between two dates, ordered by timestamp",
		Params: []toolbox.Param{
			{Name: "symbol", Type: toolbox.TypeString, Required: true, Description: "stock code, e.g. 2330"},
			{Name: "start_date", Type: toolbox.TypeDate, Required: false, Description: "first day of the range (YYYY-MM-DD), defaults to today"},
			{Name: "end_date", Type: toolbox.TypeDate, Required: false, Description: "last day of the range (YYYY-MM-DD), defaults to the start day"},
		},
		Handler: func(ctx context.Context, args toolbox.Args) (any, error) {
			if svc == nil {
				return nil, fmt.Errorf("market service unavailable")
			}
			start, _ := args.Date("start_date")
			end, _ := args.Date("end_date")
			candles, err := svc.GetKBars(ctx, args.String("symbol"), start, end)
			if err != nil {
				if errors.Is(err, domain.ErrInvalidRange) {
					return nil, toolbox.Errorf(toolbox.KindInvalidRange, "%s", err)
				}
				return nil, err
			}
			return candles, nil
		},
	}
}

func listStocks(svc MarketDataService) *toolbox.Definition {
	return &toolbox.Definition{
		Name:        "list_stocks",
		Description: "List tradable stock contracts, optionally filtered by exchange and category",
		Params: []toolbox.Param{
			{Name: "exchange", Type: toolbox.TypeString, Required: false, Description: "exchange code: TSE, OTC or OES"},
			{Name: "category", Type: toolbox.TypeString, Required: false, Description: "industry category, e.g. Semiconductors"},
			{Name: "limit", Type: toolbox.TypeInt, Required: false, Description: "number of contracts to return, max 200"},
		},
		Handler: func(ctx context.Context, args toolbox.Args) (any, error) {
			if svc == nil {
				return nil, fmt.Errorf("market service unavailable")
			}
			filter := domain.ContractFilter{
				Exchange: args.String("exchange"),
				Category: args.String("category"),
			}
			if limit, ok := args.Int("limit"); ok {
				filter.Limit = limit
			}
			contracts, err := svc.ListStocks(ctx, filter)
			if err != nil {
				if errors.Is(err, domain.ErrUnknownExchange) {
					return nil, toolbox.Errorf(toolbox.KindInvalidParameters, "%s", err)
				}
				return nil, err
			}
			return contracts, nil
		},
	}
}
