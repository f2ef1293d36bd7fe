package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"stockbridge/internal/domain"
	"stockbridge/internal/toolbox"
	"stockbridge/internal/tools"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type stubMarketService struct {
	quotes    map[string]*domain.Quote
	quotesErr error
	candles   []*domain.Candle
	contracts []*domain.Contract

	lastSymbols []string
	lastCode    string
	lastStart   time.Time
	lastEnd     time.Time
	lastFilter  domain.ContractFilter
}

func (s *stubMarketService) GetStockPrices(ctx context.Context, symbols []string) ([]*domain.Quote, []string, error) {
	s.lastSymbols = append([]string(nil), symbols...)
	if s.quotesErr != nil {
		return nil, nil, s.quotesErr
	}

	var found []*domain.Quote
	var missing []string
	for _, code := range symbols {
		if q, ok := s.quotes[code]; ok {
			found = append(found, q)
		} else {
			missing = append(missing, code)
		}
	}
	if len(found) == 0 {
		return nil, missing, fmt.Errorf("no data available for %s", strings.Join(symbols, ","))
	}
	return found, missing, nil
}

func (s *stubMarketService) GetKBars(ctx context.Context, code string, start, end time.Time) ([]*domain.Candle, error) {
	s.lastCode = code
	s.lastStart = start
	s.lastEnd = end
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return nil, fmt.Errorf("%w: start %s, end %s", domain.ErrInvalidRange,
			start.Format(domain.DateLayout), end.Format(domain.DateLayout))
	}
	return append([]*domain.Candle(nil), s.candles...), nil
}

func (s *stubMarketService) ListStocks(ctx context.Context, filter domain.ContractFilter) ([]*domain.Contract, error) {
	s.lastFilter = filter
	return append([]*domain.Contract(nil), s.contracts...), nil
}

func testServer() (*sdkmcp.Server, *stubMarketService) {
	svc := &stubMarketService{
		quotes: map[string]*domain.Quote{
			"2330": {Code: "2330", Exchange: domain.ExchangeTSE, Price: 590.0, Volume: 31250, Timestamp: time.Unix(0, 0).UTC()},
		},
		candles: []*domain.Candle{
			{Code: "2330", Timestamp: time.Date(2023, 12, 1, 9, 0, 0, 0, time.UTC), Open: 588, High: 591, Low: 587, Close: 590, Volume: 1200},
		},
		contracts: []*domain.Contract{
			{Code: "2330", Name: "TSMC", Exchange: domain.ExchangeTSE, Category: "Semiconductors"},
		},
	}

	registry, err := tools.NewRegistry(svc)
	if err != nil {
		panic(err)
	}
	srv := NewServer(nil, registry, svc, ServerConfig{RequestTimeout: time.Second})
	return srv, svc
}

func connectInMemory(ctx context.Context, srv *sdkmcp.Server) (*sdkmcp.ClientSession, context.CancelFunc, error) {
	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	runCtx, cancel := context.WithCancel(ctx)
	go func() { _ = srv.Run(runCtx, serverTransport) }()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "mcp-test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return session, cancel, nil
}

func toolEnvelope(res *sdkmcp.CallToolResult) (toolbox.Response, error) {
	if len(res.Content) == 0 {
		return toolbox.Response{}, fmt.Errorf("tool result has no content")
	}
	text, ok := res.Content[0].(*sdkmcp.TextContent)
	if !ok {
		return toolbox.Response{}, fmt.Errorf("unexpected content type %T", res.Content[0])
	}
	var resp toolbox.Response
	if err := json.Unmarshal([]byte(text.Text), &resp); err != nil {
		return toolbox.Response{}, err
	}
	return resp, nil
}

func decodeResourceJSON(result *sdkmcp.ReadResourceResult, out any) error {
	if len(result.Contents) == 0 {
		return nil
	}
	return json.Unmarshal([]byte(result.Contents[0].Text), out)
}
