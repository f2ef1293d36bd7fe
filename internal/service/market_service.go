package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"stockbridge/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const (
	defaultStockLimit = 20
	maxStockLimit     = 200
)

type MarketDataClient interface {
	FetchContracts(ctx context.Context) ([]*domain.Contract, error)
	Snapshots(ctx context.Context, codes []string) ([]*domain.Quote, error)
	KBars(ctx context.Context, code string, start, end time.Time) ([]*domain.Candle, error)
}

type QuoteCache interface {
	Get(ctx context.Context, codes []string) (map[string]*domain.Quote, error)
	Set(ctx context.Context, quotes []*domain.Quote) error
}

type MarketCandleRepository interface {
	UpsertCandles(ctx context.Context, candles []*domain.Candle) error
	GetCandlesInRange(ctx context.Context, code string, from, to time.Time) ([]*domain.Candle, error)
}

type MarketContractRepository interface {
	UpsertContracts(ctx context.Context, contracts []*domain.Contract) error
	ListContracts(ctx context.Context, filter domain.ContractFilter) ([]*domain.Contract, error)
}

// MarketService answers quote, kbar and contract queries against the broker
// gateway, with Redis serving hot quotes and Postgres keeping candle history
// and the contract book between sessions.
type MarketService struct {
	tracer       trace.Tracer
	broker       MarketDataClient
	quotes       QuoteCache
	candleRepo   MarketCandleRepository
	contractRepo MarketContractRepository
	policy       domain.UnknownSymbolPolicy
	nowFunc      func() time.Time

	mu        sync.RWMutex
	contracts map[string]*domain.Contract
	ordered   []*domain.Contract
}

func NewMarketService(
	tracer trace.Tracer,
	broker MarketDataClient,
	quotes QuoteCache,
	candleRepo MarketCandleRepository,
	contractRepo MarketContractRepository,
	policy domain.UnknownSymbolPolicy,
) *MarketService {
	if !policy.IsValid() {
		policy = domain.PolicyOmit
	}
	return &MarketService{
		tracer:       tracer,
		broker:       broker,
		quotes:       quotes,
		candleRepo:   candleRepo,
		contractRepo: contractRepo,
		policy:       policy,
		nowFunc:      time.Now,
		contracts:    make(map[string]*domain.Contract),
	}
}

// RefreshContracts replaces the in-memory contract book from the broker and
// persists the result. When the broker is unreachable and the book is still
// empty it falls back to the stored contracts so startup survives a gateway
// outage.
func (s *MarketService) RefreshContracts(ctx context.Context) (int, error) {
	_, span := s.tracer.Start(ctx, "market-service.refresh-contracts")
	defer span.End()

	if s.broker == nil {
		return 0, fmt.Errorf("market service is not fully initialized")
	}

	contracts, err := s.broker.FetchContracts(ctx)
	if err != nil {
		if s.ContractCount() == 0 && s.contractRepo != nil {
			stored, listErr := s.contractRepo.ListContracts(ctx, domain.ContractFilter{})
			if listErr == nil && len(stored) > 0 {
				s.swapContracts(stored)
				log.Printf("contract fetch failed (%v), seeded %d contracts from store", err, len(stored))
				return len(stored), nil
			}
		}
		return 0, fmt.Errorf("refresh contracts: %w", err)
	}

	s.swapContracts(contracts)
	if s.contractRepo != nil {
		if err := s.contractRepo.UpsertContracts(ctx, contracts); err != nil {
			log.Printf("contract upsert error: %v", err)
		}
	}
	return len(contracts), nil
}

// GetStockPrices resolves the latest quote per requested code, serving from
// the quote cache first and the broker for the remainder. The second return
// value lists codes that produced no quote. Under the strict policy any code
// missing from the contract book fails the whole call.
func (s *MarketService) GetStockPrices(ctx context.Context, symbols []string) ([]*domain.Quote, []string, error) {
	_, span := s.tracer.Start(ctx, "market-service.get-stock-prices")
	defer span.End()

	if s.broker == nil {
		return nil, nil, fmt.Errorf("market service is not fully initialized")
	}

	codes := normalizeCodes(symbols)
	if len(codes) == 0 {
		return nil, nil, fmt.Errorf("no symbols provided")
	}

	known, unknown := s.splitKnown(codes)
	if len(unknown) > 0 && s.policy == domain.PolicyStrict {
		return nil, unknown, fmt.Errorf("unknown symbols: %s", strings.Join(unknown, ", "))
	}
	if len(known) == 0 {
		return nil, unknown, fmt.Errorf("no data available for %s", strings.Join(codes, ","))
	}

	byCode := make(map[string]*domain.Quote, len(known))
	if s.quotes != nil {
		cached, err := s.quotes.Get(ctx, known)
		if err != nil {
			log.Printf("quote cache read error: %v", err)
		} else {
			for code, q := range cached {
				byCode[code] = q
			}
		}
	}

	var stale []string
	for _, code := range known {
		if _, ok := byCode[code]; !ok {
			stale = append(stale, code)
		}
	}

	if len(stale) > 0 {
		fresh, err := s.broker.Snapshots(ctx, stale)
		if err != nil {
			return nil, nil, err
		}
		for _, q := range fresh {
			byCode[q.Code] = q
		}
		if s.quotes != nil {
			if err := s.quotes.Set(ctx, fresh); err != nil {
				log.Printf("quote cache write error: %v", err)
			}
		}
	}

	quotes := make([]*domain.Quote, 0, len(known))
	missing := append([]string(nil), unknown...)
	for _, code := range known {
		if q, ok := byCode[code]; ok {
			quotes = append(quotes, q)
		} else {
			missing = append(missing, code)
		}
	}

	if len(quotes) == 0 {
		return nil, missing, fmt.Errorf("no data available for %s", strings.Join(codes, ","))
	}
	return quotes, missing, nil
}

// GetKBars returns candles for the date range ordered by timestamp. A zero
// start defaults to today, a zero end to the start day. The range is checked
// before the broker is called; fetched candles are written through to the
// candle store best-effort, and the store serves as a fallback when the
// broker call fails.
func (s *MarketService) GetKBars(ctx context.Context, code string, start, end time.Time) ([]*domain.Candle, error) {
	_, span := s.tracer.Start(ctx, "market-service.get-kbars")
	defer span.End()

	if s.broker == nil {
		return nil, fmt.Errorf("market service is not fully initialized")
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("no symbol provided")
	}

	if start.IsZero() {
		start = s.nowFunc()
	}
	start = toDate(start)
	if end.IsZero() {
		end = start
	}
	end = toDate(end)

	if start.After(end) {
		return nil, fmt.Errorf("%w: start %s, end %s", domain.ErrInvalidRange,
			start.Format(domain.DateLayout), end.Format(domain.DateLayout))
	}

	candles, err := s.broker.KBars(ctx, code, start, end)
	if err != nil {
		if stored := s.storedKBars(ctx, code, start, end); len(stored) > 0 {
			log.Printf("serving %d stored kbars for %s after broker error: %v", len(stored), code, err)
			return stored, nil
		}
		return nil, err
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})

	if s.candleRepo != nil {
		if err := s.candleRepo.UpsertCandles(ctx, candles); err != nil {
			log.Printf("candle upsert error for %s: %v", code, err)
		}
	}
	return candles, nil
}

// ListStocks returns contracts from the in-memory book filtered by exchange
// and category. An exchange with no listed contracts simply yields an empty
// result, matching the gateway's behavior.
func (s *MarketService) ListStocks(ctx context.Context, filter domain.ContractFilter) ([]*domain.Contract, error) {
	_, span := s.tracer.Start(ctx, "market-service.list-stocks")
	defer span.End()

	filter.Exchange = strings.ToUpper(strings.TrimSpace(filter.Exchange))
	filter.Category = strings.TrimSpace(filter.Category)
	if filter.Exchange != "" && !domain.Exchange(filter.Exchange).IsValid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownExchange, filter.Exchange)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultStockLimit
	}
	if filter.Limit > maxStockLimit {
		filter.Limit = maxStockLimit
	}

	s.mu.RLock()
	book := s.ordered
	s.mu.RUnlock()

	if len(book) == 0 && s.contractRepo != nil {
		return s.contractRepo.ListContracts(ctx, filter)
	}

	out := make([]*domain.Contract, 0, filter.Limit)
	for _, c := range book {
		if filter.Exchange != "" && string(c.Exchange) != filter.Exchange {
			continue
		}
		if filter.Category != "" && !strings.EqualFold(c.Category, filter.Category) {
			continue
		}
		out = append(out, c)
		if len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *MarketService) ContractCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ordered)
}

func (s *MarketService) swapContracts(contracts []*domain.Contract) {
	byCode := make(map[string]*domain.Contract, len(contracts))
	ordered := make([]*domain.Contract, 0, len(contracts))
	for _, c := range contracts {
		if c == nil || c.Code == "" {
			continue
		}
		if _, ok := byCode[c.Code]; ok {
			continue
		}
		byCode[c.Code] = c
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Code < ordered[j].Code })

	s.mu.Lock()
	s.contracts = byCode
	s.ordered = ordered
	s.mu.Unlock()
}

// splitKnown partitions codes by contract book membership. An empty book
// passes everything through so quote lookups keep working before the first
// contract sync lands.
func (s *MarketService) splitKnown(codes []string) (known, unknown []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.contracts) == 0 {
		return codes, nil
	}
	for _, code := range codes {
		if _, ok := s.contracts[code]; ok {
			known = append(known, code)
		} else {
			unknown = append(unknown, code)
		}
	}
	return known, unknown
}

func (s *MarketService) storedKBars(ctx context.Context, code string, start, end time.Time) []*domain.Candle {
	if s.candleRepo == nil {
		return nil
	}
	to := end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	stored, err := s.candleRepo.GetCandlesInRange(ctx, code, start, to)
	if err != nil {
		log.Printf("stored kbar read error for %s: %v", code, err)
		return nil
	}
	return stored
}

func normalizeCodes(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		code := strings.TrimSpace(s)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}

func toDate(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
