package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stockbridge/internal/chart"
	"stockbridge/internal/domain"
	"stockbridge/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(&stubGateway{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	router := gin.New()
	router.GET("/health", h.Health)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Status    string `json:"status"`
		Contracts int    `json:"contracts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if resp.Status != "ok" {
		t.Fatalf("unexpected health payload: %+v", resp)
	}
}

func TestGetQuotesSuccess(t *testing.T) {
	gateway := &stubGateway{
		quotes: []*domain.Quote{{Code: "2330", Price: 590.0}},
	}
	h, _ := newTestHandler(gateway)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/quotes?symbols=2330", nil)

	router := gin.New()
	router.GET("/api/quotes", h.GetQuotes)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Quotes []domain.Quote `json:"quotes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(resp.Quotes) != 1 || resp.Quotes[0].Code != "2330" || resp.Quotes[0].Price != 590.0 {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	if len(gateway.lastCodes) != 1 || gateway.lastCodes[0] != "2330" {
		t.Fatalf("unexpected codes forwarded: %+v", gateway.lastCodes)
	}
}

func TestGetQuotesMissingParam(t *testing.T) {
	h, _ := newTestHandler(&stubGateway{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/quotes", nil)

	router := gin.New()
	router.GET("/api/quotes", h.GetQuotes)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetQuotesGatewayError(t *testing.T) {
	gateway := &stubGateway{quotesErr: errors.New("gateway down")}
	h, _ := newTestHandler(gateway)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/quotes?symbols=2330", nil)

	router := gin.New()
	router.GET("/api/quotes", h.GetQuotes)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestGetKBarsSuccess(t *testing.T) {
	gateway := &stubGateway{
		candles: []*domain.Candle{{
			Code:      "2330",
			Timestamp: time.Date(2023, 12, 1, 9, 0, 0, 0, time.UTC),
			Open:      588, High: 591, Low: 587, Close: 590, Volume: 1200,
		}},
	}
	h, _ := newTestHandler(gateway)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/kbars/2330?start=2023-12-01&end=2023-12-15", nil)

	router := gin.New()
	router.GET("/api/kbars/:symbol", h.GetKBars)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Symbol string          `json:"symbol"`
		KBars  []domain.Candle `json:"kbars"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if resp.Symbol != "2330" || len(resp.KBars) != 1 {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	if !gateway.lastStart.Equal(time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start forwarded: %v", gateway.lastStart)
	}
	if !gateway.lastEnd.Equal(time.Date(2023, 12, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end forwarded: %v", gateway.lastEnd)
	}
}

func TestGetKBarsBadDate(t *testing.T) {
	h, _ := newTestHandler(&stubGateway{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/kbars/2330?start=12%2F01%2F2023", nil)

	router := gin.New()
	router.GET("/api/kbars/:symbol", h.GetKBars)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetKBarsInvalidRange(t *testing.T) {
	gateway := &stubGateway{}
	h, _ := newTestHandler(gateway)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/kbars/2330?start=2023-12-15&end=2023-12-01", nil)

	router := gin.New()
	router.GET("/api/kbars/:symbol", h.GetKBars)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if gateway.kbarCalls != 0 {
		t.Fatal("gateway must not be called for an invalid range")
	}
}

func TestGetKBarChartSuccess(t *testing.T) {
	base := time.Date(2023, 12, 1, 9, 0, 0, 0, time.UTC)
	gateway := &stubGateway{
		candles: []*domain.Candle{
			{Code: "2330", Timestamp: base, Open: 588, High: 591, Low: 587, Close: 590, Volume: 1200},
			{Code: "2330", Timestamp: base.AddDate(0, 0, 1), Open: 590, High: 595, Low: 589, Close: 594, Volume: 1500},
			{Code: "2330", Timestamp: base.AddDate(0, 0, 2), Open: 594, High: 596, Low: 590, Close: 592, Volume: 900},
		},
	}
	h, _ := newTestHandler(gateway)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/kbars/2330/chart?start=2023-12-01&end=2023-12-15", nil)

	router := gin.New()
	router.GET("/api/kbars/:symbol/chart", h.GetKBarChart)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); !strings.Contains(got, "image/png") {
		t.Fatalf("expected image/png content-type, got %s", got)
	}
	if len(w.Body.Bytes()) == 0 {
		t.Fatal("expected non-empty image bytes")
	}
}

func TestGetKBarChartDefaultWindow(t *testing.T) {
	base := time.Now().AddDate(0, 0, -2)
	gateway := &stubGateway{
		candles: []*domain.Candle{
			{Code: "2330", Timestamp: base, Open: 588, High: 591, Low: 587, Close: 590, Volume: 1200},
			{Code: "2330", Timestamp: base.AddDate(0, 0, 1), Open: 590, High: 595, Low: 589, Close: 594, Volume: 1500},
		},
	}
	h, _ := newTestHandler(gateway)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/kbars/2330/chart", nil)

	router := gin.New()
	router.GET("/api/kbars/:symbol/chart", h.GetKBarChart)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gateway.lastStart.IsZero() || gateway.lastEnd.IsZero() {
		t.Fatalf("expected a default window, got start=%v end=%v", gateway.lastStart, gateway.lastEnd)
	}
	if window := gateway.lastEnd.Sub(gateway.lastStart); window < 89*24*time.Hour || window > 91*24*time.Hour {
		t.Fatalf("expected a ~90 day window, got %v", window)
	}
}

func TestGetKBarChartTooFewCandles(t *testing.T) {
	gateway := &stubGateway{
		candles: []*domain.Candle{{
			Code:      "2330",
			Timestamp: time.Date(2023, 12, 1, 9, 0, 0, 0, time.UTC),
			Open:      588, High: 591, Low: 587, Close: 590, Volume: 1200,
		}},
	}
	h, _ := newTestHandler(gateway)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/kbars/2330/chart?start=2023-12-01&end=2023-12-15", nil)

	router := gin.New()
	router.GET("/api/kbars/:symbol/chart", h.GetKBarChart)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetKBarChartUnavailable(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("handler-test")
	svc := service.NewMarketService(tracer, &stubGateway{}, nil, nil, nil, domain.PolicyOmit)
	h := New(tracer, svc, nil, 20*time.Millisecond)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/kbars/2330/chart", nil)

	router := gin.New()
	router.GET("/api/kbars/:symbol/chart", h.GetKBarChart)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestGetStocksFilterAndLimit(t *testing.T) {
	gateway := &stubGateway{
		contracts: []*domain.Contract{
			{Code: "2330", Name: "TSMC", Exchange: domain.ExchangeTSE},
			{Code: "2317", Name: "Hon Hai", Exchange: domain.ExchangeTSE},
			{Code: "6488", Name: "GlobalWafers", Exchange: domain.ExchangeOTC},
		},
	}
	h, svc := newTestHandler(gateway)
	if _, err := svc.RefreshContracts(context.Background()); err != nil {
		t.Fatalf("failed to seed contracts: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/stocks?exchange=TSE&limit=1", nil)

	router := gin.New()
	router.GET("/api/stocks", h.GetStocks)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Stocks []domain.Contract `json:"stocks"`
		Count  int               `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if resp.Count != 1 || len(resp.Stocks) != 1 {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	if resp.Stocks[0].Exchange != domain.ExchangeTSE {
		t.Fatalf("expected TSE contract, got %+v", resp.Stocks[0])
	}
}

func TestGetStocksNegativeLimit(t *testing.T) {
	h, _ := newTestHandler(&stubGateway{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/stocks?limit=-1", nil)

	router := gin.New()
	router.GET("/api/stocks", h.GetStocks)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetStocksUnknownExchange(t *testing.T) {
	h, _ := newTestHandler(&stubGateway{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/stocks?exchange=NYSE", nil)

	router := gin.New()
	router.GET("/api/stocks", h.GetStocks)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

type stubGateway struct {
	contracts    []*domain.Contract
	contractsErr error
	quotes       []*domain.Quote
	quotesErr    error
	candles      []*domain.Candle
	candlesErr   error

	lastCodes []string
	lastStart time.Time
	lastEnd   time.Time
	kbarCalls int
}

func (s *stubGateway) FetchContracts(ctx context.Context) ([]*domain.Contract, error) {
	if s.contractsErr != nil {
		return nil, s.contractsErr
	}
	return append([]*domain.Contract(nil), s.contracts...), nil
}

func (s *stubGateway) Snapshots(ctx context.Context, codes []string) ([]*domain.Quote, error) {
	s.lastCodes = append([]string(nil), codes...)
	if s.quotesErr != nil {
		return nil, s.quotesErr
	}
	return append([]*domain.Quote(nil), s.quotes...), nil
}

func (s *stubGateway) KBars(ctx context.Context, code string, start, end time.Time) ([]*domain.Candle, error) {
	s.kbarCalls++
	s.lastStart = start
	s.lastEnd = end
	if s.candlesErr != nil {
		return nil, s.candlesErr
	}
	return append([]*domain.Candle(nil), s.candles...), nil
}

func newTestHandler(gateway *stubGateway) (*Handler, *service.MarketService) {
	tracer := trace.NewNoopTracerProvider().Tracer("handler-test")
	svc := service.NewMarketService(tracer, gateway, nil, nil, nil, domain.PolicyOmit)
	return New(tracer, svc, chart.NewRenderer(), 20*time.Millisecond), svc
}
