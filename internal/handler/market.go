package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stockbridge/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// Health godoc
// @Summary      Service health
// @Description  Returns service status and the size of the loaded contract book
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	status := gin.H{"status": "ok"}
	if h.marketService != nil {
		status["contracts"] = h.marketService.ContractCount()
	}
	c.JSON(http.StatusOK, status)
}

// GetQuotes godoc
// @Summary      Get latest quotes
// @Description  Returns the latest quote for each requested stock code
// @Tags         quotes
// @Produce      json
// @Param        symbols  query  string  true  "Comma-separated stock codes (e.g., 2330,2317)"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/quotes [get]
func (h *Handler) GetQuotes(c *gin.Context) {
	if h.marketService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "market service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-quotes")
	defer span.End()

	raw := strings.TrimSpace(c.Query("symbols"))
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbols query parameter is required"})
		return
	}
	span.SetAttributes(attribute.String("symbols", raw))

	quotes, missing, err := h.marketService.GetStockPrices(ctx, strings.Split(raw, ","))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"quotes": quotes, "missing": missing})
}

// GetKBars godoc
// @Summary      Get historical candles
// @Description  Returns OHLCV candles for a stock code between two dates, ordered by timestamp
// @Tags         kbars
// @Produce      json
// @Param        symbol  path   string  true   "Stock code (e.g., 2330)"
// @Param        start   query  string  false  "Start date (YYYY-MM-DD), defaults to today"
// @Param        end     query  string  false  "End date (YYYY-MM-DD), defaults to the start date"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/kbars/{symbol} [get]
func (h *Handler) GetKBars(c *gin.Context) {
	if h.marketService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "market service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-kbars")
	defer span.End()

	code := strings.TrimSpace(c.Param("symbol"))
	span.SetAttributes(attribute.String("symbol", code))

	start, err := parseDateQuery(c, "start")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	end, err := parseDateQuery(c, "end")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	candles, err := h.marketService.GetKBars(ctx, code, start, end)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRange) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"symbol": code, "kbars": candles})
}

const defaultChartDays = 90

// GetKBarChart godoc
// @Summary      Get candlestick chart
// @Description  Renders OHLCV candles for a stock code as a PNG candlestick chart
// @Tags         kbars
// @Produce      png
// @Param        symbol  path   string  true   "Stock code (e.g., 2330)"
// @Param        start   query  string  false  "Start date (YYYY-MM-DD), defaults to 90 days ago"
// @Param        end     query  string  false  "End date (YYYY-MM-DD), defaults to today"
// @Success      200  {file}  binary
// @Failure      400  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/kbars/{symbol}/chart [get]
func (h *Handler) GetKBarChart(c *gin.Context) {
	if h.marketService == nil || h.charts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chart rendering unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-kbar-chart")
	defer span.End()

	code := strings.TrimSpace(c.Param("symbol"))
	span.SetAttributes(attribute.String("symbol", code))

	start, err := parseDateQuery(c, "start")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	end, err := parseDateQuery(c, "end")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if start.IsZero() && end.IsZero() {
		end = time.Now()
		start = end.AddDate(0, 0, -defaultChartDays)
	}

	candles, err := h.marketService.GetKBars(ctx, code, start, end)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRange) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	img, err := h.charts.RenderKBarChart(candles)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.Data(http.StatusOK, "image/png", img)
}

// GetStocks godoc
// @Summary      List tradable stocks
// @Description  Returns stock contracts, optionally filtered by exchange and category
// @Tags         stocks
// @Produce      json
// @Param        exchange  query  string  false  "Exchange code (TSE, OTC, OES)"
// @Param        category  query  string  false  "Industry category (e.g., Semiconductors)"
// @Param        limit     query  int     false  "Number of contracts (default 20, max 200)"  default(20)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/stocks [get]
func (h *Handler) GetStocks(c *gin.Context) {
	if h.marketService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "market service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-stocks")
	defer span.End()

	filter := domain.ContractFilter{
		Exchange: c.Query("exchange"),
		Category: c.Query("category"),
	}
	if rawLimit := strings.TrimSpace(c.Query("limit")); rawLimit != "" {
		n, err := strconv.Atoi(rawLimit)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		filter.Limit = n
	}
	if filter.Exchange != "" {
		span.SetAttributes(attribute.String("exchange", filter.Exchange))
	}

	contracts, err := h.marketService.ListStocks(ctx, filter)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownExchange) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stocks": contracts, "count": len(contracts)})
}

func parseDateQuery(c *gin.Context, name string) (time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(domain.DateLayout, raw)
	if err != nil {
		return time.Time{}, errors.New(name + " must be a date in YYYY-MM-DD form")
	}
	return t, nil
}
