package handler

import (
	"time"

	"stockbridge/internal/domain"
	"stockbridge/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

const defaultStreamInterval = 5 * time.Second

// ChartRenderer renders a candle series into an encoded PNG image.
type ChartRenderer interface {
	RenderKBarChart(candles []*domain.Candle) ([]byte, error)
}

type Handler struct {
	tracer         trace.Tracer
	marketService  *service.MarketService
	charts         ChartRenderer
	streamInterval time.Duration
}

func New(tracer trace.Tracer, marketService *service.MarketService, charts ChartRenderer, streamInterval time.Duration) *Handler {
	if streamInterval <= 0 {
		streamInterval = defaultStreamInterval
	}
	return &Handler{
		tracer:         tracer,
		marketService:  marketService,
		charts:         charts,
		streamInterval: streamInterval,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/api/quotes", h.GetQuotes)
	r.GET("/api/kbars/:symbol", h.GetKBars)
	r.GET("/api/kbars/:symbol/chart", h.GetKBarChart)
	r.GET("/api/stocks", h.GetStocks)
	r.GET("/ws/quotes", h.StreamQuotes)
}
