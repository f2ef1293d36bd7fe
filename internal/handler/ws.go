package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamQuotes godoc
// @Summary      Stream latest quotes over WebSocket
// @Description  Pushes a quotes frame for the requested stock codes on a fixed interval
// @Tags         quotes
// @Param        symbols  query  string  true  "Comma-separated stock codes (e.g., 2330,2317)"
// @Success      101  {string}  string  "Switching Protocols"
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /ws/quotes [get]
func (h *Handler) StreamQuotes(c *gin.Context) {
	if h.marketService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "market service unavailable"})
		return
	}

	raw := strings.TrimSpace(c.Query("symbols"))
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbols query parameter is required"})
		return
	}
	symbols := strings.Split(raw, ",")

	_, span := h.tracer.Start(c.Request.Context(), "handler.stream-quotes")
	span.SetAttributes(attribute.String("symbols", raw))
	defer span.End()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		return
	}
	defer conn.Close()

	// drain client frames so pings and close messages are processed
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.streamInterval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		frame := gin.H{}
		quotes, missing, err := h.marketService.GetStockPrices(ctx, symbols)
		if err != nil {
			// transient gateway failures keep the stream alive
			frame["error"] = err.Error()
		} else {
			frame["quotes"] = quotes
			if len(missing) > 0 {
				frame["missing"] = missing
			}
		}

		if err := conn.WriteJSON(frame); err != nil {
			return
		}

		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
