package tui

import (
	"fmt"
	"strings"

	"stockbridge/internal/domain"

	"github.com/charmbracelet/lipgloss"
)

// FormatQuote renders a quote as a single line.
func FormatQuote(q *domain.Quote) string {
	changeStyle := PriceZeroStyle
	if q.ChangePct > 0 {
		changeStyle = PriceUpStyle
	} else if q.ChangePct < 0 {
		changeStyle = PriceDownStyle
	}

	sign := ""
	if q.ChangePct > 0 {
		sign = "+"
	}

	return fmt.Sprintf("%-6s %10s  %s  Vol: %s",
		q.Code,
		formatPrice(q.Price),
		changeStyle.Render(fmt.Sprintf("%s%.1f%%", sign, q.ChangePct)),
		formatVolume(q.Volume),
	)
}

// FormatContract renders a contract as a single line.
func FormatContract(c *domain.Contract) string {
	return fmt.Sprintf("%-6s %-16s %s  %s",
		c.Code,
		truncate(c.Name, 16),
		exchangeStyle(c.Exchange).Render(fmt.Sprintf("%-3s", string(c.Exchange))),
		c.Category,
	)
}

// RenderHeatMap renders a colored grid showing the day change for each symbol.
func RenderHeatMap(quotes []*domain.Quote, width int) string {
	if len(quotes) == 0 {
		return SubtextStyle.Render("No quote data")
	}

	cellWidth := 8
	cols := width / cellWidth
	if cols < 1 {
		cols = 1
	}

	var rows []string
	var row []string
	for i, q := range quotes {
		bg := HeatNeutral
		if q.ChangePct > 0 {
			bg = heatColorScale(q.ChangePct, 10, HeatGreen)
		} else if q.ChangePct < 0 {
			bg = heatColorScale(-q.ChangePct, 10, HeatRed)
		}

		cell := lipgloss.NewStyle().
			Background(bg).
			Foreground(lipgloss.Color("#000000")).
			Bold(true).
			Width(cellWidth - 1).
			Align(lipgloss.Center).
			Render(q.Code)

		row = append(row, cell)
		if (i+1)%cols == 0 || i == len(quotes)-1 {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row = nil
		}
	}

	return strings.Join(rows, "\n")
}

// heatColorScale produces a color scaled by magnitude. Taiwan equities move
// at most 10% a day, so that caps the scale.
func heatColorScale(magnitude, maxMagnitude float64, baseColor lipgloss.Color) lipgloss.Color {
	intensity := magnitude / maxMagnitude
	if intensity > 1 {
		intensity = 1
	}
	if intensity < 0.1 {
		return HeatNeutral
	}
	return baseColor
}

func exchangeStyle(e domain.Exchange) lipgloss.Style {
	switch e {
	case domain.ExchangeTSE:
		return ExchangeTSEStyle
	case domain.ExchangeOTC:
		return ExchangeOTCStyle
	case domain.ExchangeOES:
		return ExchangeOESStyle
	}
	return SubtextStyle
}

func formatPrice(v float64) string {
	if v >= 1000 {
		return addCommas(fmt.Sprintf("%.2f", v))
	}
	return fmt.Sprintf("%.2f", v)
}

func addCommas(s string) string {
	intPart := s
	fracPart := ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart = s[:dot]
		fracPart = s[dot:]
	}

	n := len(intPart)
	if n <= 3 {
		return s
	}
	var result strings.Builder
	for i, ch := range intPart {
		if i > 0 && (n-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(ch)
	}
	result.WriteString(fracPart)
	return result.String()
}

func formatVolume(v int64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.1fB", float64(v)/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", float64(v)/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fK", float64(v)/1e3)
	default:
		return fmt.Sprintf("%d", v)
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
