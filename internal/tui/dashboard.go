package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockbridge/internal/domain"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Dashboard message types.
type quotesMsg struct {
	quotes  []*domain.Quote
	missing []string
}
type quotesErrMsg struct{ err error }
type dashTickMsg time.Time

// DashboardModel is the Bubble Tea model for the watchlist dashboard screen.
type DashboardModel struct {
	services Services
	quotes   []*domain.Quote
	missing  []string
	loading  bool
	err      error
	width    int
	height   int
}

// NewDashboardModel creates a new dashboard model.
func NewDashboardModel(svc Services) DashboardModel {
	return DashboardModel{
		services: svc,
		loading:  true,
	}
}

// Init fires the initial quote fetch.
func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(
		m.fetchQuotesCmd(),
		m.tickCmd(),
	)
}

// Update handles incoming messages.
func (m DashboardModel) Update(msg tea.Msg) (DashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case quotesMsg:
		m.quotes = msg.quotes
		m.missing = msg.missing
		m.loading = false
		m.err = nil
		return m, nil

	case quotesErrMsg:
		m.err = msg.err
		m.loading = false
		return m, nil

	case dashTickMsg:
		return m, tea.Batch(
			m.fetchQuotesCmd(),
			m.tickCmd(),
		)

	case tea.KeyMsg:
		if key.Matches(msg, DefaultKeyMap.Refresh) {
			m.loading = true
			return m, m.fetchQuotesCmd()
		}
	}

	return m, nil
}

// View renders the dashboard.
func (m DashboardModel) View() string {
	if m.loading && len(m.quotes) == 0 {
		return SubtextStyle.Render("Loading quotes...")
	}
	if m.err != nil && len(m.quotes) == 0 {
		return ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}

	var sections []string

	// Quote table + heat map side by side
	quoteTable := m.renderQuoteTable()
	heatMap := m.renderHeatMapSection()

	quoteWidth := m.width*2/3 - 2
	if quoteWidth < 40 {
		quoteWidth = 40
	}
	heatWidth := m.width - quoteWidth - 4
	if heatWidth < 15 {
		heatWidth = 15
	}

	quoteBox := BorderStyle.Width(quoteWidth).Render(quoteTable)
	heatBox := BorderStyle.Width(heatWidth).Render(heatMap)

	topRow := lipgloss.JoinHorizontal(lipgloss.Top, quoteBox, heatBox)
	sections = append(sections, topRow)

	if len(m.missing) > 0 {
		sections = append(sections, SubtextStyle.Render(
			fmt.Sprintf("  No data: %s", strings.Join(m.missing, ", ")),
		))
	}

	sections = append(sections, SubtextStyle.Render("  [R] refresh  auto-refresh every 10s"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetSize updates the model dimensions.
func (m *DashboardModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Quotes returns the current quotes (for testing).
func (m DashboardModel) Quotes() []*domain.Quote { return m.quotes }

// Missing returns the symbols without data (for testing).
func (m DashboardModel) Missing() []string { return m.missing }

func (m DashboardModel) renderQuoteTable() string {
	header := HeaderStyle.Render("  Watchlist")
	var lines []string
	lines = append(lines, header)
	lines = append(lines, SubtextStyle.Render("  Code        Price     Change    Volume"))
	lines = append(lines, SubtextStyle.Render(strings.Repeat("-", 50)))

	for _, q := range m.quotes {
		lines = append(lines, "  "+FormatQuote(q))
	}

	if len(m.quotes) == 0 {
		lines = append(lines, SubtextStyle.Render("  No quote data available"))
	}

	return strings.Join(lines, "\n")
}

func (m DashboardModel) renderHeatMapSection() string {
	header := HeaderStyle.Render("  Heat Map")
	heatWidth := m.width/3 - 4
	if heatWidth < 15 {
		heatWidth = 15
	}
	heatMap := RenderHeatMap(m.quotes, heatWidth)
	return header + "\n" + heatMap
}

func (m DashboardModel) fetchQuotesCmd() tea.Cmd {
	return func() tea.Msg {
		if m.services.Quotes == nil {
			return quotesErrMsg{err: fmt.Errorf("quote service not available")}
		}
		if len(m.services.Watchlist) == 0 {
			return quotesErrMsg{err: fmt.Errorf("watchlist is empty, set WATCH_SYMBOLS")}
		}
		quotes, missing, err := m.services.Quotes.GetStockPrices(context.Background(), m.services.Watchlist)
		if err != nil {
			return quotesErrMsg{err: err}
		}
		return quotesMsg{quotes: quotes, missing: missing}
	}
}

func (m DashboardModel) tickCmd() tea.Cmd {
	return tea.Tick(10*time.Second, func(t time.Time) tea.Msg {
		return dashTickMsg(t)
	})
}
