package tui

import (
	"context"
	"fmt"
	"strings"

	"stockbridge/internal/domain"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Stock browser message types.
type contractsMsg []*domain.Contract
type contractsErrMsg struct{ err error }

var exchangeOptions = []string{"ALL", "TSE", "OTC", "OES"}

const browserPageLimit = 100

// StockBrowserModel is the Bubble Tea model for the stock browser screen.
type StockBrowserModel struct {
	services     Services
	contracts    []*domain.Contract
	exchangeIdx  int
	scrollOffset int
	loading      bool
	err          error
	width        int
	height       int
}

// NewStockBrowserModel creates a new stock browser model.
func NewStockBrowserModel(svc Services) StockBrowserModel {
	return StockBrowserModel{
		services: svc,
		loading:  true,
	}
}

// Init fires the initial contract fetch.
func (m StockBrowserModel) Init() tea.Cmd {
	return m.fetchContractsCmd()
}

// Update handles incoming messages.
func (m StockBrowserModel) Update(msg tea.Msg) (StockBrowserModel, tea.Cmd) {
	switch msg := msg.(type) {
	case contractsMsg:
		m.contracts = []*domain.Contract(msg)
		m.loading = false
		m.scrollOffset = 0
		m.err = nil
		return m, nil

	case contractsErrMsg:
		m.err = msg.err
		m.loading = false
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, DefaultKeyMap.FilterExchange):
			m.exchangeIdx = (m.exchangeIdx + 1) % len(exchangeOptions)
			m.loading = true
			return m, m.fetchContractsCmd()

		case key.Matches(msg, DefaultKeyMap.Refresh):
			m.loading = true
			return m, m.fetchContractsCmd()

		case msg.String() == "j" || msg.String() == "down":
			maxVisible := m.visibleRows()
			if m.scrollOffset < len(m.contracts)-maxVisible {
				m.scrollOffset++
			}
			return m, nil

		case msg.String() == "k" || msg.String() == "up":
			if m.scrollOffset > 0 {
				m.scrollOffset--
			}
			return m, nil
		}
	}

	return m, nil
}

// View renders the stock browser.
func (m StockBrowserModel) View() string {
	var sections []string

	sections = append(sections, HeaderStyle.Render("  Stock Browser"))
	sections = append(sections, "")

	sections = append(sections, m.renderFilters())
	sections = append(sections, SubtextStyle.Render(strings.Repeat("-", m.width-2)))

	if m.loading {
		sections = append(sections, SubtextStyle.Render("  Loading..."))
		return strings.Join(sections, "\n")
	}

	if m.err != nil {
		sections = append(sections, ErrorStyle.Render(fmt.Sprintf("  Error: %v", m.err)))
		return strings.Join(sections, "\n")
	}

	if len(m.contracts) == 0 {
		sections = append(sections, SubtextStyle.Render("  No stocks match the current filter"))
		return strings.Join(sections, "\n")
	}

	// Table header
	sections = append(sections, SubtextStyle.Render(
		fmt.Sprintf("  %-6s %-16s %-4s %s", "Code", "Name", "Exch", "Category"),
	))

	// Table rows
	maxVisible := m.visibleRows()
	end := m.scrollOffset + maxVisible
	if end > len(m.contracts) {
		end = len(m.contracts)
	}

	for i := m.scrollOffset; i < end; i++ {
		sections = append(sections, "  "+FormatContract(m.contracts[i]))
	}

	// Scroll indicator
	if len(m.contracts) > maxVisible {
		sections = append(sections, SubtextStyle.Render(
			fmt.Sprintf("  Showing %d-%d of %d (j/k to scroll)", m.scrollOffset+1, end, len(m.contracts)),
		))
	}

	sections = append(sections, "")
	sections = append(sections, SubtextStyle.Render("  [e] exchange  [R] refresh  [j/k] scroll"))

	return strings.Join(sections, "\n")
}

// SetSize updates the model dimensions.
func (m *StockBrowserModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// ExchangeFilter returns the current exchange filter index (for testing).
func (m StockBrowserModel) ExchangeFilter() int { return m.exchangeIdx }

// ContractCount returns the number of loaded contracts (for testing).
func (m StockBrowserModel) ContractCount() int { return len(m.contracts) }

func (m StockBrowserModel) renderFilters() string {
	var parts []string
	parts = append(parts, SubtextStyle.Render("Exchange: "))
	for i, opt := range exchangeOptions {
		if i == m.exchangeIdx {
			parts = append(parts, ActiveTabStyle.Render(opt))
		} else {
			parts = append(parts, SubtextStyle.Render(opt))
		}
		parts = append(parts, " ")
	}
	return "  " + lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m StockBrowserModel) buildFilter() domain.ContractFilter {
	filter := domain.ContractFilter{Limit: browserPageLimit}
	if m.exchangeIdx > 0 && m.exchangeIdx < len(exchangeOptions) {
		filter.Exchange = exchangeOptions[m.exchangeIdx]
	}
	return filter
}

func (m StockBrowserModel) fetchContractsCmd() tea.Cmd {
	filter := m.buildFilter()
	return func() tea.Msg {
		if m.services.Stocks == nil {
			return contractsErrMsg{err: fmt.Errorf("contract service not available")}
		}
		contracts, err := m.services.Stocks.ListStocks(context.Background(), filter)
		if err != nil {
			return contractsErrMsg{err: err}
		}
		return contractsMsg(contracts)
	}
}

func (m StockBrowserModel) visibleRows() int {
	// Account for header, filter row, table header, help footer
	available := m.height - 9
	if available < 5 {
		return 5
	}
	return available
}
