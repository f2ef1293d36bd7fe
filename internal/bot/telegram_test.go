package bot

import (
	"testing"

	"stockbridge/internal/domain"
)

func TestStartTelegramBotSkipsWithoutToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	if dispatcher := StartTelegramBot(nil, nil, nil, 0); dispatcher != nil {
		t.Fatal("expected nil dispatcher without a bot token")
	}
}

func TestParseChartArgsDefaults(t *testing.T) {
	code, days, err := parseChartArgs([]string{"2330"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != "2330" {
		t.Fatalf("expected code 2330, got %s", code)
	}
	if days != defaultChartDays {
		t.Fatalf("expected default days=%d, got %d", defaultChartDays, days)
	}
}

func TestParseChartArgsExplicitDays(t *testing.T) {
	code, days, err := parseChartArgs([]string{"00878", "30"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != "00878" || days != 30 {
		t.Fatalf("unexpected result: code=%s days=%d", code, days)
	}
}

func TestParseChartArgsRejectsBadInput(t *testing.T) {
	cases := [][]string{
		nil,
		{""},
		{"2330", "abc"},
		{"2330", "0"},
		{"2330", "400"},
		{"2330", "30", "extra"},
	}
	for _, args := range cases {
		if _, _, err := parseChartArgs(args); err == nil {
			t.Fatalf("expected error for args %v", args)
		}
	}
}

func TestParseStocksArgsExchangeAndCount(t *testing.T) {
	filter, err := parseStocksArgs([]string{"tse", "5"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter.Exchange != "TSE" {
		t.Fatalf("expected exchange TSE, got %s", filter.Exchange)
	}
	if filter.Limit != 5 {
		t.Fatalf("expected limit=5, got %d", filter.Limit)
	}
}

func TestParseStocksArgsDefaults(t *testing.T) {
	filter, err := parseStocksArgs(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter.Exchange != "" || filter.Category != "" {
		t.Fatalf("expected empty filter, got %+v", filter)
	}
	if filter.Limit != defaultStocksLimit {
		t.Fatalf("expected default limit=%d, got %d", defaultStocksLimit, filter.Limit)
	}
}

func TestParseStocksArgsRejectsUnknownExchange(t *testing.T) {
	if _, err := parseStocksArgs([]string{"NYSE"}); err == nil {
		t.Fatal("expected unknown exchange error")
	}
}

func TestParseStocksArgsRejectsZeroCount(t *testing.T) {
	if _, err := parseStocksArgs([]string{"0"}); err == nil {
		t.Fatal("expected count range error")
	}
}

func TestFormatQuoteIncludesExchange(t *testing.T) {
	msg := formatQuote(&domain.Quote{
		Code:      "2330",
		Exchange:  domain.ExchangeTSE,
		Price:     590,
		ChangePct: 1.25,
		Volume:    25123,
	})
	if msg != "2330 (TSE)\nPrice: 590.00\nChange: +1.25%\nVolume: 25123" {
		t.Fatalf("unexpected quote message: %q", msg)
	}
}
