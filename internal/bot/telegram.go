package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"stockbridge/internal/domain"

	tele "gopkg.in/telebot.v3"
)

type MarketQuerier interface {
	GetStockPrices(ctx context.Context, symbols []string) ([]*domain.Quote, []string, error)
	GetKBars(ctx context.Context, code string, start, end time.Time) ([]*domain.Candle, error)
	ListStocks(ctx context.Context, filter domain.ContractFilter) ([]*domain.Contract, error)
}

// ChartRenderer renders a candle series into an encoded PNG image.
type ChartRenderer interface {
	RenderKBarChart(candles []*domain.Candle) ([]byte, error)
}

const (
	defaultStocksLimit = 10
	defaultChartDays   = 90
	maxChartDays       = 365
)

func StartTelegramBot(market MarketQuerier, charts ChartRenderer, watchlist []string, movePct float64) *AlertDispatcher {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}
	alerts := NewAlertDispatcher(b, movePct)

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/price", func(c tele.Context) error {
		if market == nil {
			return c.Send("Market service unavailable")
		}
		args := c.Args()
		if len(args) == 0 {
			return c.Send("Usage: /price 2330")
		}
		code := strings.TrimSpace(args[0])
		quotes, _, err := market.GetStockPrices(context.Background(), []string{code})
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching price for %s: %v", code, err))
		}
		if len(quotes) == 0 {
			return c.Send(fmt.Sprintf("No quote available for %s", code))
		}
		return c.Send(formatQuote(quotes[0]))
	})

	b.Handle("/stocks", func(c tele.Context) error {
		if market == nil {
			return c.Send("Market service unavailable")
		}

		filter, err := parseStocksArgs(c.Args())
		if err != nil {
			return c.Send("Usage: /stocks [TSE|OTC|OES] [count]")
		}

		contracts, err := market.ListStocks(context.Background(), filter)
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching stocks: %v", err))
		}
		if len(contracts) == 0 {
			return c.Send("No matching stocks.")
		}

		lines := make([]string, 0, len(contracts))
		for _, contract := range contracts {
			lines = append(lines, formatContract(contract))
		}
		return c.Send(strings.Join(lines, "\n"))
	})

	b.Handle("/chart", func(c tele.Context) error {
		if market == nil || charts == nil {
			return c.Send("Chart rendering unavailable")
		}

		code, days, err := parseChartArgs(c.Args())
		if err != nil {
			return c.Send("Usage: /chart 2330 [days]")
		}

		end := time.Now()
		start := end.AddDate(0, 0, -days)
		candles, err := market.GetKBars(context.Background(), code, start, end)
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching kbars for %s: %v", code, err))
		}

		img, err := charts.RenderKBarChart(candles)
		if err != nil {
			return c.Send(fmt.Sprintf("Cannot render chart for %s: %v", code, err))
		}

		photo := &tele.Photo{
			File:    tele.FromReader(bytes.NewReader(img)),
			Caption: fmt.Sprintf("%s, last %d days", code, days),
		}
		return c.Send(photo)
	})

	b.Handle("/watchlist", func(c tele.Context) error {
		if market == nil {
			return c.Send("Market service unavailable")
		}
		if len(watchlist) == 0 {
			return c.Send("Watchlist is empty. Set WATCH_SYMBOLS to enable it.")
		}

		quotes, missing, err := market.GetStockPrices(context.Background(), watchlist)
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching watchlist: %v", err))
		}
		return c.Send(formatWatchlist(quotes, missing))
	})

	b.Handle("/alerts", func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil {
			return c.Send("Unable to detect chat")
		}

		mode, err := parseAlertMode(c.Args())
		if err != nil {
			return c.Send("Usage: /alerts on | /alerts off | /alerts status")
		}

		switch mode {
		case "on":
			if alerts.Subscribe(chat.ID) {
				return c.Send("Price move alerts enabled for this chat.")
			}
			return c.Send("Price move alerts are already enabled for this chat.")
		case "off":
			if alerts.Unsubscribe(chat.ID) {
				return c.Send("Price move alerts disabled for this chat.")
			}
			return c.Send("Price move alerts are already disabled for this chat.")
		default:
			if alerts.IsSubscribed(chat.ID) {
				return c.Send("Alerts status: ON")
			}
			return c.Send("Alerts status: OFF")
		}
	})

	log.Println("Telegram bot started")
	go b.Start()
	return alerts
}

func parseChartArgs(args []string) (string, int, error) {
	if len(args) == 0 {
		return "", 0, errors.New("missing stock code")
	}
	if len(args) > 2 {
		return "", 0, errors.New("too many arguments")
	}

	code := strings.TrimSpace(args[0])
	if code == "" {
		return "", 0, errors.New("missing stock code")
	}

	days := defaultChartDays
	if len(args) == 2 {
		n, err := strconv.Atoi(strings.TrimSpace(args[1]))
		if err != nil {
			return "", 0, errors.New("days must be an integer")
		}
		if n <= 0 || n > maxChartDays {
			return "", 0, errors.New("days out of range")
		}
		days = n
	}

	return code, days, nil
}

func parseStocksArgs(args []string) (domain.ContractFilter, error) {
	filter := domain.ContractFilter{Limit: defaultStocksLimit}

	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}

		if n, err := strconv.Atoi(arg); err == nil {
			if n <= 0 {
				return domain.ContractFilter{}, errors.New("count out of range")
			}
			filter.Limit = n
			continue
		}

		exchange := domain.Exchange(strings.ToUpper(arg))
		if !exchange.IsValid() {
			return domain.ContractFilter{}, errors.New("unknown exchange")
		}
		if filter.Exchange != "" {
			return domain.ContractFilter{}, errors.New("multiple exchanges provided")
		}
		filter.Exchange = string(exchange)
	}

	return filter, nil
}

func formatQuote(q *domain.Quote) string {
	header := q.Code
	if q.Exchange != "" {
		header = fmt.Sprintf("%s (%s)", q.Code, q.Exchange)
	}
	return fmt.Sprintf(
		"%s\nPrice: %.2f\nChange: %+.2f%%\nVolume: %d",
		header, q.Price, q.ChangePct, q.Volume,
	)
}

func formatContract(c *domain.Contract) string {
	return fmt.Sprintf("%s %s (%s/%s)", c.Code, c.Name, c.Exchange, c.Category)
}

func formatWatchlist(quotes []*domain.Quote, missing []string) string {
	lines := make([]string, 0, len(quotes)+2)
	lines = append(lines, "Watchlist:")
	for _, q := range quotes {
		lines = append(lines, fmt.Sprintf("%s %.2f (%+.2f%%)", q.Code, q.Price, q.ChangePct))
	}
	if len(missing) > 0 {
		lines = append(lines, fmt.Sprintf("No data: %s", strings.Join(missing, ", ")))
	}
	return strings.Join(lines, "\n")
}
