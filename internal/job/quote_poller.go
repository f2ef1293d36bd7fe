package job

import (
	"context"
	"log"
	"time"

	"stockbridge/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const defaultQuotePollInterval = 30 * time.Second

type QuoteReader interface {
	GetStockPrices(ctx context.Context, symbols []string) ([]*domain.Quote, []string, error)
}

// QuoteSink receives every batch of fresh watchlist quotes.
type QuoteSink interface {
	Publish(quotes []*domain.Quote)
}

// QuotePoller keeps the quote cache warm for the configured watchlist and
// hands each fresh batch to the sink.
type QuotePoller struct {
	tracer   trace.Tracer
	market   QuoteReader
	sink     QuoteSink
	symbols  []string
	interval time.Duration
}

func NewQuotePoller(tracer trace.Tracer, market QuoteReader, sink QuoteSink, symbols []string, interval time.Duration) *QuotePoller {
	if interval <= 0 {
		interval = defaultQuotePollInterval
	}
	return &QuotePoller{
		tracer:   tracer,
		market:   market,
		sink:     sink,
		symbols:  append([]string(nil), symbols...),
		interval: interval,
	}
}

// Start polls once immediately and then on every interval. Blocks until ctx
// is cancelled.
func (p *QuotePoller) Start(ctx context.Context) {
	if p == nil || p.market == nil || len(p.symbols) == 0 {
		log.Println("Quote poller disabled: no market service or empty watchlist")
		<-ctx.Done()
		return
	}

	log.Printf("Quote poller starting for %d symbols...", len(p.symbols))
	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Quote poller stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *QuotePoller) poll(ctx context.Context) {
	if p.tracer != nil {
		_, span := p.tracer.Start(ctx, "quote-poller-job.poll")
		defer span.End()
	}
	quotes, missing, err := p.market.GetStockPrices(ctx, p.symbols)
	if err != nil {
		log.Printf("quote poll error: %v", err)
		return
	}
	if len(missing) > 0 {
		log.Printf("quote poll missing data for %d symbol(s)", len(missing))
	}
	if p.sink != nil && len(quotes) > 0 {
		p.sink.Publish(quotes)
	}
}
