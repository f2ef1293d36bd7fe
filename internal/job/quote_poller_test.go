package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"

	"stockbridge/internal/domain"
)

func TestQuotePollerStart(t *testing.T) {
	t.Parallel()

	tracer := trace.NewNoopTracerProvider().Tracer("test")
	reader := &stubQuoteReader{quotes: []*domain.Quote{{Code: "2330", Price: 590}}}
	poller := NewQuotePoller(tracer, reader, nil, []string{"2330"}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	go poller.Start(ctx)

	eventually(t, func() bool { return reader.calls > 0 })
	cancel()
}

func TestQuotePollerPublishesToSink(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	reader := &stubQuoteReader{quotes: []*domain.Quote{
		{Code: "2330", Price: 590},
		{Code: "2317", Price: 104.5},
	}}
	sink := &stubQuoteSink{}
	poller := NewQuotePoller(tracer, reader, sink, []string{"2330", "2317"}, time.Hour)

	poller.poll(context.Background())

	if len(reader.lastSymbols) != 2 {
		t.Fatalf("expected 2 symbols requested, got %v", reader.lastSymbols)
	}
	if len(sink.batches) != 1 {
		t.Fatalf("expected 1 published batch, got %d", len(sink.batches))
	}
	if len(sink.batches[0]) != 2 {
		t.Fatalf("expected 2 quotes in batch, got %d", len(sink.batches[0]))
	}
}

func TestQuotePollerSkipsSinkOnError(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	reader := &stubQuoteReader{err: errors.New("gateway down")}
	sink := &stubQuoteSink{}
	poller := NewQuotePoller(tracer, reader, sink, []string{"2330"}, time.Hour)

	poller.poll(context.Background())

	if reader.calls != 1 {
		t.Fatalf("expected 1 poll call, got %d", reader.calls)
	}
	if len(sink.batches) != 0 {
		t.Fatalf("expected no published batches, got %d", len(sink.batches))
	}
}

func TestQuotePollerSkipsSinkOnEmptyBatch(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	reader := &stubQuoteReader{missing: []string{"9999"}}
	sink := &stubQuoteSink{}
	poller := NewQuotePoller(tracer, reader, sink, []string{"9999"}, time.Hour)

	poller.poll(context.Background())

	if len(sink.batches) != 0 {
		t.Fatalf("expected no published batches, got %d", len(sink.batches))
	}
}

func TestQuotePollerEmptyWatchlistWaitsForCancel(t *testing.T) {
	t.Parallel()

	tracer := trace.NewNoopTracerProvider().Tracer("test")
	reader := &stubQuoteReader{}
	poller := NewQuotePoller(tracer, reader, nil, nil, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Start to return after cancel")
	}
	if reader.calls != 0 {
		t.Fatalf("expected no polls without a watchlist, got %d", reader.calls)
	}
}

type stubQuoteReader struct {
	quotes      []*domain.Quote
	missing     []string
	err         error
	calls       int
	lastSymbols []string
}

func (s *stubQuoteReader) GetStockPrices(ctx context.Context, symbols []string) ([]*domain.Quote, []string, error) {
	s.calls++
	s.lastSymbols = append([]string(nil), symbols...)
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.quotes, s.missing, nil
}

type stubQuoteSink struct {
	batches [][]*domain.Quote
}

func (s *stubQuoteSink) Publish(quotes []*domain.Quote) {
	s.batches = append(s.batches, quotes)
}
