package job

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"
)

const defaultContractSyncInterval = 24 * time.Hour

type ContractRefresher interface {
	RefreshContracts(ctx context.Context) (int, error)
}

// ContractSync keeps the in-memory contract book and the contract store in
// step with the broker gateway.
type ContractSync struct {
	tracer   trace.Tracer
	market   ContractRefresher
	interval time.Duration
}

func NewContractSync(tracer trace.Tracer, market ContractRefresher, interval time.Duration) *ContractSync {
	if interval <= 0 {
		interval = defaultContractSyncInterval
	}
	return &ContractSync{
		tracer:   tracer,
		market:   market,
		interval: interval,
	}
}

// Start refreshes contracts once immediately and then on every interval.
// Blocks until ctx is cancelled.
func (s *ContractSync) Start(ctx context.Context) {
	if s == nil || s.market == nil {
		<-ctx.Done()
		return
	}

	log.Println("Contract sync starting...")
	s.refresh(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Contract sync stopped")
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *ContractSync) refresh(ctx context.Context) {
	if s.tracer != nil {
		_, span := s.tracer.Start(ctx, "contract-sync-job.refresh")
		defer span.End()
	}
	n, err := s.market.RefreshContracts(ctx)
	if err != nil {
		log.Printf("contract sync error: %v", err)
		return
	}
	log.Printf("contract sync loaded %d contracts", n)
}
