package repository

import (
	"context"
	"strings"
	"testing"

	"stockbridge/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

func TestContractRunMigrationsExecutesSchema(t *testing.T) {
	pool := &stubPool{}
	repo := NewContractRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	if err := repo.RunMigrations(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.execSQL) != 1 || !strings.Contains(pool.execSQL[0], "contracts") {
		t.Fatalf("expected contracts schema exec, got %+v", pool.execSQL)
	}
}

func TestUpsertContractsBatchesStatements(t *testing.T) {
	batchResults := &stubBatchResults{}
	pool := &stubPool{batchResults: batchResults}
	repo := NewContractRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	contracts := []*domain.Contract{
		{Code: "2330", Name: "TSMC", Exchange: domain.ExchangeTSE, Category: "Semiconductors"},
		{Code: "6488", Name: "GlobalWafers", Exchange: domain.ExchangeOTC, Category: "Semiconductors"},
	}
	if err := repo.UpsertContracts(context.Background(), contracts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.queuedBatch == nil || pool.queuedBatch.Len() != len(contracts) {
		t.Fatalf("expected batch of size %d", len(contracts))
	}
	if batchResults.execCalls != len(contracts) {
		t.Fatalf("expected %d Exec calls, got %d", len(contracts), batchResults.execCalls)
	}
}

func TestListContractsFiltersAndLimits(t *testing.T) {
	rows := [][]any{
		{"2330", "TSMC", "TSE", "Semiconductors"},
	}
	pool := &stubPool{rowsData: rows}
	repo := NewContractRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	contracts, err := repo.ListContracts(context.Background(), domain.ContractFilter{
		Exchange: "tse",
		Category: "Semiconductors",
		Limit:    20,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contracts) != 1 || contracts[0].Code != "2330" || contracts[0].Exchange != domain.ExchangeTSE {
		t.Fatalf("unexpected contracts: %+v", contracts)
	}

	if !strings.Contains(pool.querySQL, "exchange = $1") || !strings.Contains(pool.querySQL, "category = $2") {
		t.Fatalf("expected filter clauses, got %s", pool.querySQL)
	}
	if !strings.Contains(pool.querySQL, "LIMIT $3") {
		t.Fatalf("expected limit clause, got %s", pool.querySQL)
	}
	if pool.queryArgs[0] != "TSE" {
		t.Fatalf("exchange should be uppercased, got %v", pool.queryArgs[0])
	}
}

func TestListContractsWithoutLimitReturnsAll(t *testing.T) {
	pool := &stubPool{}
	repo := NewContractRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	if _, err := repo.ListContracts(context.Background(), domain.ContractFilter{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(pool.querySQL, "LIMIT") {
		t.Fatalf("no limit clause expected, got %s", pool.querySQL)
	}
}
