package repository

import (
	"context"
	"fmt"
	"strings"

	"stockbridge/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

type ContractRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewContractRepository(pool PgxPool, tracer trace.Tracer) *ContractRepository {
	return &ContractRepository{pool: pool, tracer: tracer}
}

func (r *ContractRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "contract-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS contracts (
		     code       TEXT PRIMARY KEY,
		     name       TEXT NOT NULL DEFAULT '',
		     exchange   TEXT NOT NULL DEFAULT '',
		     category   TEXT NOT NULL DEFAULT '',
		     updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		 )`)
	return err
}

func (r *ContractRepository) UpsertContracts(ctx context.Context, contracts []*domain.Contract) error {
	if len(contracts) == 0 {
		return nil
	}

	_, span := r.tracer.Start(ctx, "contract-repo.upsert-contracts")
	defer span.End()

	batch := &pgx.Batch{}
	for _, c := range contracts {
		batch.Queue(
			`INSERT INTO contracts (code, name, exchange, category, updated_at)
			 VALUES ($1, $2, $3, $4, NOW())
			 ON CONFLICT (code) DO UPDATE SET
			     name = EXCLUDED.name,
			     exchange = EXCLUDED.exchange,
			     category = EXCLUDED.category,
			     updated_at = NOW()`,
			c.Code, c.Name, string(c.Exchange), c.Category,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range contracts {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ListContracts returns contracts matching the filter ordered by code. A
// non-positive limit returns every match, which the startup seed relies on.
func (r *ContractRepository) ListContracts(ctx context.Context, filter domain.ContractFilter) ([]*domain.Contract, error) {
	_, span := r.tracer.Start(ctx, "contract-repo.list-contracts")
	defer span.End()

	args := make([]any, 0, 3)
	var sb strings.Builder
	sb.WriteString(`SELECT code, name, exchange, category FROM contracts WHERE 1=1`)

	if filter.Exchange != "" {
		args = append(args, strings.ToUpper(filter.Exchange))
		sb.WriteString(fmt.Sprintf(" AND exchange = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		sb.WriteString(fmt.Sprintf(" AND category = $%d", len(args)))
	}

	sb.WriteString(" ORDER BY code")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contracts []*domain.Contract
	for rows.Next() {
		c := &domain.Contract{}
		var exchange string
		if err := rows.Scan(&c.Code, &c.Name, &exchange, &c.Category); err != nil {
			return nil, err
		}
		c.Exchange = domain.Exchange(exchange)
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}
