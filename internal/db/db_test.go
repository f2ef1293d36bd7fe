package db

import (
	"context"
	"testing"
)

func TestInitPostgres_NoDSN(t *testing.T) {
	// Should not panic or fatal, just log and return
	InitPostgres(context.Background(), "")
	if Pool != nil {
		t.Fatal("pool should stay nil without a DSN")
	}
}
