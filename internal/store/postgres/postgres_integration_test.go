package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jipraks/kasirgratisan/internal/store"
	"github.com/jipraks/kasirgratisan/internal/store/storetest"
)

func TestConformance(t *testing.T) {
	databaseURL := os.Getenv("KASIR_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set KASIR_TEST_DATABASE_URL to run postgres integration test")
	}

	storetest.Run(t, func(t *testing.T) store.Backend {
		ctx := context.Background()
		s, err := New(ctx, databaseURL)
		if err != nil {
			t.Fatalf("new store: %v", err)
		}
		for _, c := range store.Collections() {
			if err := s.Clear(ctx, c); err != nil {
				t.Fatalf("clear %s: %v", c, err)
			}
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM ledger_meta`); err != nil {
			t.Fatalf("reset meta: %v", err)
		}
		return s
	})
}
