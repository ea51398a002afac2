package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xraph/grove/drivers/pgdriver"

	"github.com/xraph/treasury/store"
	"github.com/xraph/treasury/store/postgres"
	"github.com/xraph/treasury/store/storetest"
)

// TestConformance needs a disposable database:
//
//	TREASURY_TEST_POSTGRES_DSN=postgres://localhost:5432/treasury_test?sslmode=disable
func TestConformance(t *testing.T) {
	dsn := os.Getenv("TREASURY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TREASURY_TEST_POSTGRES_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		s, err := postgres.Open(ctx, dsn)
		require.NoError(t, err)
		require.NoError(t, s.Migrate(ctx))

		_, err = pgdriver.Unwrap(s.DB()).
			NewRaw("TRUNCATE treasury_accounts, treasury_traces RESTART IDENTITY").
			Exec(ctx)
		require.NoError(t, err)
		return s
	})
}
