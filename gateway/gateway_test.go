package gateway_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/treasury/gateway"
	"github.com/xraph/treasury/types"
)

func TestNopIncrementsHeight(t *testing.T) {
	g := gateway.NewNop()
	ctx := context.Background()

	first, err := g.Transfer(ctx, "a", "b", types.NewAmount(1))
	require.NoError(t, err)
	second, err := g.Transfer(ctx, "a", "b", types.NewAmount(1))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first.BlockHeight)
	assert.Equal(t, uint64(2), second.BlockHeight)
}

func TestNopHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gateway.NewNop().Transfer(ctx, "a", "b", types.NewAmount(1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFunc(t *testing.T) {
	boom := errors.New("ledger offline")
	g := gateway.Func(func(context.Context, string, string, types.Amount) (gateway.Receipt, error) {
		return gateway.Receipt{}, boom
	})
	_, err := g.Transfer(context.Background(), "a", "b", types.NewAmount(1))
	assert.ErrorIs(t, err, boom)
}
