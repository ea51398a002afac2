// Package gateway abstracts the external ledger that settles transfers.
//
// Transfers are single-entry on the local side: the sender's balance is
// debited here and the recipient is credited by the external ledger.
package gateway

import (
	"context"
	"sync/atomic"

	"github.com/xraph/treasury/types"
)

// Receipt is what the external ledger returns for a settled transfer.
type Receipt struct {
	BlockHeight uint64 `json:"block_height"`
}

// Gateway settles a transfer on the external ledger.
type Gateway interface {
	Transfer(ctx context.Context, from, to string, amount types.Amount) (Receipt, error)
}

// Func adapts a function to Gateway.
type Func func(ctx context.Context, from, to string, amount types.Amount) (Receipt, error)

// Transfer calls f.
func (f Func) Transfer(ctx context.Context, from, to string, amount types.Amount) (Receipt, error) {
	return f(ctx, from, to, amount)
}

// Nop accepts every transfer and returns increasing block heights.
// It is the default when no gateway is configured.
type Nop struct {
	height atomic.Uint64
}

// NewNop returns a Nop gateway.
func NewNop() *Nop { return &Nop{} }

// Transfer implements Gateway.
func (n *Nop) Transfer(ctx context.Context, _, _ string, _ types.Amount) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	return Receipt{BlockHeight: n.height.Add(1)}, nil
}

var (
	_ Gateway = Func(nil)
	_ Gateway = (*Nop)(nil)
)
