package treasury

import (
	"github.com/xraph/treasury/account"
	"github.com/xraph/treasury/trace"
	"github.com/xraph/treasury/types"
)

// Re-export common types for convenience so users don't have to import the
// leaf packages for everyday calls.

// Amount is re-exported from types package.
type Amount = types.Amount

// Entity is re-exported from types package.
type Entity = types.Entity

// Account is re-exported from account package.
type Account = account.Account

// Trace is re-exported from trace package.
type Trace = trace.Trace

// Operation is re-exported from trace package.
type Operation = trace.Operation

// Re-export Amount constructors.
var (
	NewAmount       = types.NewAmount
	ParseAmount     = types.ParseAmount
	MustParseAmount = types.MustParseAmount
	ZeroAmount      = types.ZeroAmount
)
