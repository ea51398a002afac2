package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/treasury/account"
	"github.com/xraph/treasury/trace"
	"github.com/xraph/treasury/types"
)

// ==================== Account models ====================

// Balances are TEXT: NUMERIC would survive the 256-bit range too, but TEXT
// round-trips through every driver codec unchanged.
type accountModel struct {
	grove.BaseModel `grove:"table:treasury_accounts"`

	OwnerID            string     `grove:"owner_id,pk"`
	Symbol             string     `grove:"symbol"`
	TokenBalance       string     `grove:"token_balance"`
	StackBalance       string     `grove:"stack_balance"`
	CreditBalance      string     `grove:"credit_balance"`
	UnclaimedBalance   string     `grove:"unclaimed_balance"`
	LastClaimTime      int64      `grove:"last_claim_time"`
	LastClaimAmount    string     `grove:"last_claim_amount"`
	LastClaimTimestamp int64      `grove:"last_claim_timestamp"`
	CreatedAt          time.Time  `grove:"created_at"`
	UpdatedAt          time.Time  `grove:"updated_at"`
	DeletedAt          *time.Time `grove:"deleted_at"`
}

func toAccountModel(a *account.Account) *accountModel {
	return &accountModel{
		OwnerID:            a.OwnerID,
		Symbol:             a.Symbol,
		TokenBalance:       a.TokenBalance.String(),
		StackBalance:       a.StackBalance.String(),
		CreditBalance:      a.CreditBalance.String(),
		UnclaimedBalance:   a.UnclaimedBalance.String(),
		LastClaimTime:      int64(a.LastClaimTime),
		LastClaimAmount:    a.LastClaimAmount.String(),
		LastClaimTimestamp: int64(a.LastClaimTimestamp),
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
		DeletedAt:          a.DeletedAt,
	}
}

func fromAccountModel(m *accountModel) (*account.Account, error) {
	a := &account.Account{
		Entity: types.Entity{
			CreatedAt: types.Truncate(m.CreatedAt),
			UpdatedAt: types.Truncate(m.UpdatedAt),
		},
		OwnerID:            m.OwnerID,
		Symbol:             m.Symbol,
		LastClaimTime:      uint64(m.LastClaimTime),
		LastClaimTimestamp: uint64(m.LastClaimTimestamp),
	}

	for _, b := range []struct {
		dst *types.Amount
		src string
	}{
		{&a.TokenBalance, m.TokenBalance},
		{&a.StackBalance, m.StackBalance},
		{&a.CreditBalance, m.CreditBalance},
		{&a.UnclaimedBalance, m.UnclaimedBalance},
		{&a.LastClaimAmount, m.LastClaimAmount},
	} {
		v, err := types.ParseAmount(b.src)
		if err != nil {
			return nil, fmt.Errorf("treasury/postgres: account %s: %w", m.OwnerID, err)
		}
		*b.dst = v
	}

	if m.DeletedAt != nil {
		deleted := types.Truncate(*m.DeletedAt)
		a.DeletedAt = &deleted
	}
	return a, nil
}

// ==================== Trace models ====================

type traceModel struct {
	grove.BaseModel `grove:"table:treasury_traces"`

	Seq       int64           `grove:"seq,pk,autoincrement"`
	TraceID   string          `grove:"trace_id"`
	ContextID string          `grove:"context_id"`
	Owner     string          `grove:"owner"`
	Operation string          `grove:"operation"`
	Status    string          `grove:"status"`
	Amount    string          `grove:"amount"`
	Metadata  string          `grove:"metadata"`
	Calls     json.RawMessage `grove:"calls,type:jsonb"`
	CreatedAt time.Time       `grove:"created_at"`
	UpdatedAt time.Time       `grove:"updated_at"`
}

func toTraceModel(t *trace.Trace) (*traceModel, error) {
	calls, err := json.Marshal(t.Calls)
	if err != nil {
		return nil, fmt.Errorf("treasury/postgres: encode calls: %w", err)
	}
	return &traceModel{
		Seq:       int64(t.Seq),
		TraceID:   t.ID,
		ContextID: t.ContextID,
		Owner:     t.Owner,
		Operation: string(t.Operation()),
		Status:    string(t.Status()),
		Amount:    t.Amount().String(),
		Metadata:  t.Metadata,
		Calls:     calls,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}, nil
}

func fromTraceModel(m *traceModel) (*trace.Trace, error) {
	var calls []trace.Call
	if err := json.Unmarshal(m.Calls, &calls); err != nil {
		return nil, fmt.Errorf("treasury/postgres: decode calls of %s: %w", m.TraceID, err)
	}
	return &trace.Trace{
		Entity: types.Entity{
			CreatedAt: types.Truncate(m.CreatedAt),
			UpdatedAt: types.Truncate(m.UpdatedAt),
		},
		Seq:       uint64(m.Seq),
		ID:        m.TraceID,
		ContextID: m.ContextID,
		Owner:     m.Owner,
		Metadata:  m.Metadata,
		Calls:     calls,
	}, nil
}

func fromTraceModels(models []traceModel) ([]*trace.Trace, error) {
	result := make([]*trace.Trace, len(models))
	for i := range models {
		t, err := fromTraceModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = t
	}
	return result, nil
}
