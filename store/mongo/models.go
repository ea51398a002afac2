package mongo

import (
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/treasury/account"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/trace"
	"github.com/xraph/treasury/types"
)

// Amounts are kept as decimal strings; BSON has no 256-bit integer.

// ==================== Account models ====================

type accountModel struct {
	grove.BaseModel `grove:"table:treasury_accounts"`

	ID                 string     `grove:"id,pk"                bson:"_id"`
	Symbol             string     `grove:"symbol"               bson:"symbol"`
	TokenBalance       string     `grove:"token_balance"        bson:"token_balance"`
	StackBalance       string     `grove:"stack_balance"        bson:"stack_balance"`
	CreditBalance      string     `grove:"credit_balance"       bson:"credit_balance"`
	UnclaimedBalance   string     `grove:"unclaimed_balance"    bson:"unclaimed_balance"`
	LastClaimTime      int64      `grove:"last_claim_time"      bson:"last_claim_time"`
	LastClaimAmount    string     `grove:"last_claim_amount"    bson:"last_claim_amount"`
	LastClaimTimestamp int64      `grove:"last_claim_timestamp" bson:"last_claim_timestamp"`
	CreatedAt          time.Time  `grove:"created_at"           bson:"created_at"`
	UpdatedAt          time.Time  `grove:"updated_at"           bson:"updated_at"`
	DeletedAt          *time.Time `grove:"deleted_at"           bson:"deleted_at"`
}

func toAccountModel(a *account.Account) *accountModel {
	return &accountModel{
		ID:                 a.OwnerID,
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
		OwnerID:            m.ID,
		Symbol:             m.Symbol,
		LastClaimTime:      uint64(m.LastClaimTime),
		LastClaimTimestamp: uint64(m.LastClaimTimestamp),
	}

	balances := []struct {
		dst *types.Amount
		src string
	}{
		{&a.TokenBalance, m.TokenBalance},
		{&a.StackBalance, m.StackBalance},
		{&a.CreditBalance, m.CreditBalance},
		{&a.UnclaimedBalance, m.UnclaimedBalance},
		{&a.LastClaimAmount, m.LastClaimAmount},
	}
	for _, b := range balances {
		v, err := types.ParseAmount(b.src)
		if err != nil {
			return nil, fmt.Errorf("treasury/mongo: account %s: %w", m.ID, err)
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

// traceModel is keyed by the trace id so the primary index rejects
// duplicates. Seq comes from the counters collection.
type traceModel struct {
	grove.BaseModel `grove:"table:treasury_traces"`

	ID        string      `grove:"id,pk"      bson:"_id"`
	Seq       int64       `grove:"seq"        bson:"seq"`
	ContextID string      `grove:"context_id" bson:"context_id"`
	Owner     string      `grove:"owner"      bson:"owner"`
	Operation string      `grove:"operation"  bson:"operation"`
	Status    string      `grove:"status"     bson:"status"`
	Amount    string      `grove:"amount"     bson:"amount"`
	Metadata  string      `grove:"metadata"   bson:"metadata,omitempty"`
	Calls     []callModel `grove:"calls"      bson:"calls"`
	CreatedAt time.Time   `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time   `grove:"updated_at" bson:"updated_at"`
}

type callModel struct {
	ID        string        `bson:"id"`
	Protocol  string        `bson:"protocol"`
	Agent     string        `bson:"agent"`
	Method    string        `bson:"method"`
	Inputs    []ioDataModel `bson:"inputs"`
	Outputs   []ioDataModel `bson:"outputs"`
	Status    string        `bson:"status"`
	Amount    string        `bson:"amount"`
	Recipient string        `bson:"recipient,omitempty"`
}

type ioDataModel struct {
	DataType string `bson:"data_type"`
	Value    string `bson:"value"`
}

func toTraceModel(t *trace.Trace) *traceModel {
	calls := make([]callModel, len(t.Calls))
	for i, c := range t.Calls {
		calls[i] = callModel{
			ID:        c.ID.String(),
			Protocol:  c.Protocol,
			Agent:     c.Agent,
			Method:    string(c.Method),
			Inputs:    toIODataModels(c.Inputs),
			Outputs:   toIODataModels(c.Outputs),
			Status:    string(c.Status),
			Amount:    c.Amount.String(),
			Recipient: c.Recipient,
		}
	}
	return &traceModel{
		ID:        t.ID,
		Seq:       int64(t.Seq),
		ContextID: t.ContextID,
		Owner:     t.Owner,
		Operation: string(t.Operation()),
		Status:    string(t.Status()),
		Amount:    t.Amount().String(),
		Metadata:  t.Metadata,
		Calls:     calls,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func fromTraceModel(m *traceModel) (*trace.Trace, error) {
	calls := make([]trace.Call, len(m.Calls))
	for i, cm := range m.Calls {
		callID := id.Nil
		if cm.ID != "" {
			parsed, err := id.Parse(cm.ID)
			if err != nil {
				return nil, fmt.Errorf("treasury/mongo: trace %s call %d: %w", m.ID, i, err)
			}
			callID = parsed
		}
		amount, err := types.ParseAmount(cm.Amount)
		if err != nil {
			return nil, fmt.Errorf("treasury/mongo: trace %s call %d: %w", m.ID, i, err)
		}
		calls[i] = trace.Call{
			ID:        callID,
			Protocol:  cm.Protocol,
			Agent:     cm.Agent,
			Method:    trace.Operation(cm.Method),
			Inputs:    fromIODataModels(cm.Inputs),
			Outputs:   fromIODataModels(cm.Outputs),
			Status:    trace.Status(cm.Status),
			Amount:    amount,
			Recipient: cm.Recipient,
		}
	}
	return &trace.Trace{
		Entity: types.Entity{
			CreatedAt: types.Truncate(m.CreatedAt),
			UpdatedAt: types.Truncate(m.UpdatedAt),
		},
		Seq:       uint64(m.Seq),
		ID:        m.ID,
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

func toIODataModels(data []trace.IOData) []ioDataModel {
	out := make([]ioDataModel, len(data))
	for i, d := range data {
		out[i] = ioDataModel{DataType: d.DataType, Value: d.Value}
	}
	return out
}

func fromIODataModels(data []ioDataModel) []trace.IOData {
	if len(data) == 0 {
		return nil
	}
	out := make([]trace.IOData, len(data))
	for i, d := range data {
		out[i] = trace.IOData{DataType: d.DataType, Value: d.Value}
	}
	return out
}
