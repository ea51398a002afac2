// Package trace defines the audit records written for every balance
// operation and the append-only store that keeps them.
package trace

import (
	"strings"

	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/types"
)

// Protocol is the protocol tag of every call recorded by the ledger.
const Protocol = "finance"

// Status is the free-form status of a call. The ledger writes only the three
// constants below, but imported traces may carry anything.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
)

// IsTerminal reports whether s is Completed or Failed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Operation names the ledger operation a call records.
type Operation string

const (
	OpStack         Operation = "stack"
	OpUnstack       Operation = "unstack"
	OpAddCredit     Operation = "add_credit"
	OpUseCredit     Operation = "use_credit"
	OpAddUnclaimed  Operation = "add_unclaimed"
	OpClaim         Operation = "claim"
	OpAddToken      Operation = "add_token"
	OpTransfer      Operation = "transfer"
	OpBatchTransfer Operation = "batch_transfer"
)

// Operations lists every operation the ledger records.
var Operations = []Operation{
	OpStack, OpUnstack, OpAddCredit, OpUseCredit, OpAddUnclaimed,
	OpClaim, OpAddToken, OpTransfer, OpBatchTransfer,
}

// Well-known IOData types.
const (
	DataAmount      = "amount"
	DataRecipient   = "recipient"
	DataBlockHeight = "block_height"
	DataBatchID     = "batch_id"
	DataError       = "error"
)

// IOData is one typed key/value pair of a call's inputs or outputs.
type IOData struct {
	DataType string `json:"data_type"`
	Value    string `json:"value"`
}

// Call is a single recorded invocation inside a trace.
type Call struct {
	ID       id.ID     `json:"id"`
	Protocol string    `json:"protocol"`
	Agent    string    `json:"agent"`
	Method   Operation `json:"method"`
	Inputs   []IOData  `json:"inputs"`
	Outputs  []IOData  `json:"outputs"`
	Status   Status    `json:"status"`

	// Amount is the typed amount of the operation. Recipient is set for
	// transfers.
	Amount    types.Amount `json:"amount"`
	Recipient string       `json:"recipient,omitempty"`
}

// EffectiveAmount returns Amount, falling back to a leading "amount" input
// for calls recorded without the typed field. Unparseable values count as 0.
func (c *Call) EffectiveAmount() types.Amount {
	if !c.Amount.IsZero() {
		return c.Amount
	}
	if len(c.Inputs) > 0 && c.Inputs[0].DataType == DataAmount {
		return types.LenientAmount(c.Inputs[0].Value)
	}
	return types.ZeroAmount
}

// Trace is the audit record of one ledger operation.
type Trace struct {
	types.Entity
	// Seq is the global insertion sequence assigned by the store.
	Seq       uint64 `json:"seq"`
	ID        string `json:"trace_id"`
	ContextID string `json:"context_id"`
	Owner     string `json:"owner"`
	Metadata  string `json:"metadata,omitempty"`
	Calls     []Call `json:"calls"`
}

// Clone returns a deep copy.
func (t *Trace) Clone() *Trace {
	c := *t
	c.Calls = make([]Call, len(t.Calls))
	for i, call := range t.Calls {
		call.Inputs = append([]IOData(nil), call.Inputs...)
		call.Outputs = append([]IOData(nil), call.Outputs...)
		c.Calls[i] = call
	}
	return &c
}

func (t *Trace) first() *Call {
	if len(t.Calls) == 0 {
		return nil
	}
	return &t.Calls[0]
}

// Amount is the amount of the first call, or zero.
func (t *Trace) Amount() types.Amount {
	if c := t.first(); c != nil {
		return c.EffectiveAmount()
	}
	return types.ZeroAmount
}

// Operation is the method of the first call, or "".
func (t *Trace) Operation() Operation {
	if c := t.first(); c != nil {
		return c.Method
	}
	return ""
}

// Status is the status of the first call, or "".
func (t *Trace) Status() Status {
	if c := t.first(); c != nil {
		return c.Status
	}
	return ""
}

// SetStatus sets the status of every call.
func (t *Trace) SetStatus(s Status) {
	for i := range t.Calls {
		t.Calls[i].Status = s
	}
}

// Recipients returns the distinct recipients named by the trace's calls,
// either through Call.Recipient or a "recipient" input.
func (t *Trace) Recipients() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(r string) {
		if r != "" && !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	for _, c := range t.Calls {
		add(c.Recipient)
		for _, in := range c.Inputs {
			if in.DataType == DataRecipient {
				add(in.Value)
			}
		}
	}
	return out
}

// HasError reports whether the trace failed or carries error metadata.
func (t *Trace) HasError() bool {
	if t.Metadata != "" {
		return true
	}
	s := strings.ToLower(string(t.Status()))
	return strings.Contains(s, "error") || strings.Contains(s, "fail")
}

// Output returns the first output value of the given type.
func (t *Trace) Output(dataType string) (string, bool) {
	for _, c := range t.Calls {
		for _, out := range c.Outputs {
			if out.DataType == dataType {
				return out.Value, true
			}
		}
	}
	return "", false
}
