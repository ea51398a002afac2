package analytics

import (
	"sort"

	"github.com/xraph/treasury/trace"
	"github.com/xraph/treasury/types"
)

// DefaultTopRecipients is the size of RecipientReport.Top when unset.
const DefaultTopRecipients = 10

// RecipientStat is the activity towards one recipient.
type RecipientStat struct {
	Recipient string       `json:"recipient"`
	Count     int          `json:"count"`
	Amount    types.Amount `json:"amount"`
}

// RecipientReport describes where transfers went.
type RecipientReport struct {
	Counts  map[string]int          `json:"recipient_counts"`
	Amounts map[string]types.Amount `json:"recipient_amounts"`
	// Top lists recipients by amount, then count, then name.
	Top    []RecipientStat `json:"top_recipients"`
	Unique int             `json:"unique_recipients"`
}

// Recipients computes the recipient report of traces, keeping the top n
// recipients (DefaultTopRecipients when n < 1).
func Recipients(traces []*trace.Trace, n int) RecipientReport {
	if n < 1 {
		n = DefaultTopRecipients
	}
	report := RecipientReport{
		Counts:  make(map[string]int),
		Amounts: make(map[string]types.Amount),
		Top:     []RecipientStat{},
	}

	for _, t := range traces {
		for _, c := range t.Calls {
			for _, leg := range legsOf(&c) {
				report.Counts[leg.Recipient]++
				if sum, overflow := report.Amounts[leg.Recipient].Add(leg.Amount); !overflow {
					report.Amounts[leg.Recipient] = sum
				}
			}
		}
	}

	for _, r := range sortedKeys(report.Counts) {
		report.Top = append(report.Top, RecipientStat{Recipient: r, Count: report.Counts[r], Amount: report.Amounts[r]})
	}
	sort.SliceStable(report.Top, func(i, j int) bool {
		a, b := report.Top[i], report.Top[j]
		if c := a.Amount.Cmp(b.Amount); c != 0 {
			return c > 0
		}
		return a.Count > b.Count
	})
	if len(report.Top) > n {
		report.Top = report.Top[:n]
	}
	report.Unique = len(report.Counts)

	return report
}

// legsOf extracts (recipient, amount) pairs from a call. A "recipient" input
// immediately followed by an "amount" input is a batch leg; otherwise the
// recipient receives the call amount.
func legsOf(c *trace.Call) []RecipientStat {
	var legs []RecipientStat
	for i, in := range c.Inputs {
		if in.DataType != trace.DataRecipient || in.Value == "" {
			continue
		}
		amount := c.EffectiveAmount()
		if i+1 < len(c.Inputs) && c.Inputs[i+1].DataType == trace.DataAmount {
			amount = types.LenientAmount(c.Inputs[i+1].Value)
		}
		legs = append(legs, RecipientStat{Recipient: in.Value, Amount: amount})
	}
	if len(legs) == 0 && c.Recipient != "" {
		legs = append(legs, RecipientStat{Recipient: c.Recipient, Amount: c.EffectiveAmount()})
	}
	return legs
}
