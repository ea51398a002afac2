package query

import (
	"github.com/xraph/treasury/trace"
	"github.com/xraph/treasury/types"
)

// Stats summarizes a trace slice. Totals saturate instead of wrapping in the
// practically unreachable case of a 256-bit overflow.
type Stats struct {
	Count           int          `json:"count"`
	TotalAmount     types.Amount `json:"total_amount"`
	CompletedAmount types.Amount `json:"completed_amount"`
	Completed       int          `json:"completed"`
	Failed          int          `json:"failed"`
	Pending         int          `json:"pending"`
}

func (s *Stats) add(t *trace.Trace) {
	s.Count++
	amount := t.Amount()
	s.TotalAmount = saturatingAdd(s.TotalAmount, amount)

	switch t.Status() {
	case trace.StatusCompleted:
		s.Completed++
		s.CompletedAmount = saturatingAdd(s.CompletedAmount, amount)
	case trace.StatusFailed:
		s.Failed++
	case trace.StatusPending:
		s.Pending++
	}
}

func saturatingAdd(a, b types.Amount) types.Amount {
	sum, overflow := a.Add(b)
	if overflow {
		return a
	}
	return sum
}

// Statistics summarizes traces.
func Statistics(traces []*trace.Trace) Stats {
	var s Stats
	for _, t := range traces {
		s.add(t)
	}
	return s
}

// StatisticsByOperation summarizes traces per operation; traces without an
// operation are keyed Unknown.
func StatisticsByOperation(traces []*trace.Trace) map[string]Stats {
	out := make(map[string]Stats)
	for _, t := range traces {
		k := orUnknown(string(t.Operation()))
		s := out[k]
		s.add(t)
		out[k] = s
	}
	return out
}

// WithErrors returns the traces that failed or carry error metadata.
func WithErrors(traces []*trace.Trace) []*trace.Trace {
	return Where(traces, (*trace.Trace).HasError)
}

// AmountRange is an inclusive amount interval.
type AmountRange struct {
	Min types.Amount `json:"min"`
	Max types.Amount `json:"max"`
}

// Contains reports whether a lies within r.
func (r AmountRange) Contains(a types.Amount) bool {
	return !a.LessThan(r.Min) && !r.Max.LessThan(a)
}

// InAmountRanges returns the traces whose amount lies in any of ranges.
func InAmountRanges(traces []*trace.Trace, ranges ...AmountRange) []*trace.Trace {
	return Where(traces, func(t *trace.Trace) bool {
		amount := t.Amount()
		for _, r := range ranges {
			if r.Contains(amount) {
				return true
			}
		}
		return false
	})
}
