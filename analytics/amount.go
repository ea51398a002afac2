package analytics

import (
	"github.com/xraph/treasury/trace"
	"github.com/xraph/treasury/types"
)

// AmountReport describes the amount distribution of a trace slice.
type AmountReport struct {
	Count   int          `json:"total_count"`
	Total   types.Amount `json:"total"`
	Min     types.Amount `json:"min"`
	Max     types.Amount `json:"max"`
	Average float64      `json:"average"`
	// Distribution counts traces per exact amount (decimal string).
	Distribution       map[string]int `json:"amount_distribution"`
	StatusDistribution map[string]int `json:"status_distribution"`
}

// Amounts computes the amount report of traces.
func Amounts(traces []*trace.Trace) AmountReport {
	report := AmountReport{
		Distribution:       make(map[string]int),
		StatusDistribution: make(map[string]int),
	}

	for i, t := range traces {
		amount := t.Amount()
		if i == 0 || amount.LessThan(report.Min) {
			report.Min = amount
		}
		if i == 0 || report.Max.LessThan(amount) {
			report.Max = amount
		}
		if sum, overflow := report.Total.Add(amount); !overflow {
			report.Total = sum
		}
		report.Count++
		report.Distribution[amount.String()]++
		report.StatusDistribution[statusKey(t)]++
	}

	if report.Count > 0 {
		report.Average = report.Total.Float64() / float64(report.Count)
	}
	return report
}
