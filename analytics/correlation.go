package analytics

import (
	"fmt"

	"github.com/xraph/treasury/internal/calendar"
	"github.com/xraph/treasury/trace"
	"github.com/xraph/treasury/types"
)

// StatusCorrelation is the average amount and time of the traces with one
// status. Only traces with a positive amount contribute.
type StatusCorrelation struct {
	Count         int     `json:"count"`
	AverageAmount float64 `json:"average_amount"`
	AverageTime   float64 `json:"average_time"`
}

// OperationPattern summarizes one operation.
type OperationPattern struct {
	TotalCount    int          `json:"total_count"`
	SuccessCount  int          `json:"success_count"`
	TotalAmount   types.Amount `json:"total_amount"`
	AverageAmount float64      `json:"average_amount"`
	// TimeDistribution counts traces per hour of day ("00".."23").
	TimeDistribution map[string]int `json:"time_distribution"`
}

// CorrelationReport relates amounts to time, status and operation.
type CorrelationReport struct {
	// TimeAmount is the Pearson coefficient of created_at against amount.
	TimeAmount  float64                      `json:"time_amount"`
	ByStatus    map[string]StatusCorrelation `json:"by_status"`
	ByOperation map[string]OperationPattern  `json:"by_operation"`
}

// Correlation computes the correlation report of traces.
func Correlation(traces []*trace.Trace) CorrelationReport {
	report := CorrelationReport{
		ByStatus:    make(map[string]StatusCorrelation),
		ByOperation: make(map[string]OperationPattern),
	}

	times := make([]float64, len(traces))
	amounts := make([]float64, len(traces))

	type acc struct {
		n              int
		amount, moment float64
	}
	byStatus := make(map[string]*acc)

	for i, t := range traces {
		amount := amountOf(t)
		sec := t.CreatedAt.Unix()
		times[i] = float64(sec)
		amounts[i] = amount

		if amount > 0 {
			a := byStatus[statusKey(t)]
			if a == nil {
				a = &acc{}
				byStatus[statusKey(t)] = a
			}
			a.n++
			a.amount += amount
			a.moment += float64(sec)
		}

		op := operationKey(t)
		p, ok := report.ByOperation[op]
		if !ok {
			p.TimeDistribution = make(map[string]int)
		}
		p.TotalCount++
		if succeeded(t) {
			p.SuccessCount++
		}
		if sum, overflow := p.TotalAmount.Add(t.Amount()); !overflow {
			p.TotalAmount = sum
		}
		p.TimeDistribution[fmt.Sprintf("%02d", calendar.FromUnix(sec).Hour)]++
		report.ByOperation[op] = p
	}

	for op, p := range report.ByOperation {
		p.AverageAmount = p.TotalAmount.Float64() / float64(p.TotalCount)
		report.ByOperation[op] = p
	}
	for status, a := range byStatus {
		report.ByStatus[status] = StatusCorrelation{
			Count:         a.n,
			AverageAmount: a.amount / float64(a.n),
			AverageTime:   a.moment / float64(a.n),
		}
	}

	report.TimeAmount = pearson(times, amounts)
	return report
}
