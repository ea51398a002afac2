package analytics

import (
	"fmt"
	"math"

	"github.com/xraph/treasury/trace"
)

// Anomaly thresholds.
const (
	anomalyZ           = 2.0
	rareStatusRatio    = 0.10
	rareOperationRatio = 0.05
)

// Anomaly flags one trace.
type Anomaly struct {
	TraceID string  `json:"trace_id"`
	Seq     uint64  `json:"seq"`
	Value   float64 `json:"value"`
	ZScore  float64 `json:"z_score,omitempty"`
	Reason  string  `json:"reason"`
}

// AnomalyReport lists outliers in a trace slice.
type AnomalyReport struct {
	AmountAnomalies  []Anomaly `json:"amount_anomalies"`
	TimeAnomalies    []Anomaly `json:"time_anomalies"`
	StatusAnomalies  []Anomaly `json:"status_anomalies"`
	PatternAnomalies []Anomaly `json:"pattern_anomalies"`
	AmountMean       float64   `json:"amount_mean"`
	AmountStdDev     float64   `json:"amount_std_dev"`
}

// Anomalies flags:
//   - amounts more than 2σ from the mean
//   - inter-arrival gaps more than 2σ from the mean gap (the later trace of
//     the gap is flagged)
//   - every trace whose status makes up less than 10% of the slice
//   - every trace whose operation makes up less than 5% of the slice
func Anomalies(traces []*trace.Trace) AnomalyReport {
	report := AnomalyReport{
		AmountAnomalies:  []Anomaly{},
		TimeAnomalies:    []Anomaly{},
		StatusAnomalies:  []Anomaly{},
		PatternAnomalies: []Anomaly{},
	}
	if len(traces) == 0 {
		return report
	}

	amounts := amountsOf(traces)
	m, sd := mean(amounts), stddev(amounts)
	report.AmountMean, report.AmountStdDev = m, sd
	for i, x := range amounts {
		if math.Abs(x-m) > anomalyZ*sd {
			report.AmountAnomalies = append(report.AmountAnomalies, anomalyOf(traces[i], x, zscore(x, m, sd),
				fmt.Sprintf("amount %.0f deviates from mean %.2f", x, m)))
		}
	}

	sorted := chronological(traces)
	g := gaps(sorted)
	gm, gsd := mean(g), stddev(g)
	for i, x := range g {
		if math.Abs(x-gm) > anomalyZ*gsd {
			report.TimeAnomalies = append(report.TimeAnomalies, anomalyOf(sorted[i+1], x, zscore(x, gm, gsd),
				fmt.Sprintf("gap of %.0f seconds deviates from mean %.2f", x, gm)))
		}
	}

	n := len(traces)
	statusCounts := make(map[string]int)
	opCounts := make(map[string]int)
	for _, t := range traces {
		statusCounts[statusKey(t)]++
		opCounts[operationKey(t)]++
	}
	for _, t := range traces {
		if r := ratio(statusCounts[statusKey(t)], n); r < rareStatusRatio {
			report.StatusAnomalies = append(report.StatusAnomalies, anomalyOf(t, r, 0,
				fmt.Sprintf("status %s is rare (%.1f%%)", statusKey(t), r*100)))
		}
		if r := ratio(opCounts[operationKey(t)], n); r < rareOperationRatio {
			report.PatternAnomalies = append(report.PatternAnomalies, anomalyOf(t, r, 0,
				fmt.Sprintf("operation %s is rare (%.1f%%)", operationKey(t), r*100)))
		}
	}

	return report
}

func anomalyOf(t *trace.Trace, value, z float64, reason string) Anomaly {
	return Anomaly{TraceID: t.ID, Seq: t.Seq, Value: value, ZScore: z, Reason: reason}
}
