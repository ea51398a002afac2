// Package analytics computes reports over trace slices.
//
// Every analysis is a pure function of its input: no state is kept between
// calls, empty input yields zero-valued reports, and divisions by zero yield
// 0. Amounts that cannot be parsed count as 0.
package analytics

import (
	"github.com/xraph/treasury/internal/calendar"
	"github.com/xraph/treasury/query"
	"github.com/xraph/treasury/trace"
	"github.com/xraph/treasury/types"
)

// Period is the bucket width of a trend.
type Period = calendar.Period

const (
	PeriodHour  = calendar.Hour
	PeriodDay   = calendar.Day
	PeriodWeek  = calendar.Week
	PeriodMonth = calendar.Month
)

// ParsePeriod maps a name to a Period, reporting false for unknown names.
func ParsePeriod(s string) (Period, bool) { return calendar.ParsePeriod(s) }

// TrendBucket aggregates the traces of one period.
type TrendBucket struct {
	Key           string       `json:"key"`
	AmountSum     types.Amount `json:"amount_sum"`
	Count         int          `json:"count"`
	SuccessCount  int          `json:"success_count"`
	SuccessRate   float64      `json:"success_rate"`
	AverageAmount float64      `json:"average_amount"`
}

// TrendReport is the per-period evolution of a trace slice.
type TrendReport struct {
	Period  Period        `json:"period"`
	Buckets []TrendBucket `json:"buckets"`
	// GrowthRate is the percent change from the first to the last bucket.
	GrowthRate float64 `json:"growth_rate"`
	// Volatility is the population standard deviation of bucket amounts.
	Volatility float64 `json:"volatility"`
}

// Trend buckets traces by period in key order. Growth and volatility need
// at least two buckets and are 0 otherwise.
func Trend(traces []*trace.Trace, period Period) TrendReport {
	if _, ok := calendar.ParsePeriod(string(period)); !ok {
		period = PeriodDay
	}
	groups := query.GroupBy(traces, query.GroupKey(period))

	report := TrendReport{Period: period, Buckets: make([]TrendBucket, 0, len(groups))}
	sums := make([]float64, 0, len(groups))
	for _, key := range query.Keys(groups) {
		group := groups[key]
		stats := query.Statistics(group)
		b := TrendBucket{
			Key:          key,
			AmountSum:    stats.TotalAmount,
			Count:        stats.Count,
			SuccessCount: stats.Completed,
			SuccessRate:  ratio(stats.Completed, stats.Count) * 100,
		}
		sum := stats.TotalAmount.Float64()
		if b.Count > 0 {
			b.AverageAmount = sum / float64(b.Count)
		}
		report.Buckets = append(report.Buckets, b)
		sums = append(sums, sum)
	}

	if len(sums) >= 2 {
		first, last := sums[0], sums[len(sums)-1]
		if first != 0 {
			report.GrowthRate = (last - first) / first * 100
		}
		report.Volatility = stddev(sums)
	}
	return report
}
