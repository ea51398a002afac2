package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/treasury/analytics"
	"github.com/xraph/treasury/trace"
	"github.com/xraph/treasury/types"
)

// base is a Friday.
var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	op        trace.Operation
	status    trace.Status
	amount    uint64
	at        time.Time
	recipient string
}

func build(fixtures ...fixture) []*trace.Trace {
	out := make([]*trace.Trace, len(fixtures))
	for i, s := range fixtures {
		op := s.op
		if op == "" {
			op = trace.OpStack
		}
		status := s.status
		if status == "" {
			status = trace.StatusCompleted
		}
		at := s.at
		if at.IsZero() {
			at = base.Add(time.Duration(i) * time.Hour)
		}
		inputs := []trace.IOData{{DataType: trace.DataAmount, Value: types.NewAmount(s.amount).String()}}
		if s.recipient != "" {
			inputs = append(inputs, trace.IOData{DataType: trace.DataRecipient, Value: s.recipient})
		}
		out[i] = &trace.Trace{
			Entity: types.Entity{CreatedAt: at, UpdatedAt: at},
			Seq:    uint64(i + 1),
			ID:     "t" + string(rune('a'+i)),
			Owner:  "alice",
			Calls: []trace.Call{{
				Method:    op,
				Status:    status,
				Amount:    types.NewAmount(s.amount),
				Recipient: s.recipient,
				Inputs:    inputs,
			}},
		}
	}
	return out
}

func repeat(n int, s fixture) []fixture {
	out := make([]fixture, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func TestEmptyInputYieldsZeroReports(t *testing.T) {
	trend := analytics.Trend(nil, analytics.PeriodDay)
	assert.Empty(t, trend.Buckets)
	assert.Zero(t, trend.GrowthRate)
	assert.Zero(t, trend.Volatility)

	corr := analytics.Correlation(nil)
	assert.Zero(t, corr.TimeAmount)
	assert.Empty(t, corr.ByStatus)

	anomalies := analytics.Anomalies(nil)
	assert.NotNil(t, anomalies.AmountAnomalies)
	assert.Empty(t, anomalies.AmountAnomalies)
	assert.Empty(t, anomalies.TimeAnomalies)
	assert.Empty(t, anomalies.StatusAnomalies)
	assert.Empty(t, anomalies.PatternAnomalies)

	pred := analytics.Predict(nil, 3)
	assert.Len(t, pred.Forecasts, 5)
	assert.Zero(t, pred.Forecasts[0].Amount)

	risk := analytics.Risk(nil)
	assert.Zero(t, risk.Score)
	assert.Equal(t, analytics.RiskLow, risk.Level)

	amounts := analytics.Amounts(nil)
	assert.Zero(t, amounts.Count)
	assert.Zero(t, amounts.Average)

	recipients := analytics.Recipients(nil, 0)
	assert.Zero(t, recipients.Unique)
	assert.Empty(t, analytics.TimePatterns(nil).PeakHours)
}

func TestTrend(t *testing.T) {
	day2 := base.Add(24 * time.Hour)
	traces := build(
		fixture{amount: 100, at: base},
		fixture{amount: 100, status: trace.StatusFailed, at: base.Add(time.Hour)},
		fixture{amount: 300, at: day2},
	)

	report := analytics.Trend(traces, analytics.PeriodDay)
	require.Len(t, report.Buckets, 2)

	first := report.Buckets[0]
	assert.Equal(t, "2024-03-01", first.Key)
	assert.Equal(t, "200", first.AmountSum.String())
	assert.Equal(t, 2, first.Count)
	assert.InDelta(t, 50.0, first.SuccessRate, 1e-9)
	assert.InDelta(t, 100.0, first.AverageAmount, 1e-9)

	assert.Equal(t, "2024-03-02", report.Buckets[1].Key)
	assert.InDelta(t, 50.0, report.GrowthRate, 1e-9)
	assert.InDelta(t, 50.0, report.Volatility, 1e-9)

	single := analytics.Trend(traces, analytics.PeriodMonth)
	require.Len(t, single.Buckets, 1)
	assert.Zero(t, single.GrowthRate)
	assert.Zero(t, single.Volatility)
}

func TestTrendGrowthFromZeroIsZero(t *testing.T) {
	traces := build(
		fixture{amount: 0, at: base},
		fixture{amount: 50, at: base.Add(48 * time.Hour)},
	)
	assert.Zero(t, analytics.Trend(traces, analytics.PeriodDay).GrowthRate)
}

func TestCorrelationLinear(t *testing.T) {
	var fixtures []fixture
	for i := 0; i < 10; i++ {
		fixtures = append(fixtures, fixture{amount: uint64(100 + 10*i), at: base.Add(time.Duration(i) * time.Minute)})
	}
	report := analytics.Correlation(build(fixtures...))
	assert.InDelta(t, 1.0, report.TimeAmount, 1e-9)

	pattern := report.ByOperation["stack"]
	assert.Equal(t, 10, pattern.TotalCount)
	assert.Equal(t, 10, pattern.SuccessCount)
	assert.Equal(t, "1450", pattern.TotalAmount.String())
	assert.InDelta(t, 145.0, pattern.AverageAmount, 1e-9)
	assert.Equal(t, 10, pattern.TimeDistribution["10"])
}

func TestCorrelationConstant(t *testing.T) {
	report := analytics.Correlation(build(repeat(5, fixture{amount: 42})...))
	assert.Zero(t, report.TimeAmount)
}

func TestCorrelationByStatusSkipsZeroAmounts(t *testing.T) {
	traces := build(
		fixture{amount: 10, at: base},
		fixture{amount: 30, at: base.Add(2 * time.Second)},
		fixture{amount: 0, at: base.Add(100 * time.Second)},
	)
	status := analytics.Correlation(traces).ByStatus["Completed"]
	assert.Equal(t, 2, status.Count)
	assert.InDelta(t, 20.0, status.AverageAmount, 1e-9)
	assert.InDelta(t, float64(base.Unix()+1), status.AverageTime, 1e-9)
}

func TestAnomaliesIdenticalAmounts(t *testing.T) {
	report := analytics.Anomalies(build(repeat(8, fixture{amount: 10})...))
	assert.Empty(t, report.AmountAnomalies)
	assert.Empty(t, report.TimeAnomalies)
}

func TestAnomaliesSingleOutlier(t *testing.T) {
	fixtures := append(repeat(9, fixture{amount: 10}), fixture{amount: 1000})
	traces := build(fixtures...)

	report := analytics.Anomalies(traces)
	assert.InDelta(t, 109.0, report.AmountMean, 1e-9)
	require.Len(t, report.AmountAnomalies, 1)
	assert.Equal(t, traces[9].ID, report.AmountAnomalies[0].TraceID)
	assert.Greater(t, report.AmountAnomalies[0].ZScore, 2.0)
}

func TestAnomaliesTimeGap(t *testing.T) {
	var fixtures []fixture
	for i := 0; i < 10; i++ {
		fixtures = append(fixtures, fixture{amount: 10, at: base.Add(time.Duration(i) * time.Minute)})
	}
	fixtures = append(fixtures, fixture{amount: 10, at: base.Add(10 * 24 * time.Hour)})
	traces := build(fixtures...)

	report := analytics.Anomalies(traces)
	require.Len(t, report.TimeAnomalies, 1)
	assert.Equal(t, traces[10].ID, report.TimeAnomalies[0].TraceID, "the later trace of the gap is flagged")
}

func TestAnomaliesRareStatusAndOperation(t *testing.T) {
	fixtures := repeat(20, fixture{amount: 10})
	fixtures[0] = fixture{amount: 10, status: trace.StatusFailed, op: trace.OpClaim}
	report := analytics.Anomalies(build(fixtures...))

	require.Len(t, report.StatusAnomalies, 1)
	assert.Equal(t, 0.05, report.StatusAnomalies[0].Value)
	// 1/20 = 5% is not below the 5% operation threshold.
	assert.Empty(t, report.PatternAnomalies)

	fixtures = append(fixtures, repeat(5, fixture{amount: 10})...)
	report = analytics.Anomalies(build(fixtures...))
	require.Len(t, report.PatternAnomalies, 1)
}

func TestPredict(t *testing.T) {
	traces := build(
		fixture{amount: 10},
		fixture{amount: 20, status: trace.StatusFailed},
		fixture{amount: 30},
		fixture{amount: 40},
	)
	report := analytics.Predict(traces, 2)

	assert.Equal(t, []float64{15, 25, 35}, report.MovingAverages[analytics.MetricAmount])
	assert.Equal(t, []float64{1, 1, 1}, report.MovingAverages[analytics.MetricCount])
	assert.Equal(t, []float64{50, 50, 100}, report.MovingAverages[analytics.MetricSuccessRate])

	require.Len(t, report.Forecasts, 5)
	assert.InDelta(t, 38.5, report.Forecasts[0].Amount, 1e-9)
	assert.InDelta(t, 52.5, report.Forecasts[4].Amount, 1e-9)
	assert.InDelta(t, 1.1, report.Forecasts[0].Count, 1e-9)
	assert.InDelta(t, 100.0, report.Forecasts[2].SuccessRate, 1e-9)

	ci := report.Confidence[analytics.MetricAmount]
	assert.InDelta(t, 16.0030, ci.Margin, 1e-3)
	assert.InDelta(t, 35-ci.Margin, ci.Lower, 1e-9)
	assert.Zero(t, report.Confidence[analytics.MetricCount].Margin)

	assert.Equal(t, 4, report.Seasonal["daily"]["Friday"])
	assert.Equal(t, 4, report.Seasonal["monthly"]["March"])
	assert.Equal(t, 1, report.Seasonal["hourly"]["13"])
}

func TestPredictWindowNotFilled(t *testing.T) {
	report := analytics.Predict(build(fixture{amount: 5}), 3)
	assert.Empty(t, report.MovingAverages[analytics.MetricAmount])
	assert.Zero(t, report.Forecasts[0].Amount)
}

func TestRiskFailureRate(t *testing.T) {
	fixtures := repeat(10, fixture{amount: 10})
	fixtures[3].status = trace.StatusFailed
	fixtures[7].status = trace.StatusFailed

	report := analytics.Risk(build(fixtures...))
	assert.InDelta(t, 0.25, report.StatusRisk, 1e-9)
	assert.Zero(t, report.AmountRisk)
	assert.Zero(t, report.FrequencyRisk)
	assert.Zero(t, report.PatternRisk)
	assert.InDelta(t, 0.0625, report.Score, 1e-9)
	assert.Equal(t, analytics.RiskLow, report.Level)

	require.Len(t, report.Factors, 1)
	assert.Equal(t, "High failure rate: 20.0%", report.Factors[0].Description)
	assert.InDelta(t, 0.2, report.Factors[0].Severity, 1e-9)
	assert.Empty(t, report.SuspiciousPatterns)
}

func TestRiskAmountAndPattern(t *testing.T) {
	fixtures := repeat(25, fixture{amount: 10})
	fixtures[24] = fixture{amount: 100000, op: trace.OpClaim}

	report := analytics.Risk(build(fixtures...))
	assert.InDelta(t, 0.25, report.AmountRisk, 1e-9)
	assert.InDelta(t, 0.25, report.PatternRisk, 1e-9)

	var kinds []string
	for _, f := range report.Factors {
		kinds = append(kinds, f.Type)
	}
	assert.Contains(t, kinds, analytics.FactorAmount)
	assert.Contains(t, kinds, analytics.FactorPattern)
	// z = sqrt(24) > 3 for the outlier and the rare operation has severity 0.96.
	assert.Len(t, report.SuspiciousPatterns, 2)
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, analytics.RiskHigh, analytics.LevelFor(0.8))
	assert.Equal(t, analytics.RiskMedium, analytics.LevelFor(0.5))
	assert.Equal(t, analytics.RiskMedium, analytics.LevelFor(0.79))
	assert.Equal(t, analytics.RiskLow, analytics.LevelFor(0.49))
}

func TestAmounts(t *testing.T) {
	report := analytics.Amounts(build(
		fixture{amount: 10},
		fixture{amount: 30, status: trace.StatusFailed},
		fixture{amount: 10},
	))
	assert.Equal(t, 3, report.Count)
	assert.Equal(t, "50", report.Total.String())
	assert.Equal(t, "10", report.Min.String())
	assert.Equal(t, "30", report.Max.String())
	assert.InDelta(t, 50.0/3, report.Average, 1e-9)
	assert.Equal(t, 2, report.Distribution["10"])
	assert.Equal(t, 1, report.StatusDistribution["Failed"])
}

func TestTimePatterns(t *testing.T) {
	report := analytics.TimePatterns(build(
		fixture{amount: 1, at: base},
		fixture{amount: 1, at: base.Add(time.Minute)},
		fixture{amount: 1, at: base.Add(time.Hour)},
		fixture{amount: 1, at: base.Add(24 * time.Hour)},
	))
	assert.Equal(t, 3, report.Hourly["10"])
	assert.Equal(t, 3, report.Daily["2024-03-01"])
	assert.Equal(t, 3, report.Weekly["Friday"])
	assert.Equal(t, 1, report.Weekly["Saturday"])
	assert.Equal(t, 4, report.Monthly["2024-03"])
	assert.Equal(t, []string{"10", "11"}, report.PeakHours)
	assert.Equal(t, []string{"2024-03-01", "2024-03-02"}, report.PeakDays)
}

func TestRecipients(t *testing.T) {
	traces := build(
		fixture{op: trace.OpTransfer, amount: 50, recipient: "bob"},
		fixture{op: trace.OpTransfer, amount: 70, recipient: "carol"},
		fixture{op: trace.OpTransfer, amount: 20, recipient: "bob"},
		fixture{amount: 5},
	)
	batch := &trace.Trace{ID: "batch", Calls: []trace.Call{{
		Method: trace.OpBatchTransfer,
		Amount: types.NewAmount(15),
		Inputs: []trace.IOData{
			{DataType: trace.DataAmount, Value: "15"},
			{DataType: trace.DataRecipient, Value: "dave"},
			{DataType: trace.DataAmount, Value: "5"},
			{DataType: trace.DataRecipient, Value: "carol"},
			{DataType: trace.DataAmount, Value: "10"},
		},
	}}}
	traces = append(traces, batch)

	report := analytics.Recipients(traces, 2)
	assert.Equal(t, 3, report.Unique)
	assert.Equal(t, 2, report.Counts["bob"])
	assert.Equal(t, "80", report.Amounts["carol"].String())
	assert.Equal(t, "5", report.Amounts["dave"].String())

	require.Len(t, report.Top, 2)
	assert.Equal(t, "carol", report.Top[0].Recipient)
	assert.Equal(t, "bob", report.Top[1].Recipient)
}

func TestRunner(t *testing.T) {
	runner := analytics.NewRunner(4)
	defer runner.Stop()

	traces := build(append(repeat(9, fixture{amount: 10}), fixture{amount: 1000})...)
	report, err := runner.Run(context.Background(), traces, analytics.Options{Period: analytics.PeriodHour, WindowSize: 3})
	require.NoError(t, err)

	assert.Equal(t, 10, report.Count)
	assert.Equal(t, 10, report.Statistics.Count)
	assert.Len(t, report.Trend.Buckets, 10)
	assert.Len(t, report.Anomalies.AmountAnomalies, 1)
	assert.Len(t, report.Prediction.MovingAverages[analytics.MetricAmount], 8)
	assert.Equal(t, "1090", report.Amounts.Total.String())
}
