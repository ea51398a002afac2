package analytics

import (
	"fmt"

	"github.com/xraph/treasury/internal/calendar"
	"github.com/xraph/treasury/trace"
)

// Forecast parameters. The forecast is a fixed growth multiplier applied to
// the last moving average, not a fitted model.
const (
	DefaultWindowSize = 7
	forecastPeriods   = 5
	forecastGrowth    = 0.10
	confidenceZ       = 1.96
)

// Metric names used as keys in PredictionReport.
const (
	MetricAmount      = "amount"
	MetricCount       = "count"
	MetricSuccessRate = "success_rate"
)

// Forecast is the projection for one future period (1-based).
type Forecast struct {
	Period      int     `json:"period"`
	Amount      float64 `json:"amount"`
	Count       float64 `json:"count"`
	SuccessRate float64 `json:"success_rate"`
}

// Interval is a normal-approximation confidence interval around the last
// moving average: Lower = last - Margin, Upper = last + Margin.
type Interval struct {
	Margin float64 `json:"margin"`
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
}

// PredictionReport holds moving averages, forecasts and seasonal counts.
type PredictionReport struct {
	WindowSize     int                  `json:"window_size"`
	MovingAverages map[string][]float64 `json:"moving_averages"`
	Forecasts      []Forecast           `json:"forecasts"`
	Confidence     map[string]Interval  `json:"confidence_intervals"`
	// Seasonal holds "hourly" (keys "00".."23"), "daily" (weekday names)
	// and "monthly" (month names) histograms.
	Seasonal map[string]map[string]int `json:"seasonal_patterns"`
}

// window is a fixed-size FIFO that reports its mean once full.
type window struct {
	size   int
	values []float64
}

func (w *window) push(v float64) (float64, bool) {
	w.values = append(w.values, v)
	if len(w.values) > w.size {
		w.values = w.values[1:]
	}
	if len(w.values) < w.size {
		return 0, false
	}
	return mean(w.values), true
}

// Predict slides windows of windowSize over the chronologically sorted
// traces, tracking amount, count (1 per trace) and success (100 or 0).
// Each full window appends its mean to the metric's moving-average series.
// A windowSize below 1 uses DefaultWindowSize.
func Predict(traces []*trace.Trace, windowSize int) PredictionReport {
	if windowSize < 1 {
		windowSize = DefaultWindowSize
	}

	metrics := []string{MetricAmount, MetricCount, MetricSuccessRate}
	windows := make(map[string]*window, len(metrics))
	report := PredictionReport{
		WindowSize:     windowSize,
		MovingAverages: make(map[string][]float64, len(metrics)),
		Confidence:     make(map[string]Interval, len(metrics)),
		Seasonal: map[string]map[string]int{
			"hourly":  {},
			"daily":   {},
			"monthly": {},
		},
	}
	for _, m := range metrics {
		windows[m] = &window{size: windowSize}
		report.MovingAverages[m] = []float64{}
	}

	for _, t := range chronological(traces) {
		success := 0.0
		if succeeded(t) {
			success = 100
		}
		values := map[string]float64{
			MetricAmount:      amountOf(t),
			MetricCount:       1,
			MetricSuccessRate: success,
		}
		for _, m := range metrics {
			if avg, full := windows[m].push(values[m]); full {
				report.MovingAverages[m] = append(report.MovingAverages[m], avg)
			}
		}

		d := calendar.FromUnix(t.CreatedAt.Unix())
		report.Seasonal["hourly"][fmt.Sprintf("%02d", d.Hour)]++
		report.Seasonal["daily"][d.WeekdayName()]++
		report.Seasonal["monthly"][d.MonthName()]++
	}

	last := make(map[string]float64, len(metrics))
	for _, m := range metrics {
		series := report.MovingAverages[m]
		if len(series) > 0 {
			last[m] = series[len(series)-1]
		}
		margin := confidenceZ * stddev(series)
		report.Confidence[m] = Interval{Margin: margin, Lower: last[m] - margin, Upper: last[m] + margin}
	}

	report.Forecasts = make([]Forecast, forecastPeriods)
	for i := 1; i <= forecastPeriods; i++ {
		growth := 1 + forecastGrowth*float64(i)
		report.Forecasts[i-1] = Forecast{
			Period:      i,
			Amount:      last[MetricAmount] * growth,
			Count:       last[MetricCount] * growth,
			SuccessRate: last[MetricSuccessRate],
		}
	}

	return report
}
