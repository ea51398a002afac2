package analytics

import (
	"context"
	"runtime"

	"github.com/alitto/pond/v2"

	"github.com/xraph/treasury/query"
	"github.com/xraph/treasury/trace"
)

// Options parameterizes a full report.
type Options struct {
	Period        Period `json:"period"`
	WindowSize    int    `json:"window_size"`
	TopRecipients int    `json:"top_recipients"`
}

// Report bundles every analysis of one trace slice.
type Report struct {
	Count        int               `json:"count"`
	Statistics   query.Stats       `json:"statistics"`
	Trend        TrendReport       `json:"trend"`
	Correlation  CorrelationReport `json:"correlation"`
	Anomalies    AnomalyReport     `json:"anomalies"`
	Prediction   PredictionReport  `json:"prediction"`
	Risk         RiskReport        `json:"risk"`
	Amounts      AmountReport      `json:"amounts"`
	TimePatterns TimePatternReport `json:"time_patterns"`
	Recipients   RecipientReport   `json:"recipients"`
}

// Runner computes reports on a bounded worker pool. The analyses only read
// the shared slice, so they run concurrently.
type Runner struct {
	pool pond.Pool
}

// NewRunner returns a Runner with maxConcurrency workers
// (GOMAXPROCS when maxConcurrency < 1).
func NewRunner(maxConcurrency int) *Runner {
	if maxConcurrency < 1 {
		maxConcurrency = runtime.GOMAXPROCS(0)
	}
	return &Runner{pool: pond.NewPool(maxConcurrency)}
}

// Run computes every analysis of traces. It fails only when ctx is done or
// the runner is stopped.
func (r *Runner) Run(ctx context.Context, traces []*trace.Trace, opts Options) (*Report, error) {
	rep := &Report{Count: len(traces)}

	group := r.pool.NewGroupContext(ctx)
	group.Submit(
		func() { rep.Statistics = query.Statistics(traces) },
		func() { rep.Trend = Trend(traces, opts.Period) },
		func() { rep.Correlation = Correlation(traces) },
		func() { rep.Anomalies = Anomalies(traces) },
		func() { rep.Prediction = Predict(traces, opts.WindowSize) },
		func() { rep.Risk = Risk(traces) },
		func() { rep.Amounts = Amounts(traces) },
		func() { rep.TimePatterns = TimePatterns(traces) },
		func() { rep.Recipients = Recipients(traces, opts.TopRecipients) },
	)
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return rep, nil
}

// Stop waits for running analyses and releases the workers.
func (r *Runner) Stop() {
	r.pool.StopAndWait()
}
