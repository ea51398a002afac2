package analytics

import (
	"math"
	"slices"

	"github.com/xraph/treasury/trace"
)

// mean is the arithmetic mean, 0 for no values.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the population standard deviation, 0 for no values.
func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	var sq float64
	for _, x := range xs {
		d := x - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)))
}

// zscore returns (x-m)/sd, or 0 when sd is 0.
func zscore(x, m, sd float64) float64 {
	if sd == 0 {
		return 0
	}
	return (x - m) / sd
}

// pearson is the Pearson correlation coefficient of xs and ys, 0 when the
// denominator vanishes. Values are centered first so large unix timestamps
// keep their precision.
func pearson(xs, ys []float64) float64 {
	if len(xs) == 0 || len(xs) != len(ys) {
		return 0
	}
	mx, my := mean(xs), mean(ys)
	var sxy, sxx, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	den := math.Sqrt(sxx * syy)
	if den == 0 || math.IsNaN(den) {
		return 0
	}
	return sxy / den
}

// ratio returns part/whole, 0 when whole is 0.
func ratio(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
}

func amountOf(t *trace.Trace) float64 { return t.Amount().Float64() }

func amountsOf(traces []*trace.Trace) []float64 {
	out := make([]float64, len(traces))
	for i, t := range traces {
		out[i] = amountOf(t)
	}
	return out
}

func succeeded(t *trace.Trace) bool { return t.Status() == trace.StatusCompleted }

// chronological returns traces stably sorted by CreatedAt ascending.
func chronological(traces []*trace.Trace) []*trace.Trace {
	out := slices.Clone(traces)
	slices.SortStableFunc(out, func(a, b *trace.Trace) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

// gaps returns the seconds between consecutive traces of a chronological
// slice. gaps[i] ends at sorted[i+1].
func gaps(sorted []*trace.Trace) []float64 {
	if len(sorted) < 2 {
		return nil
	}
	out := make([]float64, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		out[i-1] = float64(sorted[i].CreatedAt.Unix() - sorted[i-1].CreatedAt.Unix())
	}
	return out
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func statusKey(t *trace.Trace) string {
	if s := t.Status(); s != "" {
		return string(s)
	}
	return "unknown"
}

func operationKey(t *trace.Trace) string {
	if op := t.Operation(); op != "" {
		return string(op)
	}
	return "unknown"
}
