package query_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/treasury/query"
	"github.com/xraph/treasury/trace"
	"github.com/xraph/treasury/types"
)

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func mk(traceID string, op trace.Operation, status trace.Status, amount uint64, at time.Time, recipient string) *trace.Trace {
	return &trace.Trace{
		Entity: types.Entity{CreatedAt: at, UpdatedAt: at},
		ID:     traceID,
		Owner:  "alice",
		Calls: []trace.Call{{
			Method:    op,
			Status:    status,
			Amount:    types.NewAmount(amount),
			Recipient: recipient,
			Inputs:    []trace.IOData{{DataType: trace.DataAmount, Value: types.NewAmount(amount).String()}},
		}},
	}
}

func fixture() []*trace.Trace {
	return []*trace.Trace{
		mk("t1", trace.OpStack, trace.StatusCompleted, 300, base, ""),
		mk("t2", trace.OpTransfer, trace.StatusCompleted, 50, base.Add(time.Hour), "bob"),
		mk("t3", trace.OpTransfer, trace.StatusFailed, 70, base.Add(2*time.Hour), "carol"),
		mk("t4", trace.OpUnstack, trace.StatusCompleted, 100, base.Add(24*time.Hour), ""),
		mk("t5", trace.OpStack, trace.StatusPending, 300, base.Add(48*time.Hour), ""),
	}
}

func ids(traces []*trace.Trace) []string {
	out := make([]string, len(traces))
	for i, t := range traces {
		out[i] = t.ID
	}
	return out
}

func amountPtr(n uint64) *types.Amount {
	a := types.NewAmount(n)
	return &a
}

func TestFilter(t *testing.T) {
	traces := fixture()

	tests := []struct {
		name   string
		filter query.Filter
		want   []string
	}{
		{"empty matches all", query.Filter{}, []string{"t1", "t2", "t3", "t4", "t5"}},
		{"operation", query.Filter{Operations: []trace.Operation{trace.OpStack}}, []string{"t1", "t5"}},
		{"statuses", query.Filter{Statuses: []trace.Status{trace.StatusFailed, trace.StatusPending}}, []string{"t3", "t5"}},
		{"time range inclusive", query.Filter{Since: base.Add(time.Hour), Until: base.Add(24 * time.Hour)}, []string{"t2", "t3", "t4"}},
		{"amount range", query.Filter{MinAmount: amountPtr(70), MaxAmount: amountPtr(100)}, []string{"t3", "t4"}},
		{"recipients", query.Filter{Recipients: []string{"carol", "zed"}}, []string{"t3"}},
		{"conjunction", query.Filter{Operations: []trace.Operation{trace.OpTransfer}, Statuses: []trace.Status{trace.StatusCompleted}}, []string{"t2"}},
		{"predicate", query.Filter{Where: []query.Predicate{func(t *trace.Trace) bool { return t.ID == "t4" }}}, []string{"t4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := query.Apply(traces, tt.filter)
			assert.Equal(t, tt.want, ids(got))
			assert.Equal(t, len(tt.want), query.Count(traces, tt.filter))
		})
	}
}

func TestFilterUnparseableAmountIsZero(t *testing.T) {
	legacy := &trace.Trace{ID: "legacy", Calls: []trace.Call{{
		Inputs: []trace.IOData{{DataType: trace.DataAmount, Value: "not-a-number"}},
	}}}
	got := query.Apply([]*trace.Trace{legacy}, query.Filter{MaxAmount: amountPtr(0)})
	assert.Len(t, got, 1)
}

func TestSortStable(t *testing.T) {
	traces := fixture()

	asc := query.Sort(traces, query.SortAmount, false)
	assert.Equal(t, []string{"t2", "t3", "t4", "t1", "t5"}, ids(asc))

	desc := query.Sort(traces, query.SortAmount, true)
	assert.Equal(t, []string{"t1", "t5", "t4", "t3", "t2"}, ids(desc), "ties keep input order")

	byStatus := query.Sort(traces, query.SortStatus, false)
	assert.Equal(t, []string{"t1", "t2", "t4", "t3", "t5"}, ids(byStatus))

	byTime := query.Sort(traces, query.ParseSortField("bogus"), true)
	assert.Equal(t, []string{"t5", "t4", "t3", "t2", "t1"}, ids(byTime))

	assert.Equal(t, "t1", traces[0].ID, "input not modified")
}

func TestPaginate(t *testing.T) {
	traces := fixture()

	assert.Equal(t, []string{"t2", "t3"}, ids(query.Paginate(traces, 1, 2)))
	assert.Equal(t, []string{"t4", "t5"}, ids(query.Paginate(traces, 3, 10)))
	assert.Equal(t, []string{"t1", "t2", "t3", "t4", "t5"}, ids(query.Paginate(traces, 0, 0)))
	assert.Empty(t, query.Paginate(traces, 5, 1))
	assert.Empty(t, query.Paginate(nil, 0, 1))
	assert.Equal(t, []string{"t2", "t3", "t4", "t5"}, ids(query.Paginate(traces, 1, math.MaxInt)))
	assert.Equal(t, []string{"t5"}, ids(query.Paginate(traces, 4, math.MaxInt-3)))
}

func TestGroupBy(t *testing.T) {
	traces := append(fixture(), &trace.Trace{ID: "t6", Entity: types.Entity{CreatedAt: base}})

	byOp := query.GroupBy(traces, query.GroupOperation)
	assert.Equal(t, []string{"t1", "t5"}, ids(byOp["stack"]))
	assert.Equal(t, []string{"t6"}, ids(byOp[query.Unknown]))

	byStatus := query.GroupBy(traces, query.GroupStatus)
	assert.Len(t, byStatus["Completed"], 3)

	byDay := query.GroupBy(traces, query.GroupDay)
	assert.Equal(t, []string{"2024-03-01", "2024-03-02", "2024-03-03"}, query.Keys(byDay))
	assert.Len(t, byDay["2024-03-01"], 4)

	byHour := query.GroupBy(traces, query.GroupHour)
	assert.Contains(t, byHour, "2024-03-01-11")

	byMonth := query.GroupBy(traces, query.GroupMonth)
	assert.Equal(t, []string{"2024-03"}, query.Keys(byMonth))

	byWeek := query.GroupBy(traces, query.GroupWeek)
	assert.Equal(t, []string{"2024-W09"}, query.Keys(byWeek))
}

func TestStatistics(t *testing.T) {
	s := query.Statistics(fixture())
	assert.Equal(t, 5, s.Count)
	assert.Equal(t, "820", s.TotalAmount.String())
	assert.Equal(t, "450", s.CompletedAmount.String())
	assert.Equal(t, 3, s.Completed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Pending)

	byOp := query.StatisticsByOperation(fixture())
	require.Contains(t, byOp, "transfer")
	assert.Equal(t, 2, byOp["transfer"].Count)
	assert.Equal(t, "50", byOp["transfer"].CompletedAmount.String())

	empty := query.Statistics(nil)
	assert.Zero(t, empty.Count)
	assert.True(t, empty.TotalAmount.IsZero())
}

func TestWithErrors(t *testing.T) {
	traces := fixture()
	traces[0].Metadata = "error: something"
	assert.Equal(t, []string{"t1", "t3"}, ids(query.WithErrors(traces)))
}

func TestInAmountRanges(t *testing.T) {
	got := query.InAmountRanges(fixture(),
		query.AmountRange{Min: types.NewAmount(0), Max: types.NewAmount(60)},
		query.AmountRange{Min: types.NewAmount(250), Max: types.NewAmount(300)},
	)
	assert.Equal(t, []string{"t1", "t2", "t5"}, ids(got))
	assert.Empty(t, query.InAmountRanges(fixture()))
}
