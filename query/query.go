// Package query filters, sorts, groups and pages trace slices.
//
// Every function is pure: inputs are never modified and results are new
// slices sharing the same *trace.Trace pointers.
package query

import (
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/xraph/treasury/internal/calendar"
	"github.com/xraph/treasury/trace"
	"github.com/xraph/treasury/types"
)

// Predicate is a caller-supplied filter. It must be pure.
type Predicate func(t *trace.Trace) bool

// Filter is a conjunction of optional criteria. The zero Filter matches
// every trace.
type Filter struct {
	Operations []trace.Operation
	Statuses   []trace.Status
	// Since and Until bound CreatedAt inclusively; zero means unbounded.
	Since time.Time
	Until time.Time
	// MinAmount and MaxAmount bound the trace amount inclusively.
	MinAmount *types.Amount
	MaxAmount *types.Amount
	// Recipients matches traces naming at least one of them.
	Recipients []string
	Where      []Predicate
}

// Matches reports whether t satisfies every criterion of f.
func (f Filter) Matches(t *trace.Trace) bool {
	if len(f.Operations) > 0 && !slices.Contains(f.Operations, t.Operation()) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, t.Status()) {
		return false
	}
	if !f.Since.IsZero() && t.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && t.CreatedAt.After(f.Until) {
		return false
	}
	if f.MinAmount != nil || f.MaxAmount != nil {
		amount := t.Amount()
		if f.MinAmount != nil && amount.LessThan(*f.MinAmount) {
			return false
		}
		if f.MaxAmount != nil && f.MaxAmount.LessThan(amount) {
			return false
		}
	}
	if len(f.Recipients) > 0 && !anyOf(t.Recipients(), f.Recipients) {
		return false
	}
	for _, p := range f.Where {
		if !p(t) {
			return false
		}
	}
	return true
}

func anyOf(have, want []string) bool {
	for _, h := range have {
		if slices.Contains(want, h) {
			return true
		}
	}
	return false
}

// Apply returns the traces matching f, in input order.
func Apply(traces []*trace.Trace, f Filter) []*trace.Trace {
	out := make([]*trace.Trace, 0, len(traces))
	for _, t := range traces {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// Where returns the traces satisfying p, in input order.
func Where(traces []*trace.Trace, p Predicate) []*trace.Trace {
	return Apply(traces, Filter{Where: []Predicate{p}})
}

// Count returns how many traces match f.
func Count(traces []*trace.Trace, f Filter) int {
	n := 0
	for _, t := range traces {
		if f.Matches(t) {
			n++
		}
	}
	return n
}

// ──────────────────────────────────────────────────
// Sorting and paging
// ──────────────────────────────────────────────────

// SortField names the key Sort orders by.
type SortField string

const (
	SortAmount SortField = "amount"
	SortTime   SortField = "time"
	SortStatus SortField = "status"
)

// ParseSortField maps a name to a SortField. Unknown names sort by time.
func ParseSortField(s string) SortField {
	switch f := SortField(strings.ToLower(s)); f {
	case SortAmount, SortStatus:
		return f
	default:
		return SortTime
	}
}

// Sort returns a stably sorted copy of traces. Ties keep their input order
// in both directions.
func Sort(traces []*trace.Trace, field SortField, descending bool) []*trace.Trace {
	out := slices.Clone(traces)

	var cmp func(a, b *trace.Trace) int
	switch field {
	case SortAmount:
		cmp = func(a, b *trace.Trace) int { return a.Amount().Cmp(b.Amount()) }
	case SortStatus:
		cmp = func(a, b *trace.Trace) int { return strings.Compare(string(a.Status()), string(b.Status())) }
	default:
		cmp = func(a, b *trace.Trace) int { return a.CreatedAt.Compare(b.CreatedAt) }
	}
	if descending {
		asc := cmp
		cmp = func(a, b *trace.Trace) int { return asc(b, a) }
	}

	slices.SortStableFunc(out, cmp)
	return out
}

// Paginate returns traces[offset:offset+limit]. An offset past the end
// yields an empty slice; a limit <= 0 means no limit.
func Paginate(traces []*trace.Trace, offset, limit int) []*trace.Trace {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(traces) {
		return []*trace.Trace{}
	}
	end := len(traces)
	if limit > 0 && limit < end-offset {
		end = offset + limit
	}
	return slices.Clone(traces[offset:end])
}

// ──────────────────────────────────────────────────
// Grouping
// ──────────────────────────────────────────────────

// GroupKey selects how GroupBy partitions traces.
type GroupKey string

const (
	GroupOperation GroupKey = "operation"
	GroupStatus    GroupKey = "status"
	GroupHour      GroupKey = GroupKey(calendar.Hour)
	GroupDay       GroupKey = GroupKey(calendar.Day)
	GroupWeek      GroupKey = GroupKey(calendar.Week)
	GroupMonth     GroupKey = GroupKey(calendar.Month)
)

// Unknown is the group of traces without an operation or status.
const Unknown = "unknown"

// GroupBy partitions traces, preserving input order inside each group.
// Time keys bucket CreatedAt; see calendar.Period.Key for the formats.
func GroupBy(traces []*trace.Trace, key GroupKey) map[string][]*trace.Trace {
	groups := make(map[string][]*trace.Trace)
	for _, t := range traces {
		k := groupKey(t, key)
		groups[k] = append(groups[k], t)
	}
	return groups
}

// Keys returns the keys of groups in ascending order.
func Keys(groups map[string][]*trace.Trace) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func groupKey(t *trace.Trace, key GroupKey) string {
	switch key {
	case GroupOperation:
		return orUnknown(string(t.Operation()))
	case GroupStatus:
		return orUnknown(string(t.Status()))
	default:
		period, ok := calendar.ParsePeriod(string(key))
		if !ok {
			period = calendar.Day
		}
		return period.Key(t.CreatedAt.Unix())
	}
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}
