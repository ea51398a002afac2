package httpapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	treasury "github.com/xraph/treasury"
	"github.com/xraph/treasury/analytics"
	"github.com/xraph/treasury/query"
	"github.com/xraph/treasury/trace"
	"github.com/xraph/treasury/types"
)

type tracePage struct {
	Traces []*trace.Trace `json:"traces"`
	Total  int            `json:"total"`
}

// HandleTraces filters, sorts and pages the owner's traces.
//
// Query parameters: operation, status, recipient (repeatable or comma
// separated), since, until (RFC 3339), min_amount, max_amount, sort
// (time|amount|status), order (asc|desc), offset, limit.
func (s *Server) HandleTraces(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f, err := parseFilter(q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	offset, err := intParam(q, "offset")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := intParam(q, "limit")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	page, total, err := s.engine.QueryTraces(r.Context(), mux.Vars(r)["owner"], treasury.TraceQuery{
		Filter:     f,
		SortBy:     query.ParseSortField(q.Get("sort")),
		Descending: strings.EqualFold(q.Get("order"), "desc"),
		Offset:     offset,
		Limit:      limit,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if page == nil {
		page = []*trace.Trace{}
	}
	writeJSON(w, http.StatusOK, tracePage{Traces: page, Total: total})
}

// HandleGetTrace returns one of the owner's traces by id.
func (s *Server) HandleGetTrace(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tr, err := s.engine.GetTraceByID(r.Context(), vars["trace_id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if tr.Owner != vars["owner"] {
		s.fail(w, r, treasury.ErrTraceNotFound)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

// HandleAnalytics runs the full report over the owner's matching traces.
// Besides the trace filters it reads period (hour|day|week|month), window
// and top.
func (s *Server) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f, err := parseFilter(q)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var opts analytics.Options
	if p := q.Get("period"); p != "" {
		period, ok := analytics.ParsePeriod(p)
		if !ok {
			s.fail(w, r, treasury.ValidationError{Field: "period", Message: fmt.Sprintf("unknown period %q", p)})
			return
		}
		opts.Period = period
	}
	if opts.WindowSize, err = intParam(q, "window"); err != nil {
		s.fail(w, r, err)
		return
	}
	if opts.TopRecipients, err = intParam(q, "top"); err != nil {
		s.fail(w, r, err)
		return
	}

	report, err := s.engine.Analyze(r.Context(), mux.Vars(r)["owner"], f, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func parseFilter(q url.Values) (query.Filter, error) {
	var f query.Filter

	for _, op := range listParam(q, "operation") {
		f.Operations = append(f.Operations, trace.Operation(op))
	}
	for _, st := range listParam(q, "status") {
		f.Statuses = append(f.Statuses, trace.Status(st))
	}
	f.Recipients = listParam(q, "recipient")

	var err error
	if f.Since, err = timeParam(q, "since"); err != nil {
		return f, err
	}
	if f.Until, err = timeParam(q, "until"); err != nil {
		return f, err
	}
	if f.MinAmount, err = amountParam(q, "min_amount"); err != nil {
		return f, err
	}
	if f.MaxAmount, err = amountParam(q, "max_amount"); err != nil {
		return f, err
	}
	return f, nil
}

func listParam(q url.Values, name string) []string {
	var out []string
	for _, v := range q[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func intParam(q url.Values, name string) (int, error) {
	v := q.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, treasury.ValidationError{Field: name, Message: "must be a non-negative integer"}
	}
	return n, nil
}

func timeParam(q url.Values, name string) (time.Time, error) {
	v := q.Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, treasury.ValidationError{Field: name, Message: "must be an RFC 3339 timestamp"}
	}
	return ts, nil
}

func amountParam(q url.Values, name string) (*types.Amount, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	a, err := types.ParseAmount(v)
	if err != nil {
		return nil, treasury.ValidationError{Field: name, Message: "must be a decimal amount"}
	}
	return &a, nil
}
