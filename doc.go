// Package treasury is an account ledger with a built-in audit trail.
//
// Every owner has one Account holding four non-negative balances: token,
// stack, credit and unclaimed. Each balance-changing operation goes through
// the Treasury engine, which validates it, persists the new account and
// appends exactly one Trace describing it. Traces are never edited after
// they reach a terminal status, so the trail can be queried and analyzed
// later without locking writers out.
//
// # Quick Start
//
//	s := memory.New()
//	t := treasury.New(s, treasury.WithLogger(slog.Default()))
//	if err := t.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer t.Stop()
//
//	_, _, err := t.AddTokenBalance(ctx, "alice", treasury.NewAmount(1000))
//	acct, tr, err := t.Stack(ctx, "alice", treasury.NewAmount(300))
//	// acct.TokenBalance == 700, acct.StackBalance == 300
//	// tr.Status() == trace.StatusCompleted
//
// # Operations
//
//	stack          token     -> stack
//	unstack        stack     -> token
//	add_credit               -> credit
//	use_credit     credit    ->
//	add_unclaimed            -> unclaimed
//	claim          unclaimed -> token
//	add_token                -> token
//	transfer       token     -> gateway
//	batch_transfer token     -> gateway (all or nothing)
//
// Rejected operations (zero amount, insufficient balance, bad input) write
// nothing. Transfers that fail at the gateway restore the balance and leave
// a Failed trace behind.
//
// # Querying
//
// QueryTraces filters, sorts and pages an owner's history with the query
// package. Analyze runs the analytics package over it: trends, correlation,
// anomalies, forecasts, risk, amounts, time patterns and recipients.
//
// # Stores
//
// Accounts and traces live in a store.Store. Backends ship for memory,
// SQLite, PostgreSQL, MongoDB and Redis.
package treasury
