package audithook

// Action constants for audit events.
const (
	// Account actions
	ActionAccountOpened  = "account.opened"
	ActionAccountDeleted = "account.deleted"

	// Mutation actions
	ActionMutationApplied  = "mutation.applied"
	ActionMutationRejected = "mutation.rejected"

	// Transfer actions
	ActionTransferFailed    = "transfer.failed"
	ActionBatchRolledBack   = "batch.rolled_back"
	ActionTracePendingStale = "trace.pending_stale"
)

// Resource constants for audit events.
const (
	ResourceAccount = "account"
	ResourceTrace   = "trace"
	ResourceBatch   = "batch"
)

// Category constants for audit events.
const (
	CategoryAccount   = "account"
	CategoryLedger    = "ledger"
	CategoryTransfer  = "transfer"
	CategoryIntegrity = "integrity"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
