package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/treasury/account"
	"github.com/xraph/treasury/trace"
	"github.com/xraph/treasury/types"
)

// DefaultHookTimeout bounds how long a single hook may run.
const DefaultHookTimeout = 5 * time.Second

// Registry holds registered plugins with their hook interfaces cached by type.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit              []OnInit
	onShutdown          []OnShutdown
	onAccountOpened     []OnAccountOpened
	onAccountDeleted    []OnAccountDeleted
	onMutationApplied   []OnMutationApplied
	onMutationRejected  []OnMutationRejected
	onTransferFailed    []OnTransferFailed
	onBatchRolledBack   []OnBatchRolledBack
	onStalePendingTrace []OnStalePendingTrace
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout overrides DefaultHookTimeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

// Register adds a plugin. Names must be unique.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}
	r.plugins = append(r.plugins, p)

	var hooks []string
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
		hooks = append(hooks, "OnInit")
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
		hooks = append(hooks, "OnShutdown")
	}
	if v, ok := p.(OnAccountOpened); ok {
		r.onAccountOpened = append(r.onAccountOpened, v)
		hooks = append(hooks, "OnAccountOpened")
	}
	if v, ok := p.(OnAccountDeleted); ok {
		r.onAccountDeleted = append(r.onAccountDeleted, v)
		hooks = append(hooks, "OnAccountDeleted")
	}
	if v, ok := p.(OnMutationApplied); ok {
		r.onMutationApplied = append(r.onMutationApplied, v)
		hooks = append(hooks, "OnMutationApplied")
	}
	if v, ok := p.(OnMutationRejected); ok {
		r.onMutationRejected = append(r.onMutationRejected, v)
		hooks = append(hooks, "OnMutationRejected")
	}
	if v, ok := p.(OnTransferFailed); ok {
		r.onTransferFailed = append(r.onTransferFailed, v)
		hooks = append(hooks, "OnTransferFailed")
	}
	if v, ok := p.(OnBatchRolledBack); ok {
		r.onBatchRolledBack = append(r.onBatchRolledBack, v)
		hooks = append(hooks, "OnBatchRolledBack")
	}
	if v, ok := p.(OnStalePendingTrace); ok {
		r.onStalePendingTrace = append(r.onStalePendingTrace, v)
		hooks = append(hooks, "OnStalePendingTrace")
	}

	r.logger.Debug("plugin registered",
		"plugin", p.Name(),
		"hooks", hooks,
	)
	return nil
}

// Get returns a plugin by name, or nil.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins in registration order.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission
// ──────────────────────────────────────────────────

// emit calls fn for every hook in the snapshot taken under the read lock.
// Failures are logged and never returned: hooks cannot fail a mutation.
func emit[H Plugin](ctx context.Context, r *Registry, hook string, snapshot func() []H, fn func(H) error) {
	r.mu.RLock()
	hooks := snapshot()
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error { return fn(h) }); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", h.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit hooks.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	emit(ctx, r, "OnInit", func() []OnInit { return r.onInit }, func(h OnInit) error {
		return h.OnInit(ctx, engine)
	})
}

// EmitShutdown calls OnShutdown hooks.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", func() []OnShutdown { return r.onShutdown }, func(h OnShutdown) error {
		return h.OnShutdown(ctx)
	})
}

// EmitAccountOpened calls OnAccountOpened hooks.
func (r *Registry) EmitAccountOpened(ctx context.Context, a *account.Account) {
	emit(ctx, r, "OnAccountOpened", func() []OnAccountOpened { return r.onAccountOpened }, func(h OnAccountOpened) error {
		return h.OnAccountOpened(ctx, a)
	})
}

// EmitAccountDeleted calls OnAccountDeleted hooks.
func (r *Registry) EmitAccountDeleted(ctx context.Context, owner string) {
	emit(ctx, r, "OnAccountDeleted", func() []OnAccountDeleted { return r.onAccountDeleted }, func(h OnAccountDeleted) error {
		return h.OnAccountDeleted(ctx, owner)
	})
}

// EmitMutationApplied calls OnMutationApplied hooks.
func (r *Registry) EmitMutationApplied(ctx context.Context, a *account.Account, t *trace.Trace) {
	emit(ctx, r, "OnMutationApplied", func() []OnMutationApplied { return r.onMutationApplied }, func(h OnMutationApplied) error {
		return h.OnMutationApplied(ctx, a, t)
	})
}

// EmitMutationRejected calls OnMutationRejected hooks.
func (r *Registry) EmitMutationRejected(ctx context.Context, owner string, op trace.Operation, amount types.Amount, reason error) {
	emit(ctx, r, "OnMutationRejected", func() []OnMutationRejected { return r.onMutationRejected }, func(h OnMutationRejected) error {
		return h.OnMutationRejected(ctx, owner, op, amount, reason)
	})
}

// EmitTransferFailed calls OnTransferFailed hooks.
func (r *Registry) EmitTransferFailed(ctx context.Context, t *trace.Trace, cause error) {
	emit(ctx, r, "OnTransferFailed", func() []OnTransferFailed { return r.onTransferFailed }, func(h OnTransferFailed) error {
		return h.OnTransferFailed(ctx, t, cause)
	})
}

// EmitBatchRolledBack calls OnBatchRolledBack hooks.
func (r *Registry) EmitBatchRolledBack(ctx context.Context, owner, batchID string, traces []*trace.Trace, cause error) {
	emit(ctx, r, "OnBatchRolledBack", func() []OnBatchRolledBack { return r.onBatchRolledBack }, func(h OnBatchRolledBack) error {
		return h.OnBatchRolledBack(ctx, owner, batchID, traces, cause)
	})
}

// EmitStalePendingTrace calls OnStalePendingTrace hooks.
func (r *Registry) EmitStalePendingTrace(ctx context.Context, t *trace.Trace, age time.Duration) {
	emit(ctx, r, "OnStalePendingTrace", func() []OnStalePendingTrace { return r.onStalePendingTrace }, func(h OnStalePendingTrace) error {
		return h.OnStalePendingTrace(ctx, t, age)
	})
}

// callWithTimeout runs fn, giving up after the registry timeout or when ctx
// is done. A hook that times out keeps running in its goroutine.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
