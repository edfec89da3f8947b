// Package txn provides the document transaction context that file engine
// operations participate in.
//
// A Tx collects two kinds of participants:
//   - pending filesystem operations (Op), undone in reverse registration
//     order exactly once if the transaction aborts, discarded on commit
//   - hooks registered by the metadata and document stores so their own rows
//     commit or roll back together with the file operations
//
// The engine never looks a transaction up from global state: callers pass the
// *Tx explicitly into every engine call.
package txn

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/marmos91/dittofiles/internal/logger"
	"go.uber.org/multierr"
)

// ErrDone is returned when Commit or Abort is called on a finished transaction.
var ErrDone = errors.New("transaction already finished")

// State is the lifecycle state of a transaction.
type State int

const (
	StateActive State = iota
	StateCommitted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Tx is a document transaction context.
//
// Thread Safety: all methods are safe for concurrent use, although the engine
// assumes a single logical writer per transaction.
type Tx struct {
	id string

	mu          sync.Mutex
	state       State
	ops         []Op
	undone      int
	commitHooks []func(context.Context) error
	afterCommit []func(context.Context)
	abortHooks  []func(context.Context)
}

// Begin starts a new active transaction.
func Begin() *Tx {
	return &Tx{id: uuid.NewString()}
}

// Run executes fn inside a fresh transaction, committing when fn returns nil
// and aborting otherwise.
func Run(ctx context.Context, fn func(tx *Tx) error) error {
	tx := Begin()
	if err := fn(tx); err != nil {
		if abortErr := tx.Abort(ctx); abortErr != nil {
			return multierr.Append(err, abortErr)
		}
		return err
	}
	return tx.Commit(ctx)
}

// ID returns the transaction identifier.
func (t *Tx) ID() string {
	return t.id
}

// State returns the current lifecycle state.
func (t *Tx) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// RegisterRollback records a pending operation to undo on abort.
//
// Registering on a finished transaction is a programming error and panics.
func (t *Tx) RegisterRollback(op Op) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateActive {
		panic(fmt.Sprintf("txn %s: register %s on %s transaction", t.id, op, t.state))
	}
	t.ops = append(t.ops, op)
	logger.Debug("txn %s: registered rollback for %s", t.id, op)
}

// Pending returns a copy of the registered operations in registration order.
func (t *Tx) Pending() []Op {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Op, len(t.ops))
	copy(out, t.ops)
	return out
}

// RolledBack returns how many pending operations Abort undid.
func (t *Tx) RolledBack() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.undone
}

// OnCommit registers a hook run, in registration order, when the transaction
// commits. A failing hook turns the commit into an abort.
func (t *Tx) OnCommit(fn func(context.Context) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.commitHooks = append(t.commitHooks, fn)
}

// AfterCommit registers a best-effort hook run once the commit succeeded.
// Deferred byte removal uses it: failures there are logged, never surfaced.
func (t *Tx) AfterCommit(fn func(context.Context)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.afterCommit = append(t.afterCommit, fn)
}

// OnAbort registers a hook run, in reverse registration order, after the
// pending operations are undone.
func (t *Tx) OnAbort(fn func(context.Context)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.abortHooks = append(t.abortHooks, fn)
}

// Commit runs the commit hooks, discards the pending operations and runs the
// after-commit hooks.
//
// If a commit hook fails the transaction is aborted instead: pending
// operations are undone and the returned error carries both the hook failure
// and any undo failure.
func (t *Tx) Commit(ctx context.Context) error {
	t.mu.Lock()
	if t.state != StateActive {
		t.mu.Unlock()
		return fmt.Errorf("commit %s: %w", t.id, ErrDone)
	}
	hooks := t.commitHooks
	t.mu.Unlock()

	for _, hook := range hooks {
		if err := hook(ctx); err != nil {
			logger.Warn("txn %s: commit hook failed, aborting: %v", t.id, err)
			return multierr.Append(fmt.Errorf("commit %s: %w", t.id, err), t.Abort(ctx))
		}
	}

	t.mu.Lock()
	discarded := len(t.ops)
	t.state = StateCommitted
	t.ops = nil
	after := t.afterCommit
	t.mu.Unlock()

	for _, fn := range after {
		fn(ctx)
	}

	logger.Debug("txn %s: committed (%d pending operations discarded)", t.id, discarded)
	return nil
}

// Abort undoes every pending operation in reverse registration order and then
// runs the abort hooks. Undo continues past individual failures; all failures
// are returned together.
func (t *Tx) Abort(ctx context.Context) error {
	t.mu.Lock()
	if t.state != StateActive {
		t.mu.Unlock()
		return fmt.Errorf("abort %s: %w", t.id, ErrDone)
	}
	t.state = StateAborted
	ops := t.ops
	hooks := t.abortHooks
	t.ops = nil
	t.undone = len(ops)
	t.mu.Unlock()

	var errs error
	for i := len(ops) - 1; i >= 0; i-- {
		if err := revert(ops[i]); err != nil {
			logger.Error("txn %s: %v", t.id, err)
			errs = multierr.Append(errs, err)
		}
	}
	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i](ctx)
	}

	logger.Info("txn %s: aborted, %d operations rolled back", t.id, len(ops))
	return errs
}
