package extension

import (
	"fmt"

	"github.com/asdf-format/asdf-go/errs"
)

// Pending is the handle Context.Defer returns for one registered resume
// callback; Done reports whether that callback has run. The document
// engine's materializer places a DeferredConverter's shell value, not a
// Pending, in the tree, so an application never sees a Pending in place
// of a partially initialized object.
type Pending struct {
	// Value is free for the caller that stashes the Pending to fill in;
	// Context.Defer leaves it nil.
	Value any
	done  bool
}

// Done reports whether this Pending's resume callback has already run.
func (p *Pending) Done() bool { return p.done }

// pendingQueue holds the deferred resume callbacks registered during one
// traversal, draining them in insertion order once the outer traversal
// completes — the explicit pending-queue realization of the two-phase
// generator protocol spec §4.G/§9 invites implementers to choose.
type pendingQueue struct {
	entries []*pendingEntry
}

type pendingEntry struct {
	pending *Pending
	resume  func() error
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{}
}

// add registers resume, returning the Pending sentinel the caller should
// stash wherever the shell object needs to be referenced before resume
// runs.
func (q *pendingQueue) add(resume func() error) *Pending {
	p := &Pending{}
	q.entries = append(q.entries, &pendingEntry{pending: p, resume: resume})

	return p
}

// Drain runs every registered resume callback in insertion order. Since
// a resume callback may itself call Context.Defer (spec §4.G step 6:
// "which may themselves spawn more pending work"), Drain also runs
// entries appended while it is draining. A callback is not retried: the
// first one that fails stops the drain, and its error is reported
// wrapped in errs.ErrUnresolvedReferenceCycle.
func (q *pendingQueue) Drain() error {
	for i := 0; i < len(q.entries); i++ {
		e := q.entries[i]
		if e.pending.done {
			continue
		}

		if err := e.resume(); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrUnresolvedReferenceCycle, err)
		}

		e.pending.done = true
	}

	for _, e := range q.entries {
		if !e.pending.done {
			return errs.ErrUnresolvedReferenceCycle
		}
	}

	return nil
}
