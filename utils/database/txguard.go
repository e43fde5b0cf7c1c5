package database

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
)

// MutationClass separates the two kinds of repository mutations that are
// serialized independently of each other.
type MutationClass int

const (
	CreateClass MutationClass = iota
	DeleteClass
)

func (c MutationClass) String() string {
	switch c {
	case CreateClass:
		return "create"
	case DeleteClass:
		return "delete"
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// TransactionGuard serializes mutations against one repository per mutation
// class. Acquiring a class waits for the current holder of that class only;
// a create-class and a delete-class acquisition proceed in parallel. Each
// slot is a one-buffered channel used as a semaphore.
type TransactionGuard struct {
	db    *sqlx.DB
	slots [2]chan struct{}
}

// NewTransactionGuard builds a guard over the given database handle.
func NewTransactionGuard(db *sqlx.DB) *TransactionGuard {
	g := &TransactionGuard{db: db}
	for i := range g.slots {
		g.slots[i] = make(chan struct{}, 1)
	}
	return g
}

// Acquire blocks until no other mutation of the same class is in flight,
// then opens a storage transaction. If ambient is non-nil an enclosing
// caller already owns a transaction on this connection; the guard reuses it
// and leaves its fate to that owner.
func (g *TransactionGuard) Acquire(class MutationClass, ambient *sqlx.Tx) (*GuardedTx, error) {
	g.slots[class] <- struct{}{}

	if ambient != nil {
		return &GuardedTx{Tx: ambient, guard: g, class: class, ambient: true}, nil
	}

	tx, err := g.db.Beginx()
	if err != nil {
		<-g.slots[class]
		return nil, fmt.Errorf("failed to begin %s-class transaction: %w", class, err)
	}
	return &GuardedTx{Tx: tx, guard: g, class: class}, nil
}

// GuardedTx is one held guard slot wrapping a storage transaction.
type GuardedTx struct {
	Tx        *sqlx.Tx
	guard     *TransactionGuard
	class     MutationClass
	ambient   bool
	committed bool
	released  bool
}

// Commit commits the underlying transaction and releases the guard slot.
// Repeated calls after the first are no-ops. For an ambient transaction only
// the slot is released; committing is the ambient owner's responsibility.
func (t *GuardedTx) Commit() error {
	if t.committed {
		return nil
	}
	t.committed = true

	if !t.ambient {
		if err := t.Tx.Commit(); err != nil {
			t.release()
			return fmt.Errorf("failed to commit %s-class transaction: %w", t.class, err)
		}
	}
	t.release()
	return nil
}

// Close releases the guard slot, rolling back a guard-owned transaction that
// was never committed. Safe to defer alongside Commit.
func (t *GuardedTx) Close() {
	if !t.committed && !t.ambient {
		if err := t.Tx.Rollback(); err != nil {
			log.Printf("Failed to roll back %s-class transaction: %v", t.class, err)
		}
		t.committed = true
	}
	t.release()
}

// release unblocks the next waiter of the same class. Runs at most once per
// guard acquisition.
func (t *GuardedTx) release() {
	if t.released {
		return
	}
	t.released = true
	<-t.guard.slots[t.class]
}
