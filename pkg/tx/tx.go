package tx

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNestedTransaction is the panic value raised when a participant is asked
// to join a sub-transaction. Nested transactions are not supported.
var ErrNestedTransaction = errors.New("tx: nested transactions are not supported")

// Transaction identifies the unit of work a coordinator drives participants through.
type Transaction interface {
	ID() string
	// Nested reports whether this is a sub-transaction of another one.
	Nested() bool
}

// Participant is the contract a coordinator uses during two-phase commit.
type Participant interface {
	// SortKey orders participants within one commit. Unique per instance.
	SortKey() string

	Begin(ctx context.Context, txn Transaction) error
	Vote(ctx context.Context, txn Transaction) error
	Finish(ctx context.Context, txn Transaction) error
	Abort(ctx context.Context, txn Transaction)

	BeginSub(txn Transaction)
	CommitSub(txn Transaction)
	AbortSub(txn Transaction)

	BeforeCompletion(txn Transaction)
	AfterCompletion(txn Transaction)
}

// Txn is a plain Transaction with a random identifier.
type Txn struct {
	id     string
	parent *Txn
}

// New returns a top-level transaction.
func New() *Txn {
	return &Txn{id: uuid.NewString()}
}

// Sub returns a transaction nested in t.
func (t *Txn) Sub() *Txn {
	return &Txn{id: uuid.NewString(), parent: t}
}

func (t *Txn) ID() string {
	return t.id
}

func (t *Txn) Nested() bool {
	return t.parent != nil
}

// Parent returns the enclosing transaction, or nil.
func (t *Txn) Parent() *Txn {
	return t.parent
}
