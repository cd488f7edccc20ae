package service

import (
	"context"
	"fmt"
	"time"

	"identity-recon/internal/contact/models"
	"identity-recon/internal/contact/store"
)

// Finder is the read surface the resolver needs.
type Finder interface {
	Find(ctx context.Context, filter models.Filter) ([]*models.Contact, error)
}

// Store is the transaction-scoped persistence surface reconciliation runs against.
type Store interface {
	Finder
	Create(ctx context.Context, nc models.NewContact) (*models.Contact, error)
	UpdateLinks(ctx context.Context, ids []int64, precedence models.LinkPrecedence, linkedID *int64) (int, error)
	LockKeys(ctx context.Context, keys []string) error
}

// Reader serves queries that run outside a reconciliation transaction.
type Reader interface {
	Finder
	FindByID(ctx context.Context, id int64) (*models.Contact, error)
	List(ctx context.Context) ([]*models.Contact, error)
}

// StoreTx provides the atomic boundary for one reconciliation.
// Implementations wrap a database transaction or, in-memory, a staged copy.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(store Store) error) error
}

// KeyLocker serializes reconciliations across processes on the given keys.
type KeyLocker interface {
	Acquire(ctx context.Context, keys []string) (release func(context.Context) error, err error)
}

// defaultTxTimeout is the maximum duration of a reconciliation transaction.
const defaultTxTimeout = 5 * time.Second

// InMemoryTx runs reconciliations against an in-memory store, one at a time.
type InMemoryTx struct {
	store   *store.InMemory
	timeout time.Duration
}

// NewInMemoryTx wraps s. A zero timeout uses the default.
func NewInMemoryTx(s *store.InMemory, timeout time.Duration) *InMemoryTx {
	return &InMemoryTx{store: s, timeout: timeout}
}

func (t *InMemoryTx) RunInTx(ctx context.Context, fn func(store Store) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return t.store.Transact(ctx, func(staged *store.InMemory) error {
		return fn(staged)
	})
}
