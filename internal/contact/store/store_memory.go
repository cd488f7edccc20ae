package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"identity-recon/internal/contact/models"
	"identity-recon/pkg/platform/sentinel"
)

// InMemory is a process-local contact store. Transact serializes callers and
// applies their writes atomically, so a failed callback leaves no trace.
type InMemory struct {
	txMu sync.Mutex // held for the whole of a Transact call

	mu       sync.RWMutex
	contacts map[int64]*models.Contact
	nextID   int64
	lastTime time.Time
	clock    func() time.Time
}

// Option configures an InMemory store.
type Option func(*InMemory)

// WithClock sets the clock used for CreatedAt/UpdatedAt.
func WithClock(clock func() time.Time) Option {
	return func(s *InMemory) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory(opts ...Option) *InMemory {
	s := &InMemory{
		contacts: make(map[int64]*models.Contact),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transact runs fn against a staged copy of the store and commits the copy
// only when fn returns nil.
func (s *InMemory) Transact(ctx context.Context, fn func(staged *InMemory) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	staged := s.snapshot()
	if err := fn(staged); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts = staged.contacts
	s.nextID = staged.nextID
	s.lastTime = staged.lastTime
	return nil
}

func (s *InMemory) snapshot() *InMemory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := &InMemory{
		contacts: make(map[int64]*models.Contact, len(s.contacts)),
		nextID:   s.nextID,
		lastTime: s.lastTime,
		clock:    s.clock,
	}
	for id, c := range s.contacts {
		cp.contacts[id] = c.Clone()
	}
	return cp
}

// Find returns contacts matching filter, ordered by creation.
func (s *InMemory) Find(ctx context.Context, filter models.Filter) ([]*models.Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Contact
	for _, c := range s.contacts {
		if filter == nil || filter.Match(c) {
			out = append(out, c.Clone())
		}
	}
	models.SortByCreation(out)
	return out, nil
}

// FindByID returns one contact or sentinel.ErrNotFound.
func (s *InMemory) FindByID(ctx context.Context, id int64) (*models.Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contacts[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

// List returns every contact ordered by id.
func (s *InMemory) List(ctx context.Context) ([]*models.Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Create inserts a contact, assigning the next id and a strictly increasing CreatedAt.
func (s *InMemory) Create(ctx context.Context, nc models.NewContact) (*models.Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.tick()
	s.nextID++
	c := (&models.Contact{
		ID:             s.nextID,
		Email:          nc.Email,
		PhoneNumber:    nc.PhoneNumber,
		LinkPrecedence: nc.LinkPrecedence,
		LinkedID:       nc.LinkedID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}).Clone()
	s.contacts[c.ID] = c
	return c.Clone(), nil
}

// UpdateLinks sets precedence and link on every existing id and returns how many changed.
func (s *InMemory) UpdateLinks(ctx context.Context, ids []int64, precedence models.LinkPrecedence, linkedID *int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.tick()
	count := 0
	for _, id := range ids {
		c, ok := s.contacts[id]
		if !ok {
			continue
		}
		c.LinkPrecedence = precedence
		c.LinkedID = nil
		if linkedID != nil {
			l := *linkedID
			c.LinkedID = &l
		}
		c.UpdatedAt = now
		count++
	}
	return count, nil
}

// LockKeys is a no-op: Transact already excludes every other writer.
func (s *InMemory) LockKeys(ctx context.Context, _ []string) error {
	return ctx.Err()
}

// Health always succeeds for the in-memory store.
func (s *InMemory) Health(context.Context) error {
	return nil
}

// tick returns the clock time, nudged forward so timestamps never repeat.
// Callers hold s.mu.
func (s *InMemory) tick() time.Time {
	now := s.clock()
	if !now.After(s.lastTime) {
		now = s.lastTime.Add(time.Nanosecond)
	}
	s.lastTime = now
	return now
}
