package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/textile-backoffice/roll-inventory/internal/domain"
	"github.com/textile-backoffice/roll-inventory/pkg/cloudevents"
	"github.com/textile-backoffice/roll-inventory/pkg/outbox"
)

type state struct {
	rolls       map[string]*domain.Roll
	rollNumbers map[string]string
	barcodes    map[string]string
	batches     map[string]*domain.Batch
	costs       map[string]*domain.LandedCostEntry

	suppliers map[string]*domain.Supplier
	gsms      map[string]*domain.GSM
	qualities map[string]*domain.Quality
	products  map[string]*domain.Product
	skus      map[string]*domain.SKU

	outbox      map[string]*outbox.OutboxEvent
	outboxOrder []string
}

func newState() *state {
	return &state{
		rolls:       make(map[string]*domain.Roll),
		rollNumbers: make(map[string]string),
		barcodes:    make(map[string]string),
		batches:     make(map[string]*domain.Batch),
		costs:       make(map[string]*domain.LandedCostEntry),
		suppliers:   make(map[string]*domain.Supplier),
		gsms:        make(map[string]*domain.GSM),
		qualities:   make(map[string]*domain.Quality),
		products:    make(map[string]*domain.Product),
		skus:        make(map[string]*domain.SKU),
		outbox:      make(map[string]*outbox.OutboxEvent),
	}
}

func cloneMap[V any](m map[string]V) map[string]V {
	c := make(map[string]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// clone copies the indexes, not the values; values are replaced, never edited
func (s *state) clone() *state {
	return &state{
		rolls:       cloneMap(s.rolls),
		rollNumbers: cloneMap(s.rollNumbers),
		barcodes:    cloneMap(s.barcodes),
		batches:     cloneMap(s.batches),
		costs:       cloneMap(s.costs),
		suppliers:   cloneMap(s.suppliers),
		gsms:        cloneMap(s.gsms),
		qualities:   cloneMap(s.qualities),
		products:    cloneMap(s.products),
		skus:        cloneMap(s.skus),
		outbox:      cloneMap(s.outbox),
		outboxOrder: append([]string(nil), s.outboxOrder...),
	}
}

// Store is an in-process roll store. A transaction holds the store lock for
// its whole duration and works on a staged copy that replaces the committed
// state only when the transaction function succeeds.
type Store struct {
	mu      sync.RWMutex
	state   *state
	factory *cloudevents.EventFactory

	// failWrites makes every write fail; guarded by mu
	failWrites error
}

// NewStore creates an empty store. A nil factory uses the default event source.
func NewStore(factory *cloudevents.EventFactory) *Store {
	return &Store{state: newState(), factory: factory}
}

type txKey struct{}

type txState struct {
	store *Store
	state *state
}

func (s *Store) txFrom(ctx context.Context) (*txState, bool) {
	t, ok := ctx.Value(txKey{}).(*txState)
	if !ok || t.store != s {
		return nil, false
	}
	return t, true
}

// WithinTransaction runs fn atomically. A ctx already inside a transaction of
// this store joins it.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := s.txFrom(ctx); ok {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &txState{store: s, state: s.state.clone()}
	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		return err
	}
	s.state = t.state
	return nil
}

// FailWrites makes every following write return err wrapped as a transient
// failure. Pass nil to restore normal behaviour. Used by tests.
func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = err
}

func (s *Store) writeErr() error {
	if s.failWrites != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransient, s.failWrites)
	}
	return nil
}

func (s *Store) read(ctx context.Context, fn func(st *state) error) error {
	if t, ok := s.txFrom(ctx); ok {
		return fn(t.state)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.state)
}

// write stages fn's changes and commits them only if fn succeeds
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	if t, ok := s.txFrom(ctx); ok {
		if err := s.writeErr(); err != nil {
			return err
		}
		return fn(t.state)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr(); err != nil {
		return err
	}
	staged := s.state.clone()
	if err := fn(staged); err != nil {
		return err
	}
	s.state = staged
	return nil
}

func (st *state) appendOutbox(events []*outbox.OutboxEvent) {
	for _, e := range events {
		st.outbox[e.ID] = copyOutbox(e)
		st.outboxOrder = append(st.outboxOrder, e.ID)
	}
}
