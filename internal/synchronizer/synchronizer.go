// Package synchronizer keeps one rider's orders consistent while full
// refreshes, push events and local status changes arrive in any order.
package synchronizer

import (
	"errors"
	"sync"

	"rider-order-sync/internal/model"
)

var (
	// ErrInvalidUpdate is returned for updates that do not name an order id.
	ErrInvalidUpdate = errors.New("invalid update: missing order id")
	// ErrUnknownOrder is returned by ApplyLocalStatusChange for ids not in the collection.
	ErrUnknownOrder = errors.New("order not in collection")
)

// Synchronizer owns the canonical in-memory order collection. Every
// mutation holds the lock for its whole duration, so calls from fetch
// completions, push handlers and user actions never interleave.
type Synchronizer struct {
	mu     sync.Mutex
	orders map[string]*model.Order
	// ids keeps iteration order; it always holds exactly the keys of orders.
	ids []string

	subs   map[int]chan struct{}
	nextID int
}

func New() *Synchronizer {
	return &Synchronizer{
		orders: make(map[string]*model.Order),
		subs:   make(map[int]chan struct{}),
	}
}

// ReplaceAll sets the collection to exactly orders. Ids held before and
// missing from orders are dropped. If any record lacks an id nothing is
// applied.
func (s *Synchronizer) ReplaceAll(orders []model.Order) error {
	for _, o := range orders {
		if o.ID == "" {
			return ErrInvalidUpdate
		}
	}

	next := make(map[string]*model.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		rec := o
		if _, dup := next[o.ID]; !dup {
			ids = append(ids, o.ID)
		}
		next[o.ID] = &rec
	}

	s.mu.Lock()
	s.orders = next
	s.ids = ids
	s.notifyLocked()
	s.mu.Unlock()
	return nil
}

// Upsert inserts a new record built from p, or merges the fields p carries
// into the existing record. It reports whether a record was inserted.
func (s *Synchronizer) Upsert(p model.OrderPatch) (bool, error) {
	if p.ID == "" {
		return false, ErrInvalidUpdate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.orders[p.ID]
	if !ok {
		rec = &model.Order{}
		s.orders[p.ID] = rec
		s.ids = append(s.ids, p.ID)
	}
	p.Apply(rec)
	s.notifyLocked()
	return !ok, nil
}

// UpdateExisting merges p into the record with the same id and reports
// whether one was held. Unknown ids are left out of the collection.
func (s *Synchronizer) UpdateExisting(p model.OrderPatch) (bool, error) {
	if p.ID == "" {
		return false, ErrInvalidUpdate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.orders[p.ID]
	if !ok {
		return false, nil
	}
	p.Apply(rec)
	s.notifyLocked()
	return true, nil
}

// Remove drops the record with id. Absent ids are ignored.
func (s *Synchronizer) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return
	}
	delete(s.orders, id)
	for i, v := range s.ids {
		if v == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			break
		}
	}
	s.notifyLocked()
}

// ApplyLocalStatusChange records a status the rider just submitted, before
// the backend confirms it. A later Upsert or ReplaceAll carrying the
// server's value overwrites it.
func (s *Synchronizer) ApplyLocalStatusChange(id string, status model.Status, feedback *string) error {
	if id == "" {
		return ErrInvalidUpdate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.orders[id]
	if !ok {
		return ErrUnknownOrder
	}
	model.StatusPatch(id, status, feedback).Apply(rec)
	s.notifyLocked()
	return nil
}

// Get returns a copy of the record with id.
func (s *Synchronizer) Get(id string) (model.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.orders[id]
	if !ok {
		return model.Order{}, false
	}
	return *rec, true
}

func (s *Synchronizer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// View returns copies of the records matching f, in collection order.
func (s *Synchronizer) View(f Filter) []model.Order {
	m := f.matcher()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Order, 0, len(s.ids))
	for _, id := range s.ids {
		rec := s.orders[id]
		if m.match(rec) {
			out = append(out, *rec)
		}
	}
	return out
}

// Subscribe returns a channel that receives a value after the collection
// changes. Notifications coalesce: a slow reader sees one pending signal,
// not one per mutation. The returned func unsubscribes.
func (s *Synchronizer) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Synchronizer) notifyLocked() {
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
