package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"

	"rider-order-sync/internal/dto"
	"rider-order-sync/internal/logger"
	"rider-order-sync/internal/metrics"
	"rider-order-sync/internal/model"
	"rider-order-sync/internal/push"
	"rider-order-sync/internal/synchronizer"
)

// OrderBackend is the part of the REST client the order service needs.
type OrderBackend interface {
	RiderOrders(ctx context.Context) ([]model.Order, error)
	UpdateOrder(ctx context.Context, id string, req dto.UpdateStatusRequest) (*model.Order, error)
}

// Business errors, mapped to HTTP codes by the controller.
var (
	ErrStatusRequired   = errors.New("status is required")
	ErrFeedbackRequired = errors.New("feedback is required for this status")
	ErrMissingPayload   = errors.New("push event without payload")
)

// OrderService connects the REST backend and the push channel to the
// synchronizer. It never holds the synchronizer across network calls.
type OrderService struct {
	backend OrderBackend
	store   *synchronizer.Synchronizer
	profile *ProfileService
	metrics *metrics.Registry
	log     logger.Logger
	session model.Session

	// seq numbers refreshes as they start; applied is the newest one whose
	// result reached the store.
	seq     *atomic.Uint64
	applyMu sync.Mutex
	applied uint64

	resync chan struct{}
}

func NewOrderService(backend OrderBackend, store *synchronizer.Synchronizer, profile *ProfileService, m *metrics.Registry, log logger.Logger, session model.Session) *OrderService {
	return &OrderService{
		backend: backend,
		store:   store,
		profile: profile,
		metrics: m,
		log:     log,
		session: session,
		seq:     atomic.NewUint64(0),
		resync:  make(chan struct{}, 1),
	}
}

func (s *OrderService) Session() model.Session {
	return s.session
}

// Refresh fetches the rider's full order set and replaces the collection.
// A failed fetch leaves the collection untouched. A fetch that completes
// after a newer one has been applied is dropped.
func (s *OrderService) Refresh(ctx context.Context) error {
	seq := s.seq.Inc()
	ctx = logger.With(ctx, logger.RiderIDKey, s.session.RiderID)

	start := time.Now()
	orders, err := s.backend.RiderOrders(ctx)
	s.metrics.RefreshLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.Refreshes.WithLabelValues("failed").Inc()
		s.log.Warnf(ctx, "refresh #%d failed, keeping %d orders: %v", seq, s.store.Len(), err)
		return err
	}

	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	if seq < s.applied {
		s.metrics.Refreshes.WithLabelValues("stale").Inc()
		s.log.Debugf(ctx, "refresh #%d dropped, #%d already applied", seq, s.applied)
		return nil
	}
	if err := s.store.ReplaceAll(orders); err != nil {
		s.metrics.Refreshes.WithLabelValues("failed").Inc()
		return fmt.Errorf("apply refresh: %w", err)
	}
	s.applied = seq
	s.metrics.Refreshes.WithLabelValues("applied").Inc()
	s.metrics.OrdersTracked.Set(float64(s.store.Len()))
	s.log.Infof(ctx, "refresh #%d applied: %d orders", seq, len(orders))
	return nil
}

// RequestResync asks the resync loop for a refresh. Requests made while
// one is pending collapse into it.
func (s *OrderService) RequestResync() {
	select {
	case s.resync <- struct{}{}:
	default:
	}
}

// RunResync serves RequestResync until ctx is done.
func (s *OrderService) RunResync(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.resync:
			if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.log.Warnf(ctx, "resync failed: %v", err)
			}
		}
	}
}

// SubmitStatus applies the rider's status change locally, then sends it to
// the backend. If the backend does not accept it the local value is left
// for a resync refresh to correct, and the error is returned.
func (s *OrderService) SubmitStatus(ctx context.Context, id string, status model.Status, feedback string) (*model.Order, error) {
	if id == "" {
		return nil, synchronizer.ErrInvalidUpdate
	}
	if status == "" {
		return nil, ErrStatusRequired
	}
	feedback = strings.TrimSpace(feedback)
	if status.RequiresFeedback() && feedback == "" {
		return nil, ErrFeedbackRequired
	}

	var fb *string
	if feedback != "" {
		fb = &feedback
	}
	if err := s.store.ApplyLocalStatusChange(id, status, fb); err != nil {
		// the backend decides whether an order we have not seen exists
		s.log.Debugf(ctx, "no local copy of %s to update optimistically: %v", id, err)
	}

	updated, err := s.backend.UpdateOrder(ctx, id, dto.UpdateStatusRequest{Status: status, Feedback: feedback})
	if err != nil {
		s.metrics.StatusUpdates.WithLabelValues("rejected").Inc()
		s.log.Warnf(ctx, "status %s for %s not accepted, resyncing: %v", status, id, err)
		s.RequestResync()
		return nil, err
	}
	s.metrics.StatusUpdates.WithLabelValues("accepted").Inc()

	if updated != nil && updated.ID != "" {
		if _, err := s.store.Upsert(model.PatchFromOrder(*updated)); err != nil {
			return nil, err
		}
	}
	if o, ok := s.store.Get(id); ok {
		return &o, nil
	}
	return updated, nil
}

// HandleEvent applies one push event. It is the push.Handler of every source.
func (s *OrderService) HandleEvent(ctx context.Context, ev push.Event) error {
	ctx = logger.With(ctx, logger.EventKey, string(ev.Kind))
	err := s.dispatch(ctx, ev)

	result := "applied"
	if err != nil {
		result = "rejected"
		s.log.Warnf(ctx, "push event rejected: %v", err)
	}
	s.metrics.PushEvents.WithLabelValues(string(ev.Kind), result).Inc()
	s.metrics.OrdersTracked.Set(float64(s.store.Len()))
	return err
}

func (s *OrderService) dispatch(ctx context.Context, ev push.Event) error {
	switch ev.Kind {
	case push.KindNewOrder:
		if ev.NewOrder == nil {
			return ErrMissingPayload
		}
		_, err := s.store.Upsert(model.PatchFromOrder(*ev.NewOrder))
		return err

	case push.KindOrderUpdated:
		if ev.OrderUpdated == nil {
			return ErrMissingPayload
		}
		found, err := s.store.UpdateExisting(model.StatusPatch(ev.OrderUpdated.OrderID, ev.OrderUpdated.Status, nil))
		if err != nil {
			return err
		}
		if !found {
			// only the status is known; the refresh brings the full record if it is ours
			s.log.Infof(ctx, "update for unseen order %s, requesting resync", ev.OrderUpdated.OrderID)
			s.RequestResync()
		}
		return nil

	case push.KindOrdersStatusChanged:
		if ev.StatusChanged == nil {
			return ErrMissingPayload
		}
		for _, o := range ev.StatusChanged.Orders {
			if o.ID == "" {
				return synchronizer.ErrInvalidUpdate
			}
		}
		for _, o := range ev.StatusChanged.Orders {
			if _, err := s.store.Upsert(model.PatchFromOrder(o)); err != nil {
				return err
			}
		}
		return nil

	case push.KindOrderDeleted:
		if ev.OrderDeleted == nil {
			return ErrMissingPayload
		}
		if ev.OrderDeleted.OrderID == "" {
			return synchronizer.ErrInvalidUpdate
		}
		s.store.Remove(ev.OrderDeleted.OrderID)
		return nil

	case push.KindRiderBalanceUpdated:
		if ev.Balance == nil {
			return ErrMissingPayload
		}
		if s.profile != nil {
			s.profile.ApplyBalance(ev.Balance.RiderID, ev.Balance.RemainingBalance)
		}
		return nil
	}
	return fmt.Errorf("%w: %q", push.ErrUnknownEvent, ev.Kind)
}

func (s *OrderService) View(f synchronizer.Filter) []model.Order {
	return s.store.View(f)
}

func (s *OrderService) Get(id string) (model.Order, bool) {
	return s.store.Get(id)
}

func (s *OrderService) Subscribe() (<-chan struct{}, func()) {
	return s.store.Subscribe()
}
