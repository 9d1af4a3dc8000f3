package service

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"rider-order-sync/internal/logger"
	"rider-order-sync/internal/model"
)

type ProfileBackend interface {
	RiderProfile(ctx context.Context, riderID string) (*model.Rider, error)
}

// ProfileService caches the rider's profile and keeps its balance current.
type ProfileService struct {
	backend ProfileBackend
	log     logger.Logger
	riderID string

	mu    sync.RWMutex
	rider *model.Rider
}

func NewProfileService(backend ProfileBackend, log logger.Logger, session model.Session) *ProfileService {
	return &ProfileService{backend: backend, log: log, riderID: session.RiderID}
}

// Load fetches the profile. On failure the cached profile is kept.
func (p *ProfileService) Load(ctx context.Context) (model.Rider, error) {
	r, err := p.backend.RiderProfile(ctx, p.riderID)
	if err != nil {
		p.log.Warnf(ctx, "fetching rider profile: %v", err)
		return model.Rider{}, err
	}

	p.mu.Lock()
	p.rider = r
	p.mu.Unlock()
	return *r, nil
}

func (p *ProfileService) Current() (model.Rider, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.rider == nil {
		return model.Rider{}, false
	}
	return *p.rider, true
}

// ApplyBalance records a balance pushed for riderID. Balances for other
// riders are ignored.
func (p *ProfileService) ApplyBalance(riderID string, balance decimal.Decimal) bool {
	if riderID != p.riderID {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rider == nil {
		p.rider = &model.Rider{ID: riderID}
	}
	p.rider.RemainingBalance = balance
	return true
}
