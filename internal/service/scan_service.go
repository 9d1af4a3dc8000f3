package service

import (
	"context"
	"strings"

	"rider-order-sync/internal/model"
	"rider-order-sync/internal/synchronizer"
)

type ScanBackend interface {
	ScanOrder(ctx context.Context, trackingID string) (*model.Order, error)
}

// ScanService resolves a scanned tracking label to an order and adds it to
// the rider's collection.
type ScanService struct {
	backend ScanBackend
	store   *synchronizer.Synchronizer
}

func NewScanService(backend ScanBackend, store *synchronizer.Synchronizer) *ScanService {
	return &ScanService{backend: backend, store: store}
}

func (s *ScanService) Scan(ctx context.Context, trackingID string) (*model.Order, error) {
	trackingID = strings.TrimSpace(trackingID)
	if trackingID == "" {
		return nil, synchronizer.ErrInvalidUpdate
	}

	o, err := s.backend.ScanOrder(ctx, trackingID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Upsert(model.PatchFromOrder(*o)); err != nil {
		return nil, err
	}
	return o, nil
}
