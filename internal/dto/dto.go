// dto.go
package dto

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"rider-order-sync/internal/model"
)

// Envelope is the reply shape of every backend endpoint.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
	Token   string `json:"token,omitempty"`
}

// UpdateStatusRequest is the body of PUT /order/:id and of the agent's own
// status endpoint.
type UpdateStatusRequest struct {
	Status   model.Status `json:"status" binding:"required"`
	Feedback string       `json:"feedback"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ScanRequest struct {
	TrackingID string `json:"tracking_id" binding:"required"`
}

// PushMessage is the wire envelope of a push-channel message on every transport.
type PushMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// OrderUpdatedPayload is sent when one order's status changes.
type OrderUpdatedPayload struct {
	OrderID string       `json:"orderId"`
	Status  model.Status `json:"status"`
}

// OrdersStatusChangedPayload carries full records for a batch change.
type OrdersStatusChangedPayload struct {
	Orders []model.Order `json:"orders"`
}

type OrderDeletedPayload struct {
	OrderID string `json:"orderId"`
}

type RiderBalanceUpdatedPayload struct {
	RiderID          string          `json:"riderId"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

// OrderViewResponse is what the agent returns for list endpoints.
type OrderViewResponse struct {
	Count  int           `json:"count"`
	Orders []model.Order `json:"orders"`
}
