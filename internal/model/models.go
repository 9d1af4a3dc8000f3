// models.go
package model

import "github.com/shopspring/decimal"

// Status is the delivery state of an order. The set is open: values the
// backend sends that are not listed here are kept as-is.
type Status string

const (
	StatusPending       Status = "pending"
	StatusInProcess     Status = "inprocess"
	StatusHold          Status = "hold"
	StatusCanceled      Status = "canceled"
	StatusReturn        Status = "return"
	StatusDelivered     Status = "delivered"
	StatusComplete      Status = "complete"
	StatusReturnReceive Status = "Return_Receive"
)

var knownStatuses = map[Status]bool{
	StatusPending:       true,
	StatusInProcess:     true,
	StatusHold:          true,
	StatusCanceled:      true,
	StatusReturn:        true,
	StatusDelivered:     true,
	StatusComplete:      true,
	StatusReturnReceive: true,
}

// IsKnown reports whether s is one of the statuses the rider app knows about.
func (s Status) IsKnown() bool {
	return knownStatuses[s]
}

// RequiresFeedback reports whether a rider must explain this status change.
func (s Status) RequiresFeedback() bool {
	switch s {
	case StatusReturn, StatusHold, StatusCanceled:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}

// Order is a delivery task assigned to a rider. JSON names follow the
// delivery backend.
type Order struct {
	ID              string          `json:"_id"`
	TrackingID      string          `json:"tracking_id"`
	Status          Status          `json:"status"`
	CustomerName    string          `json:"cust_name"`
	CustomerPhone   string          `json:"cust_number"`
	CustomerAddress string          `json:"cust_address"`
	CustomerCity    string          `json:"cust_city"`
	CustomerTown    string          `json:"cust_town"`
	Amount          decimal.Decimal `json:"amount"`
	DeliveryCharges decimal.Decimal `json:"delivery_charges"`
	Feedback        string          `json:"feedback,omitempty"`
	AssignedDate    string          `json:"cutsomDate"`
	RiderID         string          `json:"rider"`
}

// OrderPatch is a partial update for one order. Nil fields are not carried
// by the update and leave the stored value alone.
type OrderPatch struct {
	ID              string
	TrackingID      *string
	Status          *Status
	CustomerName    *string
	CustomerPhone   *string
	CustomerAddress *string
	CustomerCity    *string
	CustomerTown    *string
	Amount          *decimal.Decimal
	DeliveryCharges *decimal.Decimal
	Feedback        *string
	AssignedDate    *string
	RiderID         *string
}

// PatchFromOrder builds a patch that carries every field of o.
func PatchFromOrder(o Order) OrderPatch {
	return OrderPatch{
		ID:              o.ID,
		TrackingID:      &o.TrackingID,
		Status:          &o.Status,
		CustomerName:    &o.CustomerName,
		CustomerPhone:   &o.CustomerPhone,
		CustomerAddress: &o.CustomerAddress,
		CustomerCity:    &o.CustomerCity,
		CustomerTown:    &o.CustomerTown,
		Amount:          &o.Amount,
		DeliveryCharges: &o.DeliveryCharges,
		Feedback:        &o.Feedback,
		AssignedDate:    &o.AssignedDate,
		RiderID:         &o.RiderID,
	}
}

// StatusPatch builds a patch carrying only a status and, when non-nil, feedback.
func StatusPatch(id string, status Status, feedback *string) OrderPatch {
	p := OrderPatch{ID: id, Status: &status}
	if feedback != nil {
		fb := *feedback
		p.Feedback = &fb
	}
	return p
}

// Apply merges the carried fields of p into o.
func (p OrderPatch) Apply(o *Order) {
	o.ID = p.ID
	if p.TrackingID != nil {
		o.TrackingID = *p.TrackingID
	}
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.CustomerName != nil {
		o.CustomerName = *p.CustomerName
	}
	if p.CustomerPhone != nil {
		o.CustomerPhone = *p.CustomerPhone
	}
	if p.CustomerAddress != nil {
		o.CustomerAddress = *p.CustomerAddress
	}
	if p.CustomerCity != nil {
		o.CustomerCity = *p.CustomerCity
	}
	if p.CustomerTown != nil {
		o.CustomerTown = *p.CustomerTown
	}
	if p.Amount != nil {
		o.Amount = *p.Amount
	}
	if p.DeliveryCharges != nil {
		o.DeliveryCharges = *p.DeliveryCharges
	}
	if p.Feedback != nil {
		o.Feedback = *p.Feedback
	}
	if p.AssignedDate != nil {
		o.AssignedDate = *p.AssignedDate
	}
	if p.RiderID != nil {
		o.RiderID = *p.RiderID
	}
}

// Rider is the profile of the logged-in courier.
type Rider struct {
	ID               string          `json:"_id"`
	Name             string          `json:"name"`
	Email            string          `json:"email"`
	Phone            string          `json:"phone"`
	City             string          `json:"city"`
	Image            string          `json:"image,omitempty"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

// Session identifies the rider the agent works for. It is passed explicitly
// to every component that needs the rider id or the backend token.
type Session struct {
	RiderID string `json:"riderId"`
	Token   string `json:"token"`
}

// Valid reports whether the session can address a rider room and the backend.
func (s Session) Valid() bool {
	return s.RiderID != "" && s.Token != ""
}
