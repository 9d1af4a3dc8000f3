// Package push receives the rider room's real-time events and decodes them
// into Event values.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"rider-order-sync/internal/dto"
	"rider-order-sync/internal/model"
)

// Kind names a push event.
type Kind string

const (
	KindNewOrder            Kind = "newOrder"
	KindOrderUpdated        Kind = "orderUpdated"
	KindOrdersStatusChanged Kind = "ordersStatusChanged"
	KindOrderDeleted        Kind = "orderDeleted"
	KindRiderBalanceUpdated Kind = "riderBalanceUpdated"
)

// EventJoinRoom is sent by the agent to enter its rider's room.
const EventJoinRoom = "joinRoom"

var ErrUnknownEvent = errors.New("unknown push event")

// Event is one decoded push message. Exactly one payload field is set,
// the one matching Kind.
type Event struct {
	Kind Kind

	NewOrder      *model.Order
	OrderUpdated  *dto.OrderUpdatedPayload
	StatusChanged *dto.OrdersStatusChangedPayload
	OrderDeleted  *dto.OrderDeletedPayload
	Balance       *dto.RiderBalanceUpdatedPayload
}

// Handler consumes decoded events. Returning an error does not stop a source.
type Handler func(ctx context.Context, ev Event) error

// Source delivers a rider room's events until ctx is done.
type Source interface {
	Run(ctx context.Context, h Handler) error
}

// Decode parses a wire message of the form {"event": name, "data": payload}.
func Decode(b []byte) (Event, error) {
	var msg dto.PushMessage
	if err := json.Unmarshal(b, &msg); err != nil {
		return Event{}, fmt.Errorf("decode push message: %w", err)
	}
	return DecodePayload(msg.Event, msg.Data)
}

// DecodePayload parses data as the payload of the named event.
func DecodePayload(name string, data []byte) (Event, error) {
	ev := Event{Kind: Kind(name)}
	var err error
	switch ev.Kind {
	case KindNewOrder:
		ev.NewOrder = &model.Order{}
		err = json.Unmarshal(data, ev.NewOrder)
	case KindOrderUpdated:
		ev.OrderUpdated = &dto.OrderUpdatedPayload{}
		err = json.Unmarshal(data, ev.OrderUpdated)
	case KindOrdersStatusChanged:
		ev.StatusChanged = &dto.OrdersStatusChangedPayload{}
		err = json.Unmarshal(data, ev.StatusChanged)
	case KindOrderDeleted:
		ev.OrderDeleted = &dto.OrderDeletedPayload{}
		err = json.Unmarshal(data, ev.OrderDeleted)
	case KindRiderBalanceUpdated:
		ev.Balance = &dto.RiderBalanceUpdatedPayload{}
		err = json.Unmarshal(data, ev.Balance)
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
	if err != nil {
		return Event{}, fmt.Errorf("decode %s payload: %w", name, err)
	}
	return ev, nil
}

// Encode builds the wire form of an event name and payload.
func Encode(name string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(dto.PushMessage{Event: name, Data: data})
}
