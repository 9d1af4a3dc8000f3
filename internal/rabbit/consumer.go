package rabbit

import (
	"context"

	"rider-order-sync/internal/push"
)

// Handle decodes one delivery body and passes it on. Bad messages are
// logged and dropped; deliveries are auto-acked so there is nothing to
// requeue.
func (c *RoomConsumer) Handle(ctx context.Context, body []byte, h push.Handler) {
	ev, err := push.Decode(body)
	if err != nil {
		c.log.Warnf(ctx, "[Rabbit] skipping message: %v", err)
		return
	}
	c.log.Debugf(ctx, "[Rabbit] event received: %s", ev.Kind)

	if err := h(ctx, ev); err != nil {
		c.log.Warnf(ctx, "[Rabbit] handling %s: %v", ev.Kind, err)
	}
}
