package push

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"rider-order-sync/internal/logger"
)

var errSourceStopped = errors.New("source stopped")

// Reconnecting restarts a source that returns while ctx is still live,
// waiting an exponential backoff between attempts.
type Reconnecting struct {
	src        Source
	name       string
	log        logger.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewReconnecting(name string, src Source, log logger.Logger, lo, hi time.Duration) *Reconnecting {
	return &Reconnecting{src: src, name: name, log: log, minBackoff: lo, maxBackoff: hi}
}

func newBackOff(lo, hi time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = lo
	b.MaxInterval = hi
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (r *Reconnecting) Run(ctx context.Context, h Handler) error {
	b := newBackOff(r.minBackoff, r.maxBackoff)

	op := func() error {
		start := time.Now()
		err := r.src.Run(ctx, h)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		// a session that lived a while was healthy; start over
		if time.Since(start) > r.maxBackoff {
			b.Reset()
		}
		if err == nil {
			err = errSourceStopped
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		r.log.Warnf(ctx, "[%s] %v, restarting in %s", r.name, err, wait.Round(time.Millisecond))
	}

	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
