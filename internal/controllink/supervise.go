package controllink

import (
	"context"
	"log"
	"time"

	"github.com/vrrop/vrrop/internal/timeutil"
)

// supervise runs fn repeatedly until ctx is cancelled. A non-nil error
// return is logged, followed by a backoff wait before fn restarts; a nil
// return ends supervision.
func supervise(ctx context.Context, clock timeutil.Clock, name string, backoff time.Duration, fn func(context.Context) error) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := fn(ctx)
		if err == nil || ctx.Err() != nil {
			return
		}

		log.Printf("controllink: %s loop error, restarting in %s: %v", name, backoff, err)
		timer := clock.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C():
		}
	}
}
