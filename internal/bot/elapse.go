package bot

import (
	"context"
	"errors"
	"time"

	"livebot/internal/dispatch"
	"livebot/internal/transport"
	"livebot/pkg/types"
)

// elapse is the bot's single suspension point. It drives the multiplexer
// and dispatcher until the duration expires, the
// wait condition is satisfied, or the transport is interrupted. A run of
// Batch events terminated by EndOfBatch is processed atomically: elapse
// never returns control mid-batch, so a strategy always observes a causally
// consistent snapshot.
//
// Returns true on normal completion (timeout, feed wake, or wait
// satisfied); false on interruption. A dispatch error (hook veto or error
// handler) aborts the loop and is returned.
func (b *Bot) elapse(ctx context.Context, duration time.Duration, wait types.WaitOrderResponse, waitNextFeed bool) (bool, error) {
	remaining := duration
	inBatch := false
	sawWait := false

	for {
		loopStart := time.Now()

		ev, err := b.mux.RecvTimeout(ctx, b.id, remaining)
		switch {
		case err == nil:
			// fall through to classify ev below.
		case errors.Is(err, transport.ErrTimeout):
			return true, nil
		case errors.Is(err, transport.ErrInterrupted):
			return false, nil
		default:
			return false, err
		}

		switch ev.Kind {
		case types.Normal, types.Batch:
			if ev.Kind == types.Batch {
				inBatch = true
			}

			hit, derr := dispatch.Dispatch(b.registry, ev.Event, wait, b.wrappedOrderHook, b.wrappedErrorHandler, b.clock)
			if derr != nil {
				return false, derr
			}
			sawWait = sawWait || hit

			if hit && !inBatch {
				return true, nil
			}
			if waitNextFeed && !inBatch {
				if _, isFeed := ev.Event.(types.FeedEvent); isFeed {
					return true, nil
				}
			}

		case types.EndOfBatch:
			inBatch = false
			if sawWait {
				return true, nil
			}
		}

		if !inBatch {
			remaining -= time.Since(loopStart)
			if remaining <= 0 {
				return true, nil
			}
		}
	}
}
