// Package mirror merges an inbound, connector-reported order update into an
// instrument slot's local mirror under the stale-timestamp and
// terminal-status absorption rules.
package mirror

import (
	"livebot/internal/instrument"
	"livebot/pkg/types"
)

// OrderRecvHook observes an inbound order update for an order that already
// has a mirror entry, before the drop decision is made. It is not called for
// an update that inserts a new entry. An error returned here aborts the
// caller's current event-loop pass.
type OrderRecvHook func(existing, update types.Order) error

// Clock returns the current wall-clock time in nanoseconds; swappable in
// tests. time.Now().UnixNano() in production.
type Clock func() int64

// Reconcile merges update into slot's mirror for update.OrderID:
//  1. if an entry exists, the hook (if any) observes the raw update and may
//     veto with an error;
//  2. a strictly older exch_timestamp is dropped as stale;
//  3. an update against an already-terminal order is dropped as final;
//  4. otherwise the update's mutable fields are copied into the mirror.
//
// If no entry exists for update.OrderID, update is inserted verbatim. The
// slot's order-latency snapshot is refreshed unconditionally.
func Reconcile(slot *instrument.Slot, update types.Order, hook OrderRecvHook, now Clock) error {
	existing, ok := slot.Lookup(update.OrderID)

	if ok && hook != nil {
		if err := hook(existing, update); err != nil {
			slot.SetOrderLatency(update.LocalTimestamp, update.ExchTimestamp, now())
			return err
		}
	}

	switch {
	case !ok:
		slot.OpenOrder(update.OrderID, update)
	case update.ExchTimestamp < existing.ExchTimestamp:
		// stale: drop.
	case existing.Status.Terminal():
		// final: drop.
	default:
		slot.MutateOrder(update.OrderID, func(e *types.Order) {
			e.Update(&update)
		})
	}

	slot.SetOrderLatency(update.LocalTimestamp, update.ExchTimestamp, now())
	return nil
}
