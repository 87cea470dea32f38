// Package dispatch classifies one LiveEvent, routes it into the
// instrument/mirror layer, and reports whether it satisfies the event
// loop's current wait condition.
package dispatch

import (
	"livebot/internal/instrument"
	"livebot/internal/mirror"
	"livebot/pkg/types"
)

// Registry resolves a symbol to its instrument slot and asset index. The bot
// facade owns the concrete registry; dispatch only needs lookups.
type Registry interface {
	SlotBySymbol(symbol string) (slot *instrument.Slot, assetNo int, ok bool)
}

// ErrorHandler observes a connector-reported LiveError; a non-nil return
// aborts the caller's current event-loop pass.
type ErrorHandler func(types.LiveError) error

// Dispatch classifies ev, routes it to the instrument/mirror layer, and
// returns whether it satisfies wait. Unknown symbols are silently absorbed:
// a connector may emit for a symbol not yet registered without aborting the
// loop.
func Dispatch(reg Registry, ev types.LiveEvent, wait types.WaitOrderResponse, hook mirror.OrderRecvHook, errHandler ErrorHandler, now mirror.Clock) (bool, error) {
	switch e := ev.(type) {
	case types.FeedEvent:
		slot, _, ok := reg.SlotBySymbol(e.Symbol)
		if !ok {
			return false, nil
		}
		slot.ApplyFeed(e.Event)
		return false, nil

	case types.OrderEvent:
		slot, assetNo, ok := reg.SlotBySymbol(e.Symbol)
		if !ok {
			return false, nil
		}
		if err := mirror.Reconcile(slot, e.Order, hook, now); err != nil {
			return false, err
		}
		return orderHit(wait, assetNo, e.Order.OrderID), nil

	case types.PositionEvent:
		slot, _, ok := reg.SlotBySymbol(e.Symbol)
		if !ok {
			return false, nil
		}
		slot.ApplyPosition(e.Qty)
		return false, nil

	case types.ConnectorErrorEvent:
		if errHandler != nil {
			if err := errHandler(e.Err); err != nil {
				return false, err
			}
		}
		return false, nil

	default:
		return false, nil
	}
}

func orderHit(wait types.WaitOrderResponse, assetNo int, orderID uint64) bool {
	switch wait.Mode {
	case types.WaitAny:
		return true
	case types.WaitSpecified:
		return wait.AssetNo == assetNo && wait.OrderID == orderID
	default:
		return false
	}
}
