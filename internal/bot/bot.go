// Package bot implements the event loop and the builder/facade that sit on
// top of the transport/instrument/mirror/dispatch layers: the synchronous,
// strategy-facing API a caller drives directly. waitNextFeed is threaded
// through as a genuine runtime parameter, submit publishes before inserting
// into the mirror so a publish failure can never leave a phantom order
// behind, and hook re-entrancy is actively guarded rather than left as a
// documented hazard.
package bot

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"livebot/internal/depth"
	"livebot/internal/dispatch"
	"livebot/internal/instrument"
	"livebot/internal/mirror"
	"livebot/internal/transport"
	"livebot/pkg/types"
)

// OrderRecvHook and ErrorHandler are the two user-supplied hooks a strategy
// may register with the Builder. They run on the event-loop thread; Bot
// refuses re-entrant submit, cancel, wait and elapse calls from within
// either one.
type OrderRecvHook = mirror.OrderRecvHook
type ErrorHandler = dispatch.ErrorHandler

// defaultWaitTimeout is used when a caller of Submit/Cancel asks to wait but
// does not override the timeout.
const defaultWaitTimeout = 60 * time.Second

// Bot is the synchronous strategy-facing facade. A single Bot instance owns
// every instrument slot, the multiplexer, and the endpoints it was built
// with; all of its methods run on the caller's goroutine and must not be
// called concurrently.
type Bot struct {
	id uint64

	mux      *transport.Multiplexer
	registry *registry

	userOrderHook  OrderRecvHook
	userErrHandler ErrorHandler

	// inHook guards against a registered hook calling back into the facade:
	// SubmitOrder, Cancel, WaitOrderResponse, WaitNextFeed and Elapse refuse
	// to proceed while a hook is on the stack. The read accessors and the
	// Clear* methods do not check it.
	inHook bool

	clockFn func() int64
}

// ID returns the bot's correlation id, carried on every publish/receive.
func (b *Bot) ID() uint64 { return b.id }

// CurrentTimestamp returns the current wall-clock time in nanoseconds.
func (b *Bot) CurrentTimestamp() int64 { return b.clockFn() }

func (b *Bot) clock() int64 { return b.clockFn() }

func (b *Bot) reentrant() bool { return b.inHook }

func (b *Bot) wrappedOrderHook(existing, update types.Order) error {
	if b.userOrderHook == nil {
		return nil
	}
	b.inHook = true
	defer func() { b.inHook = false }()
	return b.userOrderHook(existing, update)
}

func (b *Bot) wrappedErrorHandler(e types.LiveError) error {
	if b.userErrHandler == nil {
		return nil
	}
	b.inHook = true
	defer func() { b.inHook = false }()
	return b.userErrHandler(e)
}

// SubmitOrder inserts a New mirror entry and publishes a submit Request.
// Publish happens before the mirror insert so a publish failure never
// leaves a phantom order behind; on failure the mirror is left untouched
// and the error is returned.
func (b *Bot) SubmitOrder(ctx context.Context, assetNo int, orderID uint64, px, qty float64, tif types.TimeInForce, ordType types.OrdType, side types.Side, wait bool, waitTimeout time.Duration) (bool, error) {
	if b.reentrant() {
		return false, newError(Custom, "cannot call SubmitOrder from within a registered hook")
	}

	slot, ok := b.registry.slotByAssetNo(assetNo)
	if !ok {
		return false, newError(InstrumentNotFound, "asset index out of range")
	}
	if _, exists := slot.Lookup(orderID); exists {
		return false, newError(OrderIDExist, "order id already present")
	}

	order := types.Order{
		OrderID:        orderID,
		Side:           side,
		TickSize:       slot.TickSize(),
		PriceTick:      int64(math.Round(px / slot.TickSize())),
		Qty:            qty,
		LeavesQty:      qty,
		TimeInForce:    tif,
		OrderType:      ordType,
		Status:         types.New,
		Req:            types.New,
		LocalTimestamp: b.clock(),
	}

	if err := b.mux.Publish(ctx, b.id, assetNo, types.OrderRequest{Symbol: slot.Symbol(), Order: order}); err != nil {
		return false, wrapError(Custom, err)
	}

	if !slot.OpenOrder(orderID, order) {
		return false, newError(OrderIDExist, "order id already present")
	}

	if !wait {
		return true, nil
	}
	if waitTimeout <= 0 {
		waitTimeout = defaultWaitTimeout
	}
	return b.elapse(ctx, waitTimeout, types.WaitOrderResponse{Mode: types.WaitSpecified, AssetNo: assetNo, OrderID: orderID}, false)
}

// Cancel marks orderID's mirror entry as cancel-requested and publishes a
// cancel Request. Fails InvalidOrderStatus before any mutation or publish if
// the order is not currently cancellable (already terminal, or a cancel is
// already in flight).
func (b *Bot) Cancel(ctx context.Context, assetNo int, orderID uint64, wait bool, waitTimeout time.Duration) (bool, error) {
	if b.reentrant() {
		return false, newError(Custom, "cannot call Cancel from within a registered hook")
	}

	slot, ok := b.registry.slotByAssetNo(assetNo)
	if !ok {
		return false, newError(InstrumentNotFound, "asset index out of range")
	}
	o, ok := slot.Lookup(orderID)
	if !ok {
		return false, newError(OrderNotFound, "order id not found")
	}
	if !o.Cancellable() {
		return false, newError(InvalidOrderStatus, "order is not cancellable")
	}

	updated := o
	updated.Req = types.Canceled
	updated.LocalTimestamp = b.clock()

	if err := b.mux.Publish(ctx, b.id, assetNo, types.OrderRequest{Symbol: slot.Symbol(), Order: updated}); err != nil {
		return false, wrapError(Custom, err)
	}

	slot.MutateOrder(orderID, func(e *types.Order) {
		e.Req = updated.Req
		e.LocalTimestamp = updated.LocalTimestamp
	})

	if !wait {
		return true, nil
	}
	if waitTimeout <= 0 {
		waitTimeout = defaultWaitTimeout
	}
	return b.elapse(ctx, waitTimeout, types.WaitOrderResponse{Mode: types.WaitSpecified, AssetNo: assetNo, OrderID: orderID}, false)
}

// WaitOrderResponse blocks until orderID's next update at assetNo, or
// timeout elapses.
func (b *Bot) WaitOrderResponse(ctx context.Context, assetNo int, orderID uint64, timeout time.Duration) (bool, error) {
	if b.reentrant() {
		return false, newError(Custom, "cannot call WaitOrderResponse from within a registered hook")
	}
	return b.elapse(ctx, timeout, types.WaitOrderResponse{Mode: types.WaitSpecified, AssetNo: assetNo, OrderID: orderID}, false)
}

// WaitNextFeed blocks until the next feed tick (or, if includeOrderResp, any
// order response) arrives, or timeout elapses.
func (b *Bot) WaitNextFeed(ctx context.Context, includeOrderResp bool, timeout time.Duration) (bool, error) {
	if b.reentrant() {
		return false, newError(Custom, "cannot call WaitNextFeed from within a registered hook")
	}
	mode := types.WaitNone
	if includeOrderResp {
		mode = types.WaitAny
	}
	return b.elapse(ctx, timeout, types.WaitOrderResponse{Mode: mode}, true)
}

// Elapse runs the event loop for duration with no wait condition.
func (b *Bot) Elapse(ctx context.Context, duration time.Duration) (bool, error) {
	if b.reentrant() {
		return false, newError(Custom, "cannot call Elapse from within a registered hook")
	}
	return b.elapse(ctx, duration, types.WaitOrderResponse{Mode: types.WaitNone}, false)
}

// ClearLastTrades empties the recent-trades ring for assetNo, or every
// instrument if assetNo is nil.
func (b *Bot) ClearLastTrades(assetNo *int) error {
	if assetNo == nil {
		for _, s := range b.registry.slots {
			s.ClearLastTrades()
		}
		return nil
	}
	slot, ok := b.registry.slotByAssetNo(*assetNo)
	if !ok {
		return newError(InstrumentNotFound, "asset index out of range")
	}
	slot.ClearLastTrades()
	return nil
}

// ClearInactiveOrders removes terminal-status orders from assetNo's mirror,
// or from every instrument if assetNo is nil.
func (b *Bot) ClearInactiveOrders(assetNo *int) error {
	if assetNo == nil {
		for _, s := range b.registry.slots {
			s.ClearInactiveOrders()
		}
		return nil
	}
	slot, ok := b.registry.slotByAssetNo(*assetNo)
	if !ok {
		return newError(InstrumentNotFound, "asset index out of range")
	}
	slot.ClearInactiveOrders()
	return nil
}

// Slot exposes the raw instrument slot for assetNo, for read accessors that
// need the full depth.MarketDepth/order-map surface without re-wrapping it.
func (b *Bot) Slot(assetNo int) (*instrument.Slot, error) {
	slot, ok := b.registry.slotByAssetNo(assetNo)
	if !ok {
		return nil, newError(InstrumentNotFound, "asset index out of range")
	}
	return slot, nil
}

// Depth returns the book capability for assetNo.
func (b *Bot) Depth(assetNo int) (depth.MarketDepth, error) {
	slot, err := b.Slot(assetNo)
	if err != nil {
		return nil, err
	}
	return slot.Depth(), nil
}

// Orders returns a snapshot of assetNo's open-order map.
func (b *Bot) Orders(assetNo int) (map[uint64]types.Order, error) {
	slot, err := b.Slot(assetNo)
	if err != nil {
		return nil, err
	}
	return slot.Orders(), nil
}

// Position returns assetNo's current position quantity.
func (b *Bot) Position(assetNo int) (float64, error) {
	slot, err := b.Slot(assetNo)
	if err != nil {
		return 0, err
	}
	return slot.Position().Position, nil
}

// StateValues returns assetNo's full state-values snapshot.
func (b *Bot) StateValues(assetNo int) (types.StateValues, error) {
	slot, err := b.Slot(assetNo)
	if err != nil {
		return types.StateValues{}, err
	}
	return slot.Position(), nil
}

// LastTrades returns assetNo's recent-trades ring, oldest first.
func (b *Bot) LastTrades(assetNo int) ([]types.Event, error) {
	slot, err := b.Slot(assetNo)
	if err != nil {
		return nil, err
	}
	return slot.LastTrades(), nil
}

// FeedLatency returns assetNo's last feed-latency snapshot.
func (b *Bot) FeedLatency(assetNo int) (instrument.FeedLatency, error) {
	slot, err := b.Slot(assetNo)
	if err != nil {
		return instrument.FeedLatency{}, err
	}
	return slot.FeedLatency(), nil
}

// OrderLatency returns assetNo's last order-latency snapshot.
func (b *Bot) OrderLatency(assetNo int) (instrument.OrderLatency, error) {
	slot, err := b.Slot(assetNo)
	if err != nil {
		return instrument.OrderLatency{}, err
	}
	return slot.OrderLatency(), nil
}

// Close releases every endpoint the bot owns. Idempotent.
func (b *Bot) Close() error {
	var firstErr error
	for _, ep := range b.mux.Endpoints() {
		if err := ep.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var defaultClock = func() int64 { return time.Now().UnixNano() }

// defaultBotID draws the builder's fallback bot id, a uniformly random
// 64-bit integer used only as an advisory correlation tag, never as a
// security token.
func defaultBotID() uint64 {
	return rand.Uint64()
}
