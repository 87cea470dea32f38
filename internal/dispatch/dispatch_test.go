package dispatch

import (
	"errors"
	"testing"

	"livebot/internal/depth"
	"livebot/internal/instrument"
	"livebot/internal/mirror"
	"livebot/pkg/types"
)

type fakeRegistry struct {
	slots map[string]*instrument.Slot
	asset map[string]int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{slots: map[string]*instrument.Slot{}, asset: map[string]int{}}
}

func (r *fakeRegistry) add(symbol string, assetNo int) *instrument.Slot {
	s := instrument.New("sim", symbol, assetNo, 0.1, 0.001, depth.NewL2Depth(), 0)
	r.slots[symbol] = s
	r.asset[symbol] = assetNo
	return s
}

func (r *fakeRegistry) SlotBySymbol(symbol string) (*instrument.Slot, int, bool) {
	s, ok := r.slots[symbol]
	if !ok {
		return nil, 0, false
	}
	return s, r.asset[symbol], true
}

func fixedClock(ns int64) mirror.Clock { return func() int64 { return ns } }

func TestDispatchFeedUpdatesBookReturnsFalse(t *testing.T) {
	t.Parallel()
	reg := newFakeRegistry()
	slot := reg.add("BTC-USD", 0)

	hit, err := Dispatch(reg, types.FeedEvent{Symbol: "BTC-USD", Event: types.Event{Flags: types.LocalBidDepthEvent, Px: 100, Qty: 1}}, types.WaitOrderResponse{}, nil, nil, fixedClock(1))
	if err != nil || hit {
		t.Fatalf("hit=%v err=%v, want false/nil", hit, err)
	}
	if _, ok := slot.Depth().BestBid(); !ok {
		t.Error("expected book to be updated")
	}
}

func TestDispatchUnknownSymbolAbsorbed(t *testing.T) {
	t.Parallel()
	reg := newFakeRegistry()

	hit, err := Dispatch(reg, types.FeedEvent{Symbol: "nope"}, types.WaitOrderResponse{}, nil, nil, fixedClock(1))
	if err != nil || hit {
		t.Fatalf("hit=%v err=%v, want false/nil for unknown symbol", hit, err)
	}
}

func TestDispatchOrderWaitAnyHits(t *testing.T) {
	t.Parallel()
	reg := newFakeRegistry()
	slot := reg.add("BTC-USD", 3)
	slot.OpenOrder(1, types.Order{OrderID: 1, Status: types.New, ExchTimestamp: 1})

	hit, err := Dispatch(reg, types.OrderEvent{Symbol: "BTC-USD", Order: types.Order{OrderID: 1, Status: types.Filled, ExchTimestamp: 2}}, types.WaitOrderResponse{Mode: types.WaitAny}, nil, nil, fixedClock(10))
	if err != nil || !hit {
		t.Fatalf("hit=%v err=%v, want true/nil", hit, err)
	}
}

func TestDispatchOrderWaitSpecifiedMatchesExactly(t *testing.T) {
	t.Parallel()
	reg := newFakeRegistry()
	slot := reg.add("BTC-USD", 0)
	slot.OpenOrder(1, types.Order{OrderID: 1, Status: types.New, ExchTimestamp: 1})
	slot.OpenOrder(8, types.Order{OrderID: 8, Status: types.New, ExchTimestamp: 1})

	wait := types.WaitOrderResponse{Mode: types.WaitSpecified, AssetNo: 0, OrderID: 7}

	hitOther, err := Dispatch(reg, types.OrderEvent{Symbol: "BTC-USD", Order: types.Order{OrderID: 8, Status: types.Filled, ExchTimestamp: 2}}, wait, nil, nil, fixedClock(1))
	if err != nil || hitOther {
		t.Fatalf("unrelated order should not hit: hit=%v err=%v", hitOther, err)
	}

	slot.OpenOrder(7, types.Order{OrderID: 7, Status: types.New, ExchTimestamp: 1})
	hitTarget, err := Dispatch(reg, types.OrderEvent{Symbol: "BTC-USD", Order: types.Order{OrderID: 7, Status: types.New, ExchTimestamp: 5}}, wait, nil, nil, fixedClock(1))
	if err != nil || !hitTarget {
		t.Fatalf("target order should hit: hit=%v err=%v", hitTarget, err)
	}
}

func TestDispatchPositionReturnsFalse(t *testing.T) {
	t.Parallel()
	reg := newFakeRegistry()
	slot := reg.add("BTC-USD", 0)

	hit, err := Dispatch(reg, types.PositionEvent{Symbol: "BTC-USD", Qty: 4}, types.WaitOrderResponse{}, nil, nil, fixedClock(1))
	if err != nil || hit {
		t.Fatalf("hit=%v err=%v, want false/nil", hit, err)
	}
	if slot.Position().Position != 4 {
		t.Errorf("Position = %v, want 4", slot.Position().Position)
	}
}

func TestDispatchErrorHandlerPropagates(t *testing.T) {
	t.Parallel()
	reg := newFakeRegistry()
	wantErr := errors.New("boom")

	_, err := Dispatch(reg, types.ConnectorErrorEvent{Err: types.LiveError{Code: "E", Message: "bad"}}, types.WaitOrderResponse{}, nil, func(types.LiveError) error { return wantErr }, fixedClock(1))
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

func TestDispatchOrderHookVetoPropagates(t *testing.T) {
	t.Parallel()
	reg := newFakeRegistry()
	slot := reg.add("BTC-USD", 0)
	slot.OpenOrder(1, types.Order{OrderID: 1, Status: types.New, ExchTimestamp: 1})

	wantErr := errors.New("vetoed")
	hook := func(existing, update types.Order) error { return wantErr }

	_, err := Dispatch(reg, types.OrderEvent{Symbol: "BTC-USD", Order: types.Order{OrderID: 1, Status: types.Filled, ExchTimestamp: 2}}, types.WaitOrderResponse{}, hook, nil, fixedClock(1))
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}
