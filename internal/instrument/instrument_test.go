package instrument

import (
	"testing"

	"github.com/shopspring/decimal"

	"livebot/internal/depth"
	"livebot/pkg/types"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestSlot(tradeCap int) *Slot {
	return New("sim", "BTC-USD", 0, 0.1, 0.001, depth.NewL2Depth(), tradeCap)
}

func TestApplyFeedUpdatesBookAndLatency(t *testing.T) {
	t.Parallel()
	s := newTestSlot(0)

	s.ApplyFeed(types.Event{Flags: types.LocalBidDepthEvent, Px: 100, Qty: 1, ExchTs: 10, LocalTs: 11})

	bid, ok := s.Depth().BestBid()
	if !ok || !bid.Equal(dec("100")) {
		t.Fatalf("BestBid = %v, ok=%v", bid, ok)
	}
	lat := s.FeedLatency()
	if lat.ExchTs != 10 || lat.LocalTs != 11 {
		t.Errorf("FeedLatency = %+v, want {10 11}", lat)
	}
}

func TestApplyFeedTradeRespectsCapacity(t *testing.T) {
	t.Parallel()
	s := newTestSlot(2)

	for i := 0; i < 3; i++ {
		s.ApplyFeed(types.Event{Flags: types.LocalBuyTradeEvent, Px: float64(i), ExchTs: int64(i)})
	}
	trades := s.LastTrades()
	if len(trades) != 2 {
		t.Fatalf("len(LastTrades()) = %d, want 2", len(trades))
	}
	if trades[0].Px != 1 || trades[1].Px != 2 {
		t.Errorf("trades = %+v, want px 1 then 2 (oldest dropped)", trades)
	}
}

func TestApplyFeedTradeDisabledWhenZeroCapacity(t *testing.T) {
	t.Parallel()
	s := newTestSlot(0)
	s.ApplyFeed(types.Event{Flags: types.LocalSellTradeEvent, Px: 1})
	if len(s.LastTrades()) != 0 {
		t.Error("expected no trades recorded when capacity is 0")
	}
}

func TestOpenOrderRejectsDuplicate(t *testing.T) {
	t.Parallel()
	s := newTestSlot(0)

	if ok := s.OpenOrder(1, types.Order{OrderID: 1}); !ok {
		t.Fatal("first OpenOrder should succeed")
	}
	if ok := s.OpenOrder(1, types.Order{OrderID: 1}); ok {
		t.Error("duplicate OpenOrder should fail")
	}
}

func TestRemoveIfInactive(t *testing.T) {
	t.Parallel()
	s := newTestSlot(0)
	s.OpenOrder(1, types.Order{OrderID: 1, Status: types.New})

	if s.RemoveIfInactive(1) {
		t.Error("active order should not be removed")
	}
	s.MutateOrder(1, func(o *types.Order) { o.Status = types.Filled })
	if !s.RemoveIfInactive(1) {
		t.Error("terminal order should be removed")
	}
	if _, ok := s.Lookup(1); ok {
		t.Error("order should be gone after removal")
	}
}

func TestClearInactiveOrdersKeepsOnlyActive(t *testing.T) {
	t.Parallel()
	s := newTestSlot(0)
	s.OpenOrder(1, types.Order{OrderID: 1, Status: types.New})
	s.OpenOrder(2, types.Order{OrderID: 2, Status: types.Filled})
	s.OpenOrder(3, types.Order{OrderID: 3, Status: types.Canceled})

	s.ClearInactiveOrders()

	orders := s.Orders()
	if len(orders) != 1 {
		t.Fatalf("len(Orders()) = %d, want 1", len(orders))
	}
	if _, ok := orders[1]; !ok {
		t.Error("expected order 1 (New) to survive")
	}
}

func TestApplyPositionOverwrites(t *testing.T) {
	t.Parallel()
	s := newTestSlot(0)
	s.ApplyPosition(5)
	s.ApplyPosition(-3)
	if got := s.Position().Position; got != -3 {
		t.Errorf("Position = %v, want -3", got)
	}
}

