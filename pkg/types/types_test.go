package types

import "testing"

func TestStatusTerminal(t *testing.T) {
	t.Parallel()
	cases := []struct {
		status Status
		want   bool
	}{
		{New, false},
		{PartiallyFilled, false},
		{Filled, true},
		{Canceled, true},
		{Expired, true},
		{Rejected, true},
	}
	for _, c := range cases {
		if got := c.status.Terminal(); got != c.want {
			t.Errorf("%s.Terminal() = %v, want %v", c.status, got, c.want)
		}
	}
}

func TestOrderCancellable(t *testing.T) {
	t.Parallel()
	o := Order{Status: New, Req: New}
	if !o.Cancellable() {
		t.Error("new order should be cancellable")
	}

	o.Req = Canceled
	if o.Cancellable() {
		t.Error("order with cancel already in flight should not be cancellable")
	}

	o.Req = New
	o.Status = Filled
	if o.Cancellable() {
		t.Error("filled order should not be cancellable")
	}
}

func TestOrderActive(t *testing.T) {
	t.Parallel()
	o := Order{Status: PartiallyFilled}
	if !o.Active() {
		t.Error("partially filled order should be active")
	}
	o.Status = Canceled
	if o.Active() {
		t.Error("canceled order should not be active")
	}
}

func TestOrderCloneIsIndependent(t *testing.T) {
	t.Parallel()
	o := Order{OrderID: 1, Qty: 10}
	cp := o.Clone()
	cp.Qty = 20
	if o.Qty != 10 {
		t.Errorf("original mutated through clone: Qty = %v", o.Qty)
	}
}

func TestOrderUpdatePreservesIdentityFields(t *testing.T) {
	t.Parallel()
	o := Order{
		OrderID:     7,
		Side:        Buy,
		TickSize:    0.01,
		Qty:         5,
		TimeInForce: GTC,
		OrderType:   Limit,
		Status:      New,
	}
	update := Order{
		Status:         PartiallyFilled,
		LeavesQty:      2,
		ExecQty:        3,
		ExecPriceTick:  1000,
		Maker:          true,
		LocalTimestamp: 100,
		ExchTimestamp:  200,
	}

	o.Update(&update)

	if o.OrderID != 7 || o.Side != Buy || o.TickSize != 0.01 || o.Qty != 5 || o.TimeInForce != GTC || o.OrderType != Limit {
		t.Errorf("identity fields changed by Update: %+v", o)
	}
	if o.Status != PartiallyFilled || o.LeavesQty != 2 || o.ExecQty != 3 || o.ExecPriceTick != 1000 || !o.Maker {
		t.Errorf("mutable fields not applied by Update: %+v", o)
	}
}

func TestEventIs(t *testing.T) {
	t.Parallel()
	e := Event{Flags: LocalBidDepthEvent | LocalBuyTradeEvent}
	if !e.Is(LocalBidDepthEvent) {
		t.Error("expected LocalBidDepthEvent flag set")
	}
	if !e.Is(LocalBuyTradeEvent) {
		t.Error("expected LocalBuyTradeEvent flag set")
	}
	if e.Is(LocalAskDepthEvent) {
		t.Error("did not expect LocalAskDepthEvent flag set")
	}
}

func TestLiveEventMarkerTypesSatisfyInterface(t *testing.T) {
	t.Parallel()
	var events = []LiveEvent{
		FeedEvent{Symbol: "BTC-USD"},
		OrderEvent{Symbol: "BTC-USD"},
		PositionEvent{Symbol: "BTC-USD"},
		ConnectorErrorEvent{Err: LiveError{Code: "x"}},
	}
	if len(events) != 4 {
		t.Fatalf("len(events) = %d, want 4", len(events))
	}
}

func TestRequestMarkerTypesSatisfyInterface(t *testing.T) {
	t.Parallel()
	var reqs = []Request{
		AddInstrumentRequest{Symbol: "BTC-USD", TickSize: 0.01},
		OrderRequest{Symbol: "BTC-USD"},
	}
	if len(reqs) != 2 {
		t.Fatalf("len(reqs) = %d, want 2", len(reqs))
	}
}

func TestLiveErrorFormatsCodeAndMessage(t *testing.T) {
	t.Parallel()
	err := LiveError{Code: "disconnect", Message: "connection reset"}
	want := "disconnect: connection reset"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
