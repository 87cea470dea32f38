package transport

import (
	"context"
	"testing"
	"time"

	"livebot/pkg/types"
)

// fakeEndpoint is a minimal in-test Endpoint whose RecvOne is scripted: it
// blocks until unblocked to deliver a canned event, or times out.
type fakeEndpoint struct {
	name    string
	deliver chan types.LiveEventExt
}

func newFakeEndpoint(name string) *fakeEndpoint {
	return &fakeEndpoint{name: name, deliver: make(chan types.LiveEventExt, 1)}
}

func (f *fakeEndpoint) Name() string { return f.name }

func (f *fakeEndpoint) Publish(ctx context.Context, botID uint64, req types.Request) error {
	return nil
}

func (f *fakeEndpoint) RecvOne(ctx context.Context, botID uint64, deadline time.Duration) (types.LiveEventExt, error) {
	select {
	case ev := <-f.deliver:
		return ev, nil
	case <-time.After(deadline):
		return types.LiveEventExt{}, ErrTimeout
	}
}

func (f *fakeEndpoint) Close() error { return nil }

func TestMultiplexerRecvTimeoutExpires(t *testing.T) {
	t.Parallel()
	ep := newFakeEndpoint("a")
	mux := NewMultiplexer([]Endpoint{ep})

	_, err := mux.RecvTimeout(context.Background(), 1, 50*time.Millisecond)
	if err != ErrTimeout {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestMultiplexerRecvTimeoutDelivers(t *testing.T) {
	t.Parallel()
	ep := newFakeEndpoint("a")
	mux := NewMultiplexer([]Endpoint{ep})

	want := types.LiveEventExt{Kind: types.Normal, Event: types.PositionEvent{Symbol: "X", Qty: 1}}
	ep.deliver <- want

	got, err := mux.RecvTimeout(context.Background(), 1, time.Second)
	if err != nil {
		t.Fatalf("RecvTimeout: %v", err)
	}
	pe, ok := got.Event.(types.PositionEvent)
	if !ok || pe.Symbol != "X" {
		t.Errorf("got %+v, want PositionEvent{Symbol: X}", got)
	}
}

func TestMultiplexerDedupesSharedEndpoint(t *testing.T) {
	t.Parallel()
	ep := newFakeEndpoint("shared")
	mux := NewMultiplexer([]Endpoint{ep, ep, ep})

	if len(mux.Endpoints()) != 1 {
		t.Fatalf("Endpoints() len = %d, want 1", len(mux.Endpoints()))
	}
}

func TestMultiplexerPublishRoutesByAssetIndex(t *testing.T) {
	t.Parallel()
	epA := newFakeEndpoint("a")
	epB := newFakeEndpoint("b")
	mux := NewMultiplexer([]Endpoint{epA, epB})

	if err := mux.Publish(context.Background(), 1, 1, types.AddInstrumentRequest{Symbol: "Y"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := mux.Publish(context.Background(), 1, 5, types.AddInstrumentRequest{Symbol: "Z"}); err == nil {
		t.Error("expected out-of-range error")
	}
}

func TestMultiplexerEmptyEndpointsTimesOut(t *testing.T) {
	t.Parallel()
	mux := NewMultiplexer(nil)
	_, err := mux.RecvTimeout(context.Background(), 1, 10*time.Millisecond)
	if err != ErrTimeout {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}
