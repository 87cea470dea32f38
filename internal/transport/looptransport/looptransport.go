// Package looptransport is the in-process analogue of a shared-memory
// ring buffer between one bot and one connector running in the same
// address space: a buffered-channel duplex whose sends block only while the
// buffer is full. It is
// the transport the bot's own tests and cmd/livebot's demo connector use.
package looptransport

import (
	"context"
	"sync"
	"time"

	"livebot/internal/transport"
	"livebot/pkg/types"
)

// Endpoint is a duplex, in-process channel pair: Requests flow bot→connector,
// LiveEventExt flows connector→bot. A test harness or cmd/livebot's demo
// connector drives the connector side via ConnectorRequests/ConnectorSend.
type Endpoint struct {
	name string

	toConnector chan types.Request
	toBot       chan types.LiveEventExt

	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a loopback endpoint for the given connector name, with bufSize
// slots on each direction.
func New(name string, bufSize int) *Endpoint {
	return &Endpoint{
		name:        name,
		toConnector: make(chan types.Request, bufSize),
		toBot:       make(chan types.LiveEventExt, bufSize),
		closed:      make(chan struct{}),
	}
}

// Name implements transport.Endpoint.
func (e *Endpoint) Name() string { return e.name }

// Publish implements transport.Endpoint. botID is carried by the wire
// envelope in a real transport; looptransport has no wire envelope, so it
// is accepted but unused beyond the interface contract.
func (e *Endpoint) Publish(ctx context.Context, botID uint64, req types.Request) error {
	select {
	case e.toConnector <- req:
		return nil
	case <-e.closed:
		return transport.ErrInterrupted
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecvOne implements transport.Endpoint.
func (e *Endpoint) RecvOne(ctx context.Context, botID uint64, deadline time.Duration) (types.LiveEventExt, error) {
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case ev := <-e.toBot:
		return ev, nil
	case <-e.closed:
		return types.LiveEventExt{}, transport.ErrInterrupted
	case <-ctx.Done():
		return types.LiveEventExt{}, ctx.Err()
	case <-timer.C:
		return types.LiveEventExt{}, transport.ErrTimeout
	}
}

// Close implements transport.Endpoint. Idempotent: subsequent Publish/RecvOne
// calls observe ErrInterrupted.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() { close(e.closed) })
	return nil
}

// ConnectorRequests returns the channel a simulated connector reads
// bot-published Requests from.
func (e *Endpoint) ConnectorRequests() <-chan types.Request {
	return e.toConnector
}

// ConnectorSend delivers ev to the bot side, as if emitted by the connector.
// It blocks until delivered, the endpoint closes, or ctx is cancelled.
func (e *Endpoint) ConnectorSend(ctx context.Context, ev types.LiveEventExt) error {
	select {
	case e.toBot <- ev:
		return nil
	case <-e.closed:
		return transport.ErrInterrupted
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ transport.Endpoint = (*Endpoint)(nil)
