// Package transport defines the bot-to-connector channel contract and the
// fair multiplexer that polls many such channels under one deadline. It only
// fixes the interface every concrete implementation — looptransport,
// wstransport, or a future shared-memory one — must satisfy; the physical
// transport itself is left to each implementation.
package transport

import (
	"context"
	"errors"
	"time"

	"livebot/pkg/types"
)

// ErrTimeout is returned by RecvOne when the deadline elapses with nothing
// to deliver. It is a soft, expected condition — never logged as an error.
var ErrTimeout = errors.New("transport: timeout")

// ErrInterrupted is returned by RecvOne when the transport itself was asked
// to shut down (e.g. the underlying connection or process was interrupted).
// This is the graceful-shutdown signal callers should treat as final, never
// retried.
var ErrInterrupted = errors.New("transport: interrupted")

// Endpoint is one bidirectional channel to a single connector. Instruments
// that share a connector name share one Endpoint.
type Endpoint interface {
	// Publish sends a Request tagged with the bot's id.
	Publish(ctx context.Context, botID uint64, req types.Request) error
	// RecvOne blocks for at most deadline for the next LiveEventExt, or
	// returns ErrTimeout / ErrInterrupted / a transport-specific error.
	RecvOne(ctx context.Context, botID uint64, deadline time.Duration) (types.LiveEventExt, error)
	// Name identifies the connector this endpoint talks to.
	Name() string
	// Close releases any resources (connections, goroutines) held by the
	// endpoint. Idempotent.
	Close() error
}

// innerPollInterval bounds how long the multiplexer waits on any single
// endpoint before rotating to the next one, so a quiet endpoint never
// starves its siblings of a chance to report an event within the caller's
// overall deadline.
const innerPollInterval = 20 * time.Millisecond

// Multiplexer owns the ordered list of endpoints (indexed by asset number,
// though the same Endpoint may appear more than once when instruments share
// a connector) and round-robins RecvOne calls across them under one overall
// deadline.
type Multiplexer struct {
	// endpoints is de-duplicated by Endpoint identity; assetEndpoint maps
	// each asset index to the endpoint instance serving it.
	endpoints     []Endpoint
	assetEndpoint []Endpoint
	// next is the rotation position the following RecvTimeout call starts at.
	next int
}

// NewMultiplexer builds a multiplexer over assetEndpoint, one entry per
// asset index (sharing is by identical Endpoint value, not by position).
func NewMultiplexer(assetEndpoint []Endpoint) *Multiplexer {
	seen := make(map[Endpoint]bool)
	unique := make([]Endpoint, 0, len(assetEndpoint))
	for _, ep := range assetEndpoint {
		if ep == nil || seen[ep] {
			continue
		}
		seen[ep] = true
		unique = append(unique, ep)
	}
	return &Multiplexer{endpoints: unique, assetEndpoint: assetEndpoint}
}

// Endpoints returns the de-duplicated endpoint set, for Close on shutdown.
func (m *Multiplexer) Endpoints() []Endpoint {
	return m.endpoints
}

// RecvTimeout polls every endpoint in fair rotation, each with a short inner
// deadline, until either an event arrives or the overall deadline expires.
// The rotation resumes, on the next call, at the endpoint after the one last
// polled. It never reorders events from the same endpoint, because each
// RecvOne call returns at most one LiveEventExt; events from different
// endpoints may interleave, including between one endpoint's Batch events
// and its EndOfBatch.
func (m *Multiplexer) RecvTimeout(ctx context.Context, botID uint64, remaining time.Duration) (types.LiveEventExt, error) {
	if len(m.endpoints) == 0 {
		time.Sleep(minDuration(remaining, innerPollInterval))
		return types.LiveEventExt{}, ErrTimeout
	}

	deadline := time.Now().Add(remaining)
	idx := m.next
	for {
		now := time.Now()
		if !now.Before(deadline) {
			return types.LiveEventExt{}, ErrTimeout
		}

		ep := m.endpoints[idx%len(m.endpoints)]
		idx++
		m.next = idx % len(m.endpoints)

		inner := minDuration(deadline.Sub(now), innerPollInterval)
		ev, err := ep.RecvOne(ctx, botID, inner)
		switch {
		case err == nil:
			return ev, nil
		case errors.Is(err, ErrTimeout):
			continue
		case errors.Is(err, ErrInterrupted):
			return types.LiveEventExt{}, ErrInterrupted
		default:
			return types.LiveEventExt{}, err
		}
	}
}

// Publish sends req on the endpoint assigned to assetNo.
func (m *Multiplexer) Publish(ctx context.Context, botID uint64, assetNo int, req types.Request) error {
	if assetNo < 0 || assetNo >= len(m.assetEndpoint) {
		return errors.New("transport: asset index out of range")
	}
	return m.assetEndpoint[assetNo].Publish(ctx, botID, req)
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
