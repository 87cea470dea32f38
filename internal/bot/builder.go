package bot

import (
	"context"
	"fmt"

	"livebot/internal/depth"
	"livebot/internal/instrument"
	"livebot/internal/transport"
	"livebot/pkg/types"
)

// InstrumentSpec describes one instrument the Builder should create a slot
// for: which connector it trades on, its symbol, tick/lot size, the depth
// implementation to back its book, and how many recent trades to retain.
type InstrumentSpec struct {
	ConnectorName string
	Symbol        string
	TickSize      float64
	LotSize       float64
	Depth         depth.MarketDepth
	TradeCapacity int
}

// EndpointFactory constructs (or looks up) the transport.Endpoint for a
// connector name. The Builder calls it at most once per distinct connector
// name across all instruments, so instruments sharing a connector share one
// Endpoint.
type EndpointFactory func(connectorName string) (transport.Endpoint, error)

// Builder validates configuration, primes connectors, and constructs a Bot.
type Builder struct {
	factory     EndpointFactory
	instruments []InstrumentSpec
	orderHook   OrderRecvHook
	errHandler  ErrorHandler
	id          uint64
	hasID       bool
	clockFn     func() int64
}

// NewBuilder creates a Builder that obtains connector endpoints via factory.
// It draws the default random bot id once, here; WithBotID overrides it.
func NewBuilder(factory EndpointFactory) *Builder {
	return &Builder{factory: factory, clockFn: defaultClock, id: defaultBotID()}
}

// AddInstrument appends one instrument specification.
func (b *Builder) AddInstrument(spec InstrumentSpec) *Builder {
	b.instruments = append(b.instruments, spec)
	return b
}

// WithOrderRecvHook registers the order-reconciliation veto hook.
func (b *Builder) WithOrderRecvHook(h OrderRecvHook) *Builder {
	b.orderHook = h
	return b
}

// WithErrorHandler registers the connector-error hook.
func (b *Builder) WithErrorHandler(h ErrorHandler) *Builder {
	b.errHandler = h
	return b
}

// WithBotID overrides the default random bot id.
func (b *Builder) WithBotID(id uint64) *Builder {
	b.id = id
	b.hasID = true
	return b
}

// withClock overrides the wall clock; test-only.
func (b *Builder) withClock(fn func() int64) *Builder {
	b.clockFn = fn
	return b
}

// Build validates the instrument list, creates or shares one endpoint per
// connector, primes every connector with an AddInstrument request, and
// assembles the multiplexer:
//  1. reject duplicate (connector, symbol) pairs;
//  2. create or share an endpoint per unique connector name;
//  3. publish AddInstrument on each instrument's endpoint;
//  4. build the multiplexer.
func (b *Builder) Build(ctx context.Context) (*Bot, error) {
	seen := make(map[string]bool, len(b.instruments))
	for _, spec := range b.instruments {
		key := spec.ConnectorName + "\x00" + spec.Symbol
		if seen[key] {
			return nil, fmt.Errorf("bot: duplicate (connector, symbol) pair: (%s, %s)", spec.ConnectorName, spec.Symbol)
		}
		seen[key] = true
	}

	reg := newRegistry()
	endpointByConnector := make(map[string]transport.Endpoint, len(b.instruments))
	assetEndpoint := make([]transport.Endpoint, 0, len(b.instruments))

	id := b.id

	for _, spec := range b.instruments {
		ep, ok := endpointByConnector[spec.ConnectorName]
		if !ok {
			var err error
			ep, err = b.factory(spec.ConnectorName)
			if err != nil {
				return nil, fmt.Errorf("bot: building endpoint for connector %q: %w", spec.ConnectorName, err)
			}
			endpointByConnector[spec.ConnectorName] = ep
		}

		d := spec.Depth
		if d == nil {
			d = depth.NewL2Depth()
		}
		slot := instrument.New(spec.ConnectorName, spec.Symbol, len(assetEndpoint), spec.TickSize, spec.LotSize, d, spec.TradeCapacity)
		reg.add(slot)
		assetEndpoint = append(assetEndpoint, ep)

		if err := ep.Publish(ctx, id, types.AddInstrumentRequest{Symbol: spec.Symbol, TickSize: spec.TickSize}); err != nil {
			return nil, fmt.Errorf("bot: priming connector %q for symbol %q: %w", spec.ConnectorName, spec.Symbol, err)
		}
	}

	mux := transport.NewMultiplexer(assetEndpoint)

	return &Bot{
		id:             id,
		mux:            mux,
		registry:       reg,
		userOrderHook:  b.orderHook,
		userErrHandler: b.errHandler,
		clockFn:        b.clockFn,
	}, nil
}
