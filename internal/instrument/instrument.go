// Package instrument implements the per-(connector, symbol) slot: the order
// book, open-order map, position, recent-trade ring, and latency snapshots
// that one instrument owns for the lifetime of the bot.
package instrument

import (
	"sync"

	"livebot/internal/depth"
	"livebot/pkg/types"
)

// FeedLatency is the (exch_ts, local_ts) pair of the most recent feed tick.
type FeedLatency struct {
	ExchTs  int64
	LocalTs int64
}

// OrderLatency is the (req_local_ts, exch_ts, recv_local_ts) triple of the
// most recent order update, set on every reconciliation attempt regardless
// of whether the update was applied or dropped.
type OrderLatency struct {
	ReqLocalTs  int64
	ExchTs      int64
	RecvLocalTs int64
}

// Slot is one instrument's complete local state. All access goes through its
// methods, which hold the internal lock; callers never see interior mutable
// state across a suspension point because the bot loop is single-threaded,
// but the lock still protects against hook re-entrancy and keeps the type
// safe to read from diagnostics/tests concurrently with the loop.
type Slot struct {
	mu sync.RWMutex

	connectorName string
	symbol        string
	assetNo       int

	tickSize float64
	lotSize  float64

	depth depth.MarketDepth

	orders map[uint64]types.Order

	state types.StateValues

	tradeCapacity int
	recentTrades  []types.Event // ring, oldest first, capped at tradeCapacity

	lastFeedLatency  FeedLatency
	lastOrderLatency OrderLatency
}

// New creates an instrument slot. d must not be nil; tradeCapacity == 0
// disables the recent-trades ring entirely.
func New(connectorName, symbol string, assetNo int, tickSize, lotSize float64, d depth.MarketDepth, tradeCapacity int) *Slot {
	return &Slot{
		connectorName: connectorName,
		symbol:        symbol,
		assetNo:       assetNo,
		tickSize:      tickSize,
		lotSize:       lotSize,
		depth:         d,
		orders:        make(map[uint64]types.Order),
		tradeCapacity: tradeCapacity,
	}
}

// ConnectorName, Symbol, AssetNo, TickSize, LotSize are pure identity reads;
// immutable for the slot's lifetime so no locking is needed.
func (s *Slot) ConnectorName() string { return s.connectorName }
func (s *Slot) Symbol() string        { return s.symbol }
func (s *Slot) AssetNo() int          { return s.assetNo }
func (s *Slot) TickSize() float64     { return s.tickSize }
func (s *Slot) LotSize() float64      { return s.lotSize }

// Depth exposes the book for read-only strategy access.
func (s *Slot) Depth() depth.MarketDepth { return s.depth }

// ApplyFeed applies one market feed tick to the book and/or recent-trades
// ring, and refreshes the feed-latency snapshot.
func (s *Slot) ApplyFeed(ev types.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case ev.Is(types.LocalBidDepthEvent):
		s.depth.UpdateBidDepth(ev.Px, ev.Qty, ev.ExchTs)
	case ev.Is(types.LocalAskDepthEvent):
		s.depth.UpdateAskDepth(ev.Px, ev.Qty, ev.ExchTs)
	case ev.Is(types.LocalBuyTradeEvent), ev.Is(types.LocalSellTradeEvent):
		s.appendTradeLocked(ev)
	}

	s.lastFeedLatency = FeedLatency{ExchTs: ev.ExchTs, LocalTs: ev.LocalTs}
}

func (s *Slot) appendTradeLocked(ev types.Event) {
	if s.tradeCapacity <= 0 {
		return
	}
	s.recentTrades = append(s.recentTrades, ev)
	if over := len(s.recentTrades) - s.tradeCapacity; over > 0 {
		s.recentTrades = s.recentTrades[over:]
	}
}

// ApplyPosition overwrites the slot's position. This is always an absolute
// overwrite; the slot never accumulates partial fills locally.
func (s *Slot) ApplyPosition(qty float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Position = qty
}

// OpenOrder inserts o under orderID. Returns false if orderID already exists
// (caller surfaces OrderIdExist).
func (s *Slot) OpenOrder(orderID uint64, o types.Order) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[orderID]; exists {
		return false
	}
	s.orders[orderID] = o
	return true
}

// Lookup returns a copy of the order at orderID, if present.
func (s *Slot) Lookup(orderID uint64) (types.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	return o, ok
}

// MutateOrder runs fn against a pointer to the live mirror entry at orderID
// under the slot's lock, so order reconciliation and the bot's cancel path
// observe a consistent view. Returns false if orderID is absent.
func (s *Slot) MutateOrder(orderID uint64, fn func(o *types.Order)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return false
	}
	fn(&o)
	s.orders[orderID] = o
	return true
}

// RemoveIfInactive deletes orderID from the map iff its status is terminal.
// Returns true if it was removed.
func (s *Slot) RemoveIfInactive(orderID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || !o.Status.Terminal() {
		return false
	}
	delete(s.orders, orderID)
	return true
}

// ClearInactiveOrders removes every order whose status is terminal.
func (s *Slot) ClearInactiveOrders() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, o := range s.orders {
		if o.Status.Terminal() {
			delete(s.orders, id)
		}
	}
}

// ClearLastTrades empties the recent-trades ring.
func (s *Slot) ClearLastTrades() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recentTrades = nil
}

// Orders returns a snapshot copy of every mirror entry.
func (s *Slot) Orders() map[uint64]types.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uint64]types.Order, len(s.orders))
	for id, o := range s.orders {
		out[id] = o
	}
	return out
}

// Position returns the current state values snapshot.
func (s *Slot) Position() types.StateValues {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastTrades returns a snapshot copy of the recent-trades ring, oldest first.
func (s *Slot) LastTrades() []types.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Event, len(s.recentTrades))
	copy(out, s.recentTrades)
	return out
}

// FeedLatency returns the last feed-latency snapshot.
func (s *Slot) FeedLatency() FeedLatency {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFeedLatency
}

// OrderLatency returns the last order-latency snapshot.
func (s *Slot) OrderLatency() OrderLatency {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastOrderLatency
}

// SetOrderLatency refreshes the order-latency snapshot. Order reconciliation
// calls this unconditionally, independent of whether the update it responds
// to was applied or dropped.
func (s *Slot) SetOrderLatency(reqLocalTs, exchTs, recvLocalTs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastOrderLatency = OrderLatency{ReqLocalTs: reqLocalTs, ExchTs: exchTs, RecvLocalTs: recvLocalTs}
}
