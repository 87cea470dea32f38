// Package depth implements the market-depth capability instrument slots
// rely on: update-bid/update-ask mutation plus best-bid/ask and mid-price
// reads. The book is a pluggable capability; this package supplies the one
// concrete implementation slots use by default, carrying prices as
// decimal.Decimal throughout so book maintenance never compares floats
// directly.
package depth

import (
	"sync"

	"github.com/shopspring/decimal"
)

// MarketDepth is the capability contract instrument slots rely on. Any type
// satisfying it — this package's L2Depth or a connector-specific
// implementation — can back an instrument's book.
type MarketDepth interface {
	UpdateBidDepth(px, qty float64, exchTs int64)
	UpdateAskDepth(px, qty float64, exchTs int64)
	BestBid() (decimal.Decimal, bool)
	BestAsk() (decimal.Decimal, bool)
	MidPrice() (decimal.Decimal, bool)
	BidQty(px decimal.Decimal) decimal.Decimal
	AskQty(px decimal.Decimal) decimal.Decimal
}

// L2Depth is a price-level order book mirror for one instrument. Levels are
// keyed by decimal price so repeated updates at the same tick never drift.
// Best bid/ask are tracked incrementally on every mutation rather than
// recomputed by scanning the whole map, except when the current best level
// itself empties out, in which case a scan is unavoidable.
type L2Depth struct {
	mu   sync.RWMutex
	bids map[string]decimal.Decimal // price.String() -> qty
	asks map[string]decimal.Decimal

	bestBid    decimal.Decimal
	haveBid    bool
	bestAsk    decimal.Decimal
	haveAsk    bool
	lastExchTs int64
}

// NewL2Depth creates an empty depth mirror.
func NewL2Depth() *L2Depth {
	return &L2Depth{
		bids: make(map[string]decimal.Decimal),
		asks: make(map[string]decimal.Decimal),
	}
}

// UpdateBidDepth sets (or, at qty == 0, removes) the bid level at px.
func (d *L2Depth) UpdateBidDepth(px, qty float64, exchTs int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	price := decimal.NewFromFloat(px)
	d.lastExchTs = exchTs

	if qty <= 0 {
		delete(d.bids, price.String())
		if d.haveBid && price.Equal(d.bestBid) {
			d.recomputeBestBidLocked()
		}
		return
	}
	d.bids[price.String()] = decimal.NewFromFloat(qty)
	if !d.haveBid || price.GreaterThan(d.bestBid) {
		d.bestBid = price
		d.haveBid = true
	}
}

// UpdateAskDepth sets (or, at qty == 0, removes) the ask level at px.
func (d *L2Depth) UpdateAskDepth(px, qty float64, exchTs int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	price := decimal.NewFromFloat(px)
	d.lastExchTs = exchTs

	if qty <= 0 {
		delete(d.asks, price.String())
		if d.haveAsk && price.Equal(d.bestAsk) {
			d.recomputeBestAskLocked()
		}
		return
	}
	d.asks[price.String()] = decimal.NewFromFloat(qty)
	if !d.haveAsk || price.LessThan(d.bestAsk) {
		d.bestAsk = price
		d.haveAsk = true
	}
}

func (d *L2Depth) recomputeBestBidLocked() {
	d.haveBid = false
	for key := range d.bids {
		p, err := decimal.NewFromString(key)
		if err != nil {
			continue
		}
		if !d.haveBid || p.GreaterThan(d.bestBid) {
			d.bestBid = p
			d.haveBid = true
		}
	}
}

func (d *L2Depth) recomputeBestAskLocked() {
	d.haveAsk = false
	for key := range d.asks {
		p, err := decimal.NewFromString(key)
		if err != nil {
			continue
		}
		if !d.haveAsk || p.LessThan(d.bestAsk) {
			d.bestAsk = p
			d.haveAsk = true
		}
	}
}

// BestBid returns the current best bid price, if any level is resting.
func (d *L2Depth) BestBid() (decimal.Decimal, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.bestBid, d.haveBid
}

// BestAsk returns the current best ask price, if any level is resting.
func (d *L2Depth) BestAsk() (decimal.Decimal, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.bestAsk, d.haveAsk
}

// MidPrice returns (bestBid+bestAsk)/2, false if either side is empty.
func (d *L2Depth) MidPrice() (decimal.Decimal, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.haveBid || !d.haveAsk {
		return decimal.Zero, false
	}
	return d.bestBid.Add(d.bestAsk).Div(decimal.NewFromInt(2)), true
}

// BidQty returns the resting quantity at px on the bid side (zero if none).
func (d *L2Depth) BidQty(px decimal.Decimal) decimal.Decimal {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if q, ok := d.bids[px.String()]; ok {
		return q
	}
	return decimal.Zero
}

// AskQty returns the resting quantity at px on the ask side (zero if none).
func (d *L2Depth) AskQty(px decimal.Decimal) decimal.Decimal {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if q, ok := d.asks[px.String()]; ok {
		return q
	}
	return decimal.Zero
}

// LastExchTimestamp returns the exch_ts of the most recent depth mutation.
func (d *L2Depth) LastExchTimestamp() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastExchTs
}
