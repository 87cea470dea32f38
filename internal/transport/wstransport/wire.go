// wire.go defines the JSON envelope wstransport puts on the websocket wire.
// It exists only because this package serializes; looptransport, the
// in-process transport, passes the same Go values over channels and needs
// none of this. Every frame carries a "kind"/"framing" discriminator; a frame
// is unmarshaled whole, then the discriminator selects which payload field
// is decoded.
package wstransport

import (
	"encoding/json"
	"fmt"

	"livebot/pkg/types"
)

type wireEnvelope struct {
	BotID uint64          `json:"bot_id"`
	Kind  string          `json:"kind"`
	Data  json.RawMessage `json:"data"`
}

// ---- Request wire shapes ----

type wireAddInstrument struct {
	Symbol   string  `json:"symbol"`
	TickSize float64 `json:"tick_size"`
}

type wireOrder struct {
	OrderID       uint64  `json:"order_id"`
	Side          int     `json:"side"`
	TickSize      float64 `json:"tick_size"`
	PriceTick     int64   `json:"price_tick"`
	Qty           float64 `json:"qty"`
	LeavesQty     float64 `json:"leaves_qty"`
	ExecQty       float64 `json:"exec_qty"`
	ExecPriceTick int64   `json:"exec_price_tick"`
	TimeInForce   int     `json:"time_in_force"`
	OrderType     int     `json:"order_type"`
	Status        int     `json:"status"`
	Req           int     `json:"req"`
	LocalTs       int64   `json:"local_ts"`
	ExchTs        int64   `json:"exch_ts"`
	Maker         bool    `json:"maker"`
}

func toWireOrder(o types.Order) wireOrder {
	return wireOrder{
		OrderID:       o.OrderID,
		Side:          int(o.Side),
		TickSize:      o.TickSize,
		PriceTick:     o.PriceTick,
		Qty:           o.Qty,
		LeavesQty:     o.LeavesQty,
		ExecQty:       o.ExecQty,
		ExecPriceTick: o.ExecPriceTick,
		TimeInForce:   int(o.TimeInForce),
		OrderType:     int(o.OrderType),
		Status:        int(o.Status),
		Req:           int(o.Req),
		LocalTs:       o.LocalTimestamp,
		ExchTs:        o.ExchTimestamp,
		Maker:         o.Maker,
	}
}

func (w wireOrder) toOrder() types.Order {
	return types.Order{
		OrderID:        w.OrderID,
		Side:           types.Side(w.Side),
		TickSize:       w.TickSize,
		PriceTick:      w.PriceTick,
		Qty:            w.Qty,
		LeavesQty:      w.LeavesQty,
		ExecQty:        w.ExecQty,
		ExecPriceTick:  w.ExecPriceTick,
		TimeInForce:    types.TimeInForce(w.TimeInForce),
		OrderType:      types.OrdType(w.OrderType),
		Status:         types.Status(w.Status),
		Req:            types.Status(w.Req),
		LocalTimestamp: w.LocalTs,
		ExchTimestamp:  w.ExchTs,
		Maker:          w.Maker,
	}
}

type wireOrderRequest struct {
	Symbol string    `json:"symbol"`
	Order  wireOrder `json:"order"`
}

func encodeRequest(req types.Request) (kind string, data []byte, err error) {
	switch r := req.(type) {
	case types.AddInstrumentRequest:
		kind = "add_instrument"
		data, err = json.Marshal(wireAddInstrument{Symbol: r.Symbol, TickSize: r.TickSize})
	case types.OrderRequest:
		kind = "order"
		data, err = json.Marshal(wireOrderRequest{Symbol: r.Symbol, Order: toWireOrder(r.Order)})
	default:
		return "", nil, fmt.Errorf("wstransport: unknown request type %T", req)
	}
	return kind, data, err
}

// ---- Event wire shapes ----

type wireEvent struct {
	Flags   uint64  `json:"flags"`
	Px      float64 `json:"px"`
	Qty     float64 `json:"qty"`
	ExchTs  int64   `json:"exch_ts"`
	LocalTs int64   `json:"local_ts"`
}

type wireFeedEvent struct {
	Symbol string    `json:"symbol"`
	Event  wireEvent `json:"event"`
}

type wireOrderEvent struct {
	Symbol string    `json:"symbol"`
	Order  wireOrder `json:"order"`
}

type wirePositionEvent struct {
	Symbol string  `json:"symbol"`
	Qty    float64 `json:"qty"`
}

type wireErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type wireLiveEvent struct {
	Kind     string             `json:"kind"`
	Feed     *wireFeedEvent     `json:"feed,omitempty"`
	Order    *wireOrderEvent    `json:"order,omitempty"`
	Position *wirePositionEvent `json:"position,omitempty"`
	Error    *wireErrorEvent    `json:"error,omitempty"`
}

func decodeLiveEvent(w wireLiveEvent) (types.LiveEvent, error) {
	switch w.Kind {
	case "feed":
		if w.Feed == nil {
			return nil, fmt.Errorf("wstransport: feed event missing payload")
		}
		return types.FeedEvent{
			Symbol: w.Feed.Symbol,
			Event: types.Event{
				Flags:   types.EventFlag(w.Feed.Event.Flags),
				Px:      w.Feed.Event.Px,
				Qty:     w.Feed.Event.Qty,
				ExchTs:  w.Feed.Event.ExchTs,
				LocalTs: w.Feed.Event.LocalTs,
			},
		}, nil
	case "order":
		if w.Order == nil {
			return nil, fmt.Errorf("wstransport: order event missing payload")
		}
		return types.OrderEvent{Symbol: w.Order.Symbol, Order: w.Order.Order.toOrder()}, nil
	case "position":
		if w.Position == nil {
			return nil, fmt.Errorf("wstransport: position event missing payload")
		}
		return types.PositionEvent{Symbol: w.Position.Symbol, Qty: w.Position.Qty}, nil
	case "error":
		if w.Error == nil {
			return nil, fmt.Errorf("wstransport: error event missing payload")
		}
		return types.ConnectorErrorEvent{Err: types.LiveError{Code: w.Error.Code, Message: w.Error.Message}}, nil
	default:
		return nil, fmt.Errorf("wstransport: unknown event kind %q", w.Kind)
	}
}

func encodeLiveEvent(ev types.LiveEvent) (wireLiveEvent, error) {
	switch e := ev.(type) {
	case types.FeedEvent:
		return wireLiveEvent{Kind: "feed", Feed: &wireFeedEvent{
			Symbol: e.Symbol,
			Event: wireEvent{
				Flags:   uint64(e.Event.Flags),
				Px:      e.Event.Px,
				Qty:     e.Event.Qty,
				ExchTs:  e.Event.ExchTs,
				LocalTs: e.Event.LocalTs,
			},
		}}, nil
	case types.OrderEvent:
		return wireLiveEvent{Kind: "order", Order: &wireOrderEvent{Symbol: e.Symbol, Order: toWireOrder(e.Order)}}, nil
	case types.PositionEvent:
		return wireLiveEvent{Kind: "position", Position: &wirePositionEvent{Symbol: e.Symbol, Qty: e.Qty}}, nil
	case types.ConnectorErrorEvent:
		return wireLiveEvent{Kind: "error", Error: &wireErrorEvent{Code: e.Err.Code, Message: e.Err.Message}}, nil
	default:
		return wireLiveEvent{}, fmt.Errorf("wstransport: unknown live event type %T", ev)
	}
}

// wireEventExt is the outermost frame: normal / batch / end_of_batch.
type wireEventExt struct {
	Framing string         `json:"framing"`
	Event   *wireLiveEvent `json:"event,omitempty"`
}

func encodeEventExt(ext types.LiveEventExt) (wireEventExt, error) {
	var framing string
	switch ext.Kind {
	case types.Normal:
		framing = "normal"
	case types.Batch:
		framing = "batch"
	case types.EndOfBatch:
		return wireEventExt{Framing: "end_of_batch"}, nil
	default:
		return wireEventExt{}, fmt.Errorf("wstransport: unknown framing %d", ext.Kind)
	}
	we, err := encodeLiveEvent(ext.Event)
	if err != nil {
		return wireEventExt{}, err
	}
	return wireEventExt{Framing: framing, Event: &we}, nil
}

func decodeEventExt(w wireEventExt) (types.LiveEventExt, error) {
	switch w.Framing {
	case "end_of_batch":
		return types.LiveEventExt{Kind: types.EndOfBatch}, nil
	case "normal", "batch":
		if w.Event == nil {
			return types.LiveEventExt{}, fmt.Errorf("wstransport: %s frame missing event", w.Framing)
		}
		ev, err := decodeLiveEvent(*w.Event)
		if err != nil {
			return types.LiveEventExt{}, err
		}
		kind := types.Normal
		if w.Framing == "batch" {
			kind = types.Batch
		}
		return types.LiveEventExt{Kind: kind, Event: ev}, nil
	default:
		return types.LiveEventExt{}, fmt.Errorf("wstransport: unknown framing %q", w.Framing)
	}
}
