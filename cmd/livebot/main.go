// livebot is the live trading bot core described by internal/bot: a
// connector-agnostic, single-threaded event loop that mirrors order and
// market-feed state locally and exposes a synchronous Submit/Cancel/Elapse
// API to a strategy.
//
// Architecture:
//
//	main.go                        — entry point: loads config, wires connectors, runs the elapse loop until shutdown
//	internal/config/config.go      — viper-loaded YAML config with LIVEBOT_* env overrides
//	internal/transport             — Endpoint interface and the fair-round-robin multiplexer
//	internal/transport/wstransport — websocket Endpoint for an out-of-process connector
//	internal/transport/looptransport — in-process channel Endpoint, used here for the demo connector
//	internal/instrument/instrument.go — per-(connector,symbol) book/order/position mirror
//	internal/mirror/mirror.go      — order update reconciliation
//	internal/dispatch/dispatch.go  — LiveEvent classification and routing
//	internal/bot                  — the elapse loop and the Builder/Bot facade
//	internal/audit/audit.go        — append-only JSONL record of order updates and connector errors
//
// No connector ships with this package: every instrument must be wired to
// either a wstransport.Endpoint (for a real out-of-process connector) or a
// looptransport.Endpoint (for the in-process demo connector started below
// when no websocket URL is configured for that connector name).
package main

import (
	"context"
	"flag"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"livebot/internal/audit"
	"livebot/internal/bot"
	"livebot/internal/config"
	"livebot/internal/depth"
	"livebot/internal/transport"
	"livebot/internal/transport/looptransport"
	"livebot/internal/transport/wstransport"
	"livebot/pkg/types"
)

func main() {
	defaultCfgPath := "configs/config.yaml"
	if p := os.Getenv("LIVEBOT_CONFIG"); p != "" {
		defaultCfgPath = p
	}
	cfgPath := flag.String("config", defaultCfgPath, "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", *cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)

	auditPath := cfg.Audit.Path
	if auditPath == "" {
		auditPath = "data/audit.jsonl"
	}
	auditLog, err := audit.Open(auditPath)
	if err != nil {
		logger.Error("failed to open audit log", "error", err, "path", auditPath)
		os.Exit(1)
	}
	defer auditLog.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	builder := bot.NewBuilder(func(connectorName string) (transport.Endpoint, error) {
		if url, ok := cfg.Transport.WebsocketURLs[connectorName]; ok {
			ep := wstransport.New(connectorName, url, logger)
			go ep.Run(ctx)
			return ep, nil
		}
		ep := looptransport.New(connectorName, 256)
		go runDemoConnector(ctx, ep, logger)
		return ep, nil
	})

	for _, inst := range cfg.Instruments {
		builder.AddInstrument(bot.InstrumentSpec{
			ConnectorName: inst.ConnectorName,
			Symbol:        inst.Symbol,
			TickSize:      inst.TickSize,
			LotSize:       inst.LotSize,
			Depth:         depth.NewL2Depth(),
			TradeCapacity: inst.TradeCapacity,
		})
	}

	builder.WithErrorHandler(func(e types.LiveError) error {
		logger.Warn("connector error", "code", e.Code, "message", e.Message)
		return auditLog.Append("connector_error", "", e)
	})
	builder.WithOrderRecvHook(func(existing, update types.Order) error {
		return auditLog.Append("order_update", "", update)
	})
	if cfg.Bot.ID != 0 {
		builder.WithBotID(cfg.Bot.ID)
	}

	b, err := builder.Build(ctx)
	if err != nil {
		logger.Error("failed to build bot", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	logger.Info("livebot started", "bot_id", b.ID(), "instruments", len(cfg.Instruments))

	for ctx.Err() == nil {
		ok, err := b.Elapse(ctx, time.Second)
		if err != nil {
			logger.Error("elapse failed", "error", err)
			break
		}
		if !ok {
			break
		}
	}

	logger.Info("livebot shutting down")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// runDemoConnector simulates a connector for instruments that have no
// websocket URL configured: it emits a synthetic depth tick every 200ms and
// echoes every submit/cancel request back as an immediate order
// acknowledgement, so the bot has something to elapse against without any
// external dependency.
func runDemoConnector(ctx context.Context, ep *looptransport.Endpoint, logger *slog.Logger) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	symbols := make(map[string]float64)

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-ep.ConnectorRequests():
			switch r := req.(type) {
			case types.AddInstrumentRequest:
				symbols[r.Symbol] = 100 * r.TickSize
			case types.OrderRequest:
				ack := r.Order
				ack.LocalTimestamp = time.Now().UnixNano()
				ack.ExchTimestamp = time.Now().UnixNano()
				if ack.Req == types.Canceled {
					ack.Status = types.Canceled
				} else {
					ack.Status = types.New
				}
				if err := ep.ConnectorSend(ctx, types.LiveEventExt{
					Kind:  types.Normal,
					Event: types.OrderEvent{Symbol: r.Symbol, Order: ack},
				}); err != nil {
					logger.Warn("demo connector send failed", "error", err)
				}
			}
		case <-ticker.C:
			for symbol, px := range symbols {
				tick := types.Event{
					Flags:   types.LocalBidDepthEvent,
					Px:      px + rand.Float64()*px*0.001,
					Qty:     1 + rand.Float64()*9,
					ExchTs:  time.Now().UnixNano(),
					LocalTs: time.Now().UnixNano(),
				}
				ep.ConnectorSend(ctx, types.LiveEventExt{
					Kind:  types.Normal,
					Event: types.FeedEvent{Symbol: symbol, Event: tick},
				})
			}
		}
	}
}
