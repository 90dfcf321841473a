package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/updownlabs/updownd/internal/domain"
)

// watchChannels are the bus channels the watcher follows for operator
// alerts.
var watchChannels = []string{
	domain.ChannelMarkets,
	domain.ChannelSettlements,
}

// Watcher subscribes to engine events on the signal bus and forwards a
// human-readable summary of each to the notifier.
type Watcher struct {
	bus      domain.SignalBus
	notifier *Notifier
	logger   *slog.Logger
}

// NewWatcher creates a Watcher.
func NewWatcher(bus domain.SignalBus, notifier *Notifier, logger *slog.Logger) *Watcher {
	return &Watcher{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "notify_watcher")),
	}
}

// Run subscribes to the watch channels and blocks until the context is
// cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	for _, ch := range watchChannels {
		msgCh, err := w.bus.Subscribe(ctx, ch)
		if err != nil {
			return fmt.Errorf("notify: subscribe %s: %w", ch, err)
		}
		go w.consume(ctx, ch, msgCh)
	}

	<-ctx.Done()
	return ctx.Err()
}

func (w *Watcher) consume(ctx context.Context, channel string, msgCh <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				return
			}
			var ev domain.Event
			if err := json.Unmarshal(data, &ev); err != nil {
				w.logger.WarnContext(ctx, "undecodable event",
					slog.String("channel", channel),
					slog.String("error", err.Error()),
				)
				continue
			}
			title, message := format(ev)
			if err := w.notifier.Notify(ctx, ev.Type, title, message); err != nil {
				w.logger.WarnContext(ctx, "notify failed",
					slog.String("event", ev.Type),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// format renders an event into a notification title and body.
func format(ev domain.Event) (title, message string) {
	marketID := uint64(0)
	if ev.MarketID != nil {
		marketID = *ev.MarketID
	}

	switch ev.Type {
	case domain.EventMarketCreated:
		return "Market opened",
			fmt.Sprintf("Market %d opened at price %d", marketID, ev.Amount)
	case domain.EventMarketResolved:
		return "Market resolved",
			fmt.Sprintf("Market %d resolved at price %d, winner: %s", marketID, ev.EndPrice, ev.Winner)
	case domain.EventWinningsClaimed:
		return "Winnings claimed",
			fmt.Sprintf("Market %d: %s claimed %d (fee %d)", marketID, ev.Account, ev.Amount, ev.Fee)
	case domain.EventFeesWithdrawn:
		return "Fees withdrawn",
			fmt.Sprintf("Owner withdrew %d from the pool", ev.Amount)
	default:
		return ev.Type, fmt.Sprintf("Market %d: %s", marketID, ev.Type)
	}
}
