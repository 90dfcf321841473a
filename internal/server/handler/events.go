package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/updownlabs/updownd/internal/domain"
)

// eventChannels are the channels whose durable streams can be replayed.
var eventChannels = map[string]bool{
	domain.ChannelMarkets:     true,
	domain.ChannelPredictions: true,
	domain.ChannelSettlements: true,
	domain.ChannelStatus:      true,
}

// EventsHandler serves replay of past engine events from the signal bus
// streams. Clients without a live websocket can page through history with
// the returned cursor.
type EventsHandler struct {
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewEventsHandler creates an EventsHandler.
func NewEventsHandler(bus domain.SignalBus, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{bus: bus, logger: logger}
}

// ListEvents returns events published to a channel strictly after the given
// cursor. Use after=0 (the default) to read from the start of retained
// history; the response's "next" field is the cursor for the following page.
// GET /api/events?channel=markets&after=0&limit=100
func (h *EventsHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	channel := q.Get("channel")
	if channel == "" {
		channel = domain.ChannelMarkets
	}
	if !eventChannels[channel] {
		writeError(w, http.StatusBadRequest, "unknown event channel")
		return
	}

	after := q.Get("after")
	if after == "" {
		after = "0"
	}

	limit := 100
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	msgs, err := h.bus.StreamRead(r.Context(), "stream:"+channel, after, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: event replay failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read events")
		return
	}

	next := after
	events := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		events = append(events, map[string]any{
			"id":    m.ID,
			"event": json.RawMessage(m.Payload),
		})
		next = m.ID
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"channel": channel,
		"events":  events,
		"next":    next,
	})
}
