package memory

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/updownlabs/updownd/internal/domain"
)

// streamMaxLen caps each in-memory stream, mirroring the approximate MAXLEN
// trimming of the Redis-backed bus.
const streamMaxLen = 10000

type subscriber struct {
	pattern string
	ch      chan []byte
}

// SignalBus implements domain.SignalBus in-process. Pub/sub delivery is
// best-effort: messages to a subscriber with a full buffer are dropped, as
// with Redis pub/sub.
type SignalBus struct {
	mu      sync.RWMutex
	subs    map[*subscriber]bool
	streams map[string][]domain.StreamMessage
	seq     uint64
}

// NewSignalBus creates an empty SignalBus.
func NewSignalBus() *SignalBus {
	return &SignalBus{
		subs:    make(map[*subscriber]bool),
		streams: make(map[string][]domain.StreamMessage),
	}
}

// Publish delivers the payload to every subscriber whose pattern matches the
// channel.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	for sub := range sb.subs {
		if !patternMatch(sub.pattern, channel) {
			continue
		}
		select {
		case sub.ch <- payload:
		default:
			// Slow subscriber; drop like Redis pub/sub would.
		}
	}
	return nil
}

// Subscribe returns a channel of payloads published to channels matching the
// given name or glob-style prefix pattern. The subscription ends when the
// context is cancelled.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	sub := &subscriber{pattern: channel, ch: make(chan []byte, 128)}

	sb.mu.Lock()
	sb.subs[sub] = true
	sb.mu.Unlock()

	out := make(chan []byte, 128)
	go func() {
		defer close(out)
		defer func() {
			sb.mu.Lock()
			delete(sb.subs, sub)
			sb.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case payload := <-sub.ch:
				select {
				case out <- payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// StreamAppend appends a payload to the named stream, trimming to the cap.
func (sb *SignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	sb.seq++
	entries := append(sb.streams[stream], domain.StreamMessage{
		ID:      strconv.FormatUint(sb.seq, 10),
		Payload: payload,
	})
	if len(entries) > streamMaxLen {
		entries = entries[len(entries)-streamMaxLen:]
	}
	sb.streams[stream] = entries
	return nil
}

// StreamRead returns up to count messages with IDs strictly after lastID.
// Use "0" to read from the beginning.
func (sb *SignalBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	last, _ := strconv.ParseUint(lastID, 10, 64)

	sb.mu.RLock()
	defer sb.mu.RUnlock()

	var out []domain.StreamMessage
	for _, msg := range sb.streams[stream] {
		id, _ := strconv.ParseUint(msg.ID, 10, 64)
		if id <= last {
			continue
		}
		out = append(out, msg)
		if count > 0 && len(out) >= count {
			break
		}
	}
	return out, nil
}

// patternMatch supports exact names and trailing-star globs ("markets",
// "stream:*"), which is all the hub subscribes with.
func patternMatch(pattern, channel string) bool {
	if pattern == channel {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(channel, strings.TrimSuffix(pattern, "*"))
	}
	return false
}

// Compile-time interface check.
var _ domain.SignalBus = (*SignalBus)(nil)
