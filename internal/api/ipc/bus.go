package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"cdi-tracker/pkg/apperr"
	"cdi-tracker/pkg/logger"
)

// Handler serves one channel. payload is the raw JSON sent by the caller,
// possibly empty.
type Handler func(ctx context.Context, payload json.RawMessage) (interface{}, error)

// Observer is told about every call to a registered channel once it
// completes. kind is empty on success.
type Observer func(channel string, kind apperr.Kind, elapsed time.Duration)

// Bus maps channel names such as "student:create" to handlers.
type Bus struct {
	mu        sync.RWMutex
	handlers  map[string]Handler
	observers []Observer
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[string]Handler)}
}

// Handle registers h for channel. Registering a channel twice panics.
func (b *Bus) Handle(channel string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.handlers[channel]; exists {
		panic(fmt.Sprintf("ipc: channel %q registered twice", channel))
	}
	b.handlers[channel] = h
}

func (b *Bus) Observe(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, o)
}

// Channels lists the registered channel names, sorted.
func (b *Bus) Channels() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.handlers))
	for name := range b.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke runs the handler of channel and wraps its outcome in the envelope.
// The returned error carries the failure kind, nil on success; panics are
// reported as Transport failures.
func (b *Bus) Invoke(ctx context.Context, channel string, payload json.RawMessage) (resp Response, err error) {
	started := time.Now()

	b.mu.RLock()
	h, ok := b.handlers[channel]
	observers := b.observers
	b.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			logger.WithField("channel", channel).Errorf("Panic: %v\n%s", r, debug.Stack())
			err = apperr.Transport(fmt.Errorf("%v", r))
			resp = Fail(err)
		}
		if !ok {
			return
		}
		kind := apperr.KindOf(err)
		for _, o := range observers {
			o(channel, kind, time.Since(started))
		}
	}()

	if !ok {
		err = apperr.NotFound(fmt.Sprintf("Canal inconnu: %s", channel))
		return Fail(err), err
	}

	data, err := h(ctx, payload)
	if err != nil {
		e := apperr.As(err)
		if e.Kind == apperr.KindPersistence || e.Kind == apperr.KindTransport {
			logger.WithField("channel", channel).Errorf("Channel failed: %v", err)
		} else {
			logger.Debug("Channel %s rejected: %v", channel, err)
		}
		return Fail(e), e
	}
	if p, ok := data.(Partial); ok {
		err = apperr.Validation(p.Errors...)
		return fromPartial(p), err
	}
	return OK(data), nil
}

// Bind decodes payload into v. An empty payload leaves v untouched.
func Bind(payload json.RawMessage, v interface{}) error {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return apperr.Validation(fmt.Sprintf("Requête invalide: %v", err))
	}
	return nil
}
