package event

import (
	"log/slog"
	"sync"
)

type HandlerFunc func(raw any)

// Bus fans events out to subscribers. Publish never blocks the caller's
// frame: every handler runs on its own goroutine.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string]map[uint64]HandlerFunc
	wg       sync.WaitGroup
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string]map[uint64]HandlerFunc),
	}
}

// Subscribe registers handler for eventName and returns a function that
// removes it again.
func (b *Bus) Subscribe(eventName string, handler HandlerFunc) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	if b.handlers[eventName] == nil {
		b.handlers[eventName] = make(map[uint64]HandlerFunc)
	}
	b.handlers[eventName][id] = handler
	return func() {
		b.mu.Lock()
		delete(b.handlers[eventName], id)
		b.mu.Unlock()
	}
}

func (b *Bus) Publish(eventName string, evt any) {
	b.mu.RLock()
	handlers := make([]HandlerFunc, 0, len(b.handlers[eventName]))
	for _, h := range b.handlers[eventName] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.wg.Add(1)
		go func(h HandlerFunc) {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Event handler panicked", "event", eventName, "panic", r)
				}
			}()
			h(evt)
		}(handler)
	}
}

// Wait blocks until every handler started so far has returned.
func (b *Bus) Wait() {
	b.wg.Wait()
}
