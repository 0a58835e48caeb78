package kv

import (
	"context"
	"sync"
)

// Op identifies the kind of change reported by a Watcher.
type Op uint8

const (
	// OpSet reports that a key was created or overwritten.
	OpSet Op = iota + 1
	// OpRemove reports that a key was deleted.
	OpRemove
)

func (op Op) String() string {
	switch op {
	case OpSet:
		return "set"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Change describes a single key mutation.
type Change struct {
	Key string
	Op  Op
}

// Watcher is an optional interface for stores that publish key changes.
type Watcher interface {
	// Watch returns a channel of changes. The channel is closed when ctx is
	// done. Changes are dropped for a subscriber that does not keep up.
	Watch(ctx context.Context) (<-chan Change, error)
}

const watchBuffer = 128

// hub fans changes out to subscribers.
type hub struct {
	mu   sync.Mutex
	subs map[chan Change]struct{}
}

func (h *hub) subscribe(ctx context.Context) <-chan Change {
	ch := make(chan Change, watchBuffer)

	h.mu.Lock()
	if h.subs == nil {
		h.subs = make(map[chan Change]struct{})
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
		close(ch)
	}()

	return ch
}

func (h *hub) publish(changes ...Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		for _, c := range changes {
			select {
			case ch <- c:
			default:
			}
		}
	}
}
