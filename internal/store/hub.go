package store

import (
	"bytes"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

type hubEventKind int

const (
	eventRegister hubEventKind = iota
	eventUnregister
	eventBroadcast
)

// All events share one channel so a subscription registered after a write
// can never observe that write's broadcast before its own registration.
type hubEvent struct {
	kind    hubEventKind
	watcher *watcher
	root    string
	doc     []byte
}

// Hub fans root document changes out to the subscriptions watching them.
// Backends call Broadcast after every committed change; the Run loop
// recomputes each watched subtree and delivers it only when it differs from
// what that watcher last saw.
type Hub struct {
	watchers map[uint64]*watcher
	events   chan hubEvent
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	nextID   atomic.Uint64
}

// NewHub creates a Hub. Call Run in its own goroutine.
func NewHub() *Hub {
	return &Hub{
		watchers: make(map[uint64]*watcher),
		events:   make(chan hubEvent, 256),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run is the hub's event loop. It returns after Stop.
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case ev := <-h.events:
			switch ev.kind {
			case eventRegister:
				w := ev.watcher
				h.watchers[w.id] = w
				w.last = w.initial
				w.offer(w.initial)

			case eventUnregister:
				delete(h.watchers, ev.watcher.id)

			case eventBroadcast:
				for _, w := range h.watchers {
					if w.path.Root != ev.root {
						continue
					}
					value := Get(ev.doc, w.path)
					if bytes.Equal(value, w.last) {
						continue
					}
					w.last = value
					w.offer(value)
				}
			}

		case <-h.quit:
			for id, w := range h.watchers {
				w.stop()
				delete(h.watchers, id)
			}
			return
		}
	}
}

// Stop ends the Run loop and every live subscription.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
	})
	<-h.done
}

// Watch creates and registers a subscription. initial is the value at
// path observed by the caller under the same lock that orders its writes.
func (h *Hub) Watch(path Path, initial json.RawMessage, onChange func(json.RawMessage)) (Subscription, error) {
	w := &watcher{
		id:       h.nextID.Add(1),
		path:     path,
		onChange: onChange,
		initial:  initial,
		mailbox:  make(chan json.RawMessage, 1),
		done:     make(chan struct{}),
		hub:      h,
	}
	if !h.send(hubEvent{kind: eventRegister, watcher: w}) {
		return nil, ErrClosed
	}
	go w.pump()
	log.Debug().Str("module", "store.hub").Str("path", path.String()).Uint64("watcher", w.id).Msg("watch registered")
	return w, nil
}

// Broadcast announces the new content of a root document.
func (h *Hub) Broadcast(root string, doc []byte) {
	h.send(hubEvent{kind: eventBroadcast, root: root, doc: clone(doc)})
}

func (h *Hub) unregister(w *watcher) {
	h.send(hubEvent{kind: eventUnregister, watcher: w})
}

func (h *Hub) send(ev hubEvent) bool {
	select {
	case <-h.quit:
		return false
	default:
	}
	select {
	case h.events <- ev:
		return true
	case <-h.quit:
		return false
	}
}

type watcher struct {
	id       uint64
	path     Path
	onChange func(json.RawMessage)
	initial  json.RawMessage
	last     json.RawMessage
	mailbox  chan json.RawMessage
	done     chan struct{}
	once     sync.Once
	hub      *Hub
}

// offer keeps only the newest undelivered value. Only the Run loop calls it.
func (w *watcher) offer(value json.RawMessage) {
	select {
	case w.mailbox <- value:
		return
	default:
	}
	select {
	case <-w.mailbox:
	default:
	}
	w.mailbox <- value
}

func (w *watcher) pump() {
	for {
		select {
		case <-w.done:
			return
		case value := <-w.mailbox:
			select {
			case <-w.done:
				return
			default:
			}
			w.onChange(value)
		}
	}
}

func (w *watcher) stop() {
	w.once.Do(func() {
		close(w.done)
	})
}

// Cancel implements Subscription.
func (w *watcher) Cancel() {
	select {
	case <-w.done:
		return
	default:
	}
	w.stop()
	w.hub.unregister(w)
	log.Debug().Str("module", "store.hub").Str("path", w.path.String()).Uint64("watcher", w.id).Msg("watch cancelled")
}
