package usecase

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
)

// DefaultDebounceWindow is the default coalescing window
const DefaultDebounceWindow = 500 * time.Millisecond

// ErrAggregatorClosed is returned by Enqueue after Close
var ErrAggregatorClosed = errors.New("aggregator closed")

// AggregationKey derives the buffer key for an event. Group keys include
// the sender so that concurrent senders in one group never share a buffer.
func AggregationKey(ev *domain.RawEvent) string {
	if ev.ChatType.IsGroup() {
		return fmt.Sprintf("%s:group:%s:%s", ev.AccountID, ev.ChatID, ev.SenderID)
	}
	return fmt.Sprintf("%s:%s:%s", ev.AccountID, ev.ChatID, ev.SenderID)
}

// FlushFunc receives the ordered messages of one detached buffer
type FlushFunc func(key string, msgs []*domain.InboundMessage)

// debounceSlot is the state of one key while it is buffering.
// A key with no slot is idle.
type debounceSlot struct {
	msgs  []*domain.InboundMessage
	timer *time.Timer
	seq   uint64
}

// Debouncer coalesces rapid text fragments per key into one flush
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	slots   map[string]*debounceSlot
	closed  bool
	onFlush FlushFunc
	onError func(key string, err error)
	// onDetach runs under mu when a buffer is detached; the func it
	// returns runs once the flush callback has finished
	onDetach func() func()
}

// NewDebouncer creates a debouncer. onError may be nil.
func NewDebouncer(window time.Duration, onFlush FlushFunc, onError func(key string, err error)) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	if onError == nil {
		onError = func(string, error) {}
	}
	return &Debouncer{
		window:  window,
		slots:   make(map[string]*debounceSlot),
		onFlush: onFlush,
		onError: onError,
	}
}

// OnDetach registers fn to run while a buffer is detached for flushing,
// before the lock is released. It lets callers account for the flush as
// in-flight work with no window where the buffer is neither pending nor
// flushing. fn must not call back into the Debouncer. Register it before
// the first Enqueue.
func (d *Debouncer) OnDetach(fn func() func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onDetach = fn
}

// Enqueue appends msg to the buffer for key and restarts its timer.
// Only buffer-eligible messages may be enqueued.
func (d *Debouncer) Enqueue(key string, msg *domain.InboundMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrAggregatorClosed
	}

	slot, ok := d.slots[key]
	if !ok {
		slot = &debounceSlot{}
		d.slots[key] = slot
	}
	slot.msgs = append(slot.msgs, msg)
	slot.seq++
	if slot.timer != nil {
		slot.timer.Stop()
	}
	seq := slot.seq
	slot.timer = time.AfterFunc(d.window, func() { d.fire(key, slot, seq) })
	return nil
}

// fire runs on the timer goroutine. A stale timer (reset or closed
// after it was scheduled) finds a different slot or seq and does nothing.
func (d *Debouncer) fire(key string, slot *debounceSlot, seq uint64) {
	d.mu.Lock()
	if d.closed || d.slots[key] != slot || slot.seq != seq {
		d.mu.Unlock()
		return
	}
	delete(d.slots, key)
	msgs := slot.msgs
	slot.msgs = nil
	done := func() {}
	if d.onDetach != nil {
		done = d.onDetach()
	}
	d.mu.Unlock()

	defer done()
	d.run(key, msgs)
}

func (d *Debouncer) run(key string, msgs []*domain.InboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			d.onError(key, fmt.Errorf("flush panic: %v", r))
		}
	}()
	d.onFlush(key, msgs)
}

// Pending returns the number of keys currently buffering
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.slots)
}

// Close stops every pending timer and discards the buffered messages.
// Buffers are abandoned, not flushed. It returns the number of discarded
// messages.
func (d *Debouncer) Close() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0
	}
	d.closed = true

	dropped := 0
	for key, slot := range d.slots {
		if slot.timer != nil {
			slot.timer.Stop()
		}
		dropped += len(slot.msgs)
		delete(d.slots, key)
	}
	return dropped
}
