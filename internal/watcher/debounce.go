package watcher

import (
	"context"
	"sync"
	"time"
)

// Debouncer groups rapid file changes together. Events are released in
// arrival order once no new event has arrived for the delay.
type Debouncer struct {
	delay   time.Duration
	output  chan []ChangeEvent
	timer   *time.Timer
	pending []ChangeEvent
	mutex   sync.Mutex
	kick    chan struct{}
}

func newDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:  delay,
		output: make(chan []ChangeEvent, 16),
		kick:   make(chan struct{}, 1),
	}
}

func (d *Debouncer) add(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.pending = append(d.pending, event)
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		select {
		case d.kick <- struct{}{}:
		default:
		}
	})
}

func (d *Debouncer) run(ctx context.Context, done <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-d.kick:
			events := d.take()
			if len(events) == 0 {
				continue
			}
			select {
			case d.output <- events:
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}
}

func (d *Debouncer) take() []ChangeEvent {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	events := d.pending
	d.pending = nil
	return events
}

func (d *Debouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}
