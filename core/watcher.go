// Package core implements commonly used tools.
//
// Documentation Last Review: 15.10.2026
//
package core

import (
	"context"
	"sync"
)

// DefaultWatchBuffer is the size of the buffer of the channels returned by
// Watch.
const DefaultWatchBuffer = 100

// Observer is the interface to implement to watch events.
type Observer[T any] interface {
	NotifyCallback(event T)
}

// Observable provides primitives to add and remove observers and to notify
// them of new events.
type Observable[T any] interface {
	// Add adds the observer to the list of observers that will be notified of
	// new events.
	Add(observer Observer[T])

	// Remove removes the observer from the list thus stopping it from receiving
	// new events.
	Remove(observer Observer[T])

	// Notify notifies the observers of a new event.
	Notify(event T)
}

// Watcher is an implementation of the Observable interface.
//
// - implements core.Observable
type Watcher[T any] struct {
	sync.RWMutex

	observers map[Observer[T]]struct{}
}

// NewWatcher creates a new empty watcher.
func NewWatcher[T any]() *Watcher[T] {
	return &Watcher[T]{
		observers: make(map[Observer[T]]struct{}),
	}
}

// Add implements core.Observable. It adds the observer to the list of observers
// that will be notified of new events.
func (w *Watcher[T]) Add(observer Observer[T]) {
	w.Lock()
	w.observers[observer] = struct{}{}
	w.Unlock()
}

// Remove implements core.Observable. It removes the observer from the list thus
// stopping it from receiving new events.
func (w *Watcher[T]) Remove(observer Observer[T]) {
	w.Lock()
	delete(w.observers, observer)
	w.Unlock()
}

// Notify implements core.Observable. It notifies the whole list of observers
// one after each other.
func (w *Watcher[T]) Notify(event T) {
	w.RLock()
	defer w.RUnlock()

	for obs := range w.observers {
		obs.NotifyCallback(event)
	}
}

// Watch returns a channel populated with the events until the context is
// done, at which point the channel is closed. An event is dropped for this
// channel if its buffer is full.
func (w *Watcher[T]) Watch(ctx context.Context) <-chan T {
	ch := make(chan T, DefaultWatchBuffer)

	obs := chanObserver[T]{ch: ch}
	w.Add(obs)

	go func() {
		<-ctx.Done()
		w.Remove(obs)
		close(ch)
	}()

	return ch
}

// chanObserver forwards the events to a channel.
//
// - implements core.Observer
type chanObserver[T any] struct {
	ch chan T
}

// NotifyCallback implements core.Observer.
func (obs chanObserver[T]) NotifyCallback(event T) {
	select {
	case obs.ch <- event:
	default:
	}
}
