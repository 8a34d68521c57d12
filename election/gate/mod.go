// Package gate implements the controller that decides which section of a
// draft can be entered.
//
// A section is accessible when every earlier section, in the fixed order of
// election.Sections, is valid. The controller has no authority over the
// validity itself: it receives it on every change and derives the
// accessibility and the current step from it.
package gate

import (
	"context"
	"sync"

	"go.dedis.ch/ballot/core"
	"go.dedis.ch/ballot/election"
)

// SectionState is the derived state of one section.
type SectionState struct {
	Section    election.Section
	Valid      bool
	Accessible bool
}

// Snapshot is the state of every section at a given time.
type Snapshot struct {
	Sections []SectionState
	// Current is the first section that is not yet valid, or the complete
	// pseudo-section. It is only meant to focus the user interface.
	Current election.Section
}

// Get returns the state of the section.
func (s Snapshot) Get(section election.Section) SectionState {
	for _, state := range s.Sections {
		if state.Section == section {
			return state
		}
	}

	return SectionState{Section: section}
}

// CurrentIndex returns the position of the current section in the order.
func (s Snapshot) CurrentIndex() int {
	for i, sec := range election.Sections {
		if sec == s.Current {
			return i
		}
	}

	return 0
}

// Evaluate derives the snapshot from the validity of each section. A section
// missing from the map is invalid.
func Evaluate(valid map[election.Section]bool) Snapshot {
	snap := Snapshot{
		Sections: make([]SectionState, len(election.Sections)),
		Current:  election.SectionComplete,
	}

	accessible := true
	found := false

	for i, sec := range election.Sections {
		state := SectionState{
			Section:    sec,
			Accessible: accessible,
		}

		if sec == election.SectionComplete {
			state.Valid = accessible
		} else {
			state.Valid = valid[sec]
		}

		if !state.Valid && !found && sec != election.SectionComplete {
			snap.Current = sec
			found = true
		}

		accessible = accessible && state.Valid
		snap.Sections[i] = state
	}

	return snap
}

// Controller keeps the latest snapshot and notifies the watchers of every
// update.
type Controller struct {
	sync.Mutex

	snapshot Snapshot
	watcher  *core.Watcher[Snapshot]
}

// NewController returns a controller where no section is valid yet.
func NewController() *Controller {
	return &Controller{
		snapshot: Evaluate(nil),
		watcher:  core.NewWatcher[Snapshot](),
	}
}

// Update recomputes the snapshot with the new validity of the sections and
// notifies the watchers.
func (c *Controller) Update(valid map[election.Section]bool) Snapshot {
	snap := Evaluate(valid)

	c.Lock()
	c.snapshot = snap
	c.Unlock()

	c.watcher.Notify(snap)

	return snap
}

// Snapshot returns the latest snapshot.
func (c *Controller) Snapshot() Snapshot {
	c.Lock()
	defer c.Unlock()

	return c.snapshot
}

// Valid returns true if the section is currently valid.
func (c *Controller) Valid(section election.Section) bool {
	return c.Snapshot().Get(section).Valid
}

// Accessible returns true if every earlier section is currently valid.
func (c *Controller) Accessible(section election.Section) bool {
	return c.Snapshot().Get(section).Accessible
}

// Current returns the section that should have the focus.
func (c *Controller) Current() election.Section {
	return c.Snapshot().Current
}

// Watch returns a channel populated with the snapshots until the context is
// done.
func (c *Controller) Watch(ctx context.Context) <-chan Snapshot {
	return c.watcher.Watch(ctx)
}
