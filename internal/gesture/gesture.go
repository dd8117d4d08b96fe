// Package gesture disambiguates one pointer press into a tap (photo) or a
// sustained hold (video) using a single timing threshold.
package gesture

import (
	"sync"
	"time"
)

// Hooks are the actions a press can route into. HoldActive reports whether a
// visual recording session is currently live; StopHold stops it.
type Hooks struct {
	Tap        func()
	Hold       func()
	HoldActive func() bool
	StopHold   func()
}

// Disambiguator arms a single-shot hold timer on press and resolves the
// press into exactly one action on release.
type Disambiguator struct {
	threshold time.Duration
	hooks     Hooks

	mu              sync.Mutex
	pressed         bool
	committedToHold bool
	pendingTimer    *time.Timer
	generation      uint64
}

// New constructs a disambiguator with the given hold threshold.
func New(threshold time.Duration, hooks Hooks) *Disambiguator {
	if hooks.Tap == nil {
		hooks.Tap = func() {}
	}
	if hooks.Hold == nil {
		hooks.Hold = func() {}
	}
	if hooks.HoldActive == nil {
		hooks.HoldActive = func() bool { return false }
	}
	if hooks.StopHold == nil {
		hooks.StopHold = func() {}
	}
	return &Disambiguator{threshold: threshold, hooks: hooks}
}

// PressStart arms the hold timer. Any previous timer is already cleared by
// PressEnd/PressCancel; a fresh generation guards against a stale callback
// from a prior press slipping through.
func (d *Disambiguator) PressStart() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pressed = true
	d.committedToHold = false
	d.generation++
	gen := d.generation
	d.pendingTimer = time.AfterFunc(d.threshold, func() {
		d.holdElapsed(gen)
	})
}

// holdElapsed commits to the hold action when the pointer is still down.
// The Hold hook runs under the lock: a PressEnd or PressCancel racing the
// timer fire must observe the hold already underway, never a committed press
// with no action taken.
func (d *Disambiguator) holdElapsed(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.pressed || gen != d.generation || d.committedToHold {
		return
	}
	d.committedToHold = true
	d.pendingTimer = nil

	d.hooks.Hold()
}

// PressEnd cancels any pending timer, then resolves the press: stop an
// active hold recording if one exists, otherwise fire the tap action unless
// the press already committed to hold. The committed flag always resets.
func (d *Disambiguator) PressEnd() {
	d.mu.Lock()
	d.cancelTimerLocked()
	committed := d.committedToHold
	d.committedToHold = false
	d.pressed = false
	d.mu.Unlock()

	if d.hooks.HoldActive() {
		d.hooks.StopHold()
		return
	}
	if !committed {
		d.hooks.Tap()
	}
}

// PressCancel cancels the timer and resets state without triggering any
// capture action.
func (d *Disambiguator) PressCancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelTimerLocked()
	d.committedToHold = false
	d.pressed = false
}

// cancelTimerLocked stops the pending timer. Cancelling an already-fired or
// already-cancelled timer is a no-op.
func (d *Disambiguator) cancelTimerLocked() {
	if d.pendingTimer != nil {
		d.pendingTimer.Stop()
		d.pendingTimer = nil
	}
}

// Armed reports whether a hold timer is currently pending.
func (d *Disambiguator) Armed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pendingTimer != nil
}

// CommittedToHold reports whether the current press passed the threshold.
func (d *Disambiguator) CommittedToHold() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.committedToHold
}
