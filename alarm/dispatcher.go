package alarm

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrPermissionDenied means exact scheduling is not authorized. Recoverable:
// the caller surfaces it to the user instead of retrying silently.
var ErrPermissionDenied = errors.New("exact alarm scheduling not permitted")

// FireFunc is invoked with the reminder id when a timer elapses. No payload
// travels with the alarm; the handler reloads the record itself.
type FireFunc func(id string)

// Dispatcher keeps one pending exact one-shot timer per reminder id.
// Scheduling an id that already has a pending timer replaces it, so a
// re-schedule never duplicates a firing.
type Dispatcher struct {
	mu       sync.Mutex
	timers   map[string]*time.Timer
	fire     FireFunc
	canExact func() bool
	log      *zap.SugaredLogger
}

// New creates a Dispatcher. canExact is the exact-scheduling permission gate;
// nil means always permitted.
func New(fire FireFunc, canExact func() bool, log *zap.SugaredLogger) *Dispatcher {
	if canExact == nil {
		canExact = func() bool { return true }
	}
	return &Dispatcher{
		timers:   make(map[string]*time.Timer),
		fire:     fire,
		canExact: canExact,
		log:      log,
	}
}

// Schedule registers a one-shot timer for id at the given instant, replacing
// any pending timer under the same id.
func (d *Dispatcher) Schedule(id string, at time.Time) error {
	if !d.canExact() {
		d.log.Warnf("[alarm] exact scheduling denied, id=%s", id)
		return ErrPermissionDenied
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.timers[id]; ok {
		t.Stop()
	}
	d.timers[id] = time.AfterFunc(time.Until(at), func() {
		d.mu.Lock()
		delete(d.timers, id)
		d.mu.Unlock()
		d.fire(id)
	})
	d.log.Debugf("[alarm] scheduled id=%s at=%s", id, at.Format(time.RFC3339))
	return nil
}

// Cancel stops any pending timer for id. Idempotent: cancelling an unknown id
// is a no-op.
func (d *Dispatcher) Cancel(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.timers[id]; ok {
		t.Stop()
		delete(d.timers, id)
		d.log.Debugf("[alarm] cancelled id=%s", id)
	}
}

// Pending reports whether a timer is currently registered for id.
func (d *Dispatcher) Pending(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.timers[id]
	return ok
}

// Stop cancels all pending timers. Used on shutdown.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, t := range d.timers {
		t.Stop()
		delete(d.timers, id)
	}
}
