// Package roomtimer schedules one play deadline per room.
package roomtimer

import (
	"sync"
	"time"
)

type ExpireFunc func(roomID string)

type entry struct {
	gen      uint64
	deadline time.Time
	t        *time.Timer
}

// Registry holds at most one live deadline per room. Re-arming a room
// replaces its previous deadline; a replaced or disarmed timer never calls
// back, even if it already fired and is waiting on the lock.
type Registry struct {
	mu      sync.Mutex
	nextGen uint64
	timers  map[string]*entry
	stopped bool
	onFire  ExpireFunc
}

func New(onFire ExpireFunc) *Registry {
	return &Registry{
		timers: map[string]*entry{},
		onFire: onFire,
	}
}

// Arm schedules roomID to expire at deadline. Deadlines in the past fire
// immediately on a new goroutine.
func (r *Registry) Arm(roomID string, deadline time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	if old := r.timers[roomID]; old != nil {
		old.t.Stop()
	}
	r.nextGen++
	gen := r.nextGen
	e := &entry{gen: gen, deadline: deadline}
	e.t = time.AfterFunc(max(time.Until(deadline), 0), func() { r.fire(roomID, gen) })
	r.timers[roomID] = e
}

func (r *Registry) fire(roomID string, gen uint64) {
	r.mu.Lock()
	e := r.timers[roomID]
	if r.stopped || e == nil || e.gen != gen {
		r.mu.Unlock()
		return
	}
	delete(r.timers, roomID)
	cb := r.onFire
	r.mu.Unlock()
	if cb != nil {
		cb(roomID)
	}
}

func (r *Registry) Disarm(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e := r.timers[roomID]; e != nil {
		e.t.Stop()
		delete(r.timers, roomID)
	}
}

// Deadline returns the armed deadline for roomID.
func (r *Registry) Deadline(roomID string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.timers[roomID]
	if e == nil {
		return time.Time{}, false
	}
	return e.deadline, true
}

func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// Stop cancels every timer; later Arm calls are ignored.
func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	for id, e := range r.timers {
		e.t.Stop()
		delete(r.timers, id)
	}
}
