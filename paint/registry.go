package paint

import (
	"fmt"
	"sync"
	"time"
)

// Registry is the in-memory store of all known tasks for the process
// lifetime. Every read that can observe a stale Pending entry first runs
// the lazy-expiry scan under the same lock, so an expired task is never
// counted as active by a later admission check. There is no background
// sweeper; entries are never deleted.
type Registry struct {
	mu       sync.Mutex
	tasks    map[string]Task
	upscaled map[string]bool

	// Admission reservations: submissions that passed the quota check but
	// have not received a task ID yet. Counted together with Pending tasks
	// so two concurrent admissions cannot both take the last slot.
	reserved      map[string]int
	reservedTotal int

	now func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		tasks:    make(map[string]Task),
		upscaled: make(map[string]bool),
		reserved: make(map[string]int),
		now:      time.Now,
	}
}

// Put registers a submitted task and consumes one admission reservation
// held by its owner, if any.
func (r *Registry) Put(t Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reserved[t.OwnerID] > 0 {
		r.reserved[t.OwnerID]--
		if r.reserved[t.OwnerID] == 0 {
			delete(r.reserved, t.OwnerID)
		}
		r.reservedTotal--
	}
	r.tasks[t.ID] = t
}

// Get returns a snapshot of one task, expiring it first if its TTL has
// passed while it was still Pending.
func (r *Registry) Get(id string) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	if t.Status == StatusPending && r.now().After(t.ExpiresAt) {
		t.Status = StatusExpired
		r.tasks[id] = t
	}
	return t, true
}

// FindByOwner returns snapshots of all tasks created by ownerID, running
// the lazy-expiry scan over the whole registry first.
func (r *Registry) FindByOwner(ownerID string) []Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireLocked()
	var out []Task
	for _, t := range r.tasks {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	return out
}

// All returns snapshots of every known task, in no particular order.
func (r *Registry) All() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t)
	}
	return out
}

// Finish transitions a task from Pending to Finished and records the
// result fields. It reports true for exactly one caller per task; the
// winner is the one that must dispatch the result.
func (r *Registry) Finish(id, imgID, imgURL string) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.Status != StatusPending {
		return t, false
	}
	t.Status = StatusFinished
	t.ImgID = imgID
	t.ImgURL = imgURL
	r.tasks[id] = t
	return t, true
}

// Expire transitions a task from Pending to Expired.
func (r *Registry) Expire(id string) bool {
	return r.transition(id, StatusExpired)
}

// Abort transitions a task from Pending to Aborted. Reserved for explicit
// external cancellation; the normal flow never calls it.
func (r *Registry) Abort(id string) bool {
	return r.transition(id, StatusAborted)
}

func (r *Registry) transition(id string, to TaskStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.Status != StatusPending {
		return false
	}
	t.Status = to
	r.tasks[id] = t
	return true
}

// PendingCount reports how many non-expired Pending tasks ownerID has.
func (r *Registry) PendingCount(ownerID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireLocked()
	return r.pendingCountLocked(ownerID)
}

// MarkUpscaled records that imgID/index has been upscaled. It reports
// false when the pair was already marked.
func (r *Registry) MarkUpscaled(imgID string, index int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := upscaleKey(imgID, index)
	if r.upscaled[key] {
		return false
	}
	r.upscaled[key] = true
	return true
}

func (r *Registry) Upscaled(imgID string, index int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upscaled[upscaleKey(imgID, index)]
}

func upscaleKey(imgID string, index int) string {
	return fmt.Sprintf("%s_%s_%d", KindUpscale, imgID, index)
}

// expireLocked flips every Pending task whose TTL has passed to Expired.
// Callers must hold r.mu.
func (r *Registry) expireLocked() {
	now := r.now()
	for id, t := range r.tasks {
		if t.Status == StatusPending && now.After(t.ExpiresAt) {
			t.Status = StatusExpired
			r.tasks[id] = t
		}
	}
}

func (r *Registry) pendingCountLocked(ownerID string) int {
	n := 0
	for _, t := range r.tasks {
		if t.Status == StatusPending && (ownerID == "" || t.OwnerID == ownerID) {
			n++
		}
	}
	return n
}
