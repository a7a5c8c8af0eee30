package paint

import (
	"sync"
	"testing"
	"time"
)

func pendingTask(id, ownerID string, ttl time.Duration) Task {
	now := time.Now()
	return Task{
		ID:        id,
		OwnerID:   ownerID,
		Kind:      KindGenerate,
		Status:    StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestRegistryFinishWinsOnce(t *testing.T) {
	r := NewRegistry()
	r.Put(pendingTask("t1", "u1", time.Hour))

	task, won := r.Finish("t1", "42", "https://img.example/42.png")
	if !won {
		t.Fatalf("first Finish should win")
	}
	if task.Status != StatusFinished || task.ImgID != "42" {
		t.Fatalf("unexpected task after finish: %+v", task)
	}
	if _, won := r.Finish("t1", "43", "other"); won {
		t.Fatalf("second Finish must not win")
	}
	got, ok := r.Get("t1")
	if !ok || got.ImgID != "42" {
		t.Fatalf("finish result must not be overwritten, got %+v", got)
	}
	if r.Expire("t1") {
		t.Fatalf("terminal task must not expire")
	}
	if r.Abort("t1") {
		t.Fatalf("terminal task must not abort")
	}
}

func TestRegistryLazyExpiry(t *testing.T) {
	r := NewRegistry()
	base := time.Now()
	r.now = func() time.Time { return base }
	r.Put(pendingTask("t1", "u1", time.Hour))
	r.Put(pendingTask("t2", "u1", time.Hour))

	if got := r.PendingCount("u1"); got != 2 {
		t.Fatalf("PendingCount = %d, want 2", got)
	}

	r.now = func() time.Time { return base.Add(2 * time.Hour) }
	tasks := r.FindByOwner("u1")
	if len(tasks) != 2 {
		t.Fatalf("FindByOwner returned %d tasks, want 2", len(tasks))
	}
	for _, task := range tasks {
		if task.Status != StatusExpired {
			t.Fatalf("task %s not lazily expired: %s", task.ID, task.Status)
		}
	}
	if got := r.PendingCount("u1"); got != 0 {
		t.Fatalf("PendingCount after expiry = %d, want 0", got)
	}
}

func TestRegistryFindByOwnerIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Put(pendingTask("t1", "u1", time.Hour))
	r.Put(pendingTask("t2", "u2", time.Hour))
	r.Put(pendingTask("t3", "u1", time.Hour))

	first := r.FindByOwner("u1")
	second := r.FindByOwner("u1")
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("FindByOwner sizes: %d then %d, want 2 and 2", len(first), len(second))
	}
	byID := make(map[string]Task, len(first))
	for _, task := range first {
		byID[task.ID] = task
	}
	for _, task := range second {
		if byID[task.ID] != task {
			t.Fatalf("snapshot changed without mutation: %+v vs %+v", byID[task.ID], task)
		}
	}
}

func TestAdmissionOwnerLimit(t *testing.T) {
	r := NewRegistry()
	const limit = 3
	for i := 0; i < limit; i++ {
		if err := r.TryReserve("u1", limit, 0); err != nil {
			t.Fatalf("reserve %d: %v", i, err)
		}
		r.Put(pendingTask(string(rune('a'+i)), "u1", time.Hour))
	}
	if err := r.TryReserve("u1", limit, 0); err != ErrOwnerLimit {
		t.Fatalf("fourth admission = %v, want ErrOwnerLimit", err)
	}

	// Finishing one pending task frees a slot.
	if _, won := r.Finish("a", "1", "u"); !won {
		t.Fatalf("finish failed")
	}
	if err := r.TryReserve("u1", limit, 0); err != nil {
		t.Fatalf("admission after finish: %v", err)
	}
}

func TestAdmissionGlobalLimit(t *testing.T) {
	r := NewRegistry()
	r.Put(pendingTask("t1", "u1", time.Hour))
	r.Put(pendingTask("t2", "u2", time.Hour))
	if err := r.TryReserve("u3", 0, 2); err != ErrGlobalLimit {
		t.Fatalf("global admission = %v, want ErrGlobalLimit", err)
	}
	if err := r.TryReserve("u3", 0, 3); err != nil {
		t.Fatalf("global admission under limit: %v", err)
	}
}

func TestAdmissionReleasedOnFailedSubmit(t *testing.T) {
	r := NewRegistry()
	if err := r.TryReserve("u1", 1, 0); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := r.TryReserve("u1", 1, 0); err != ErrOwnerLimit {
		t.Fatalf("reservation must count toward the limit, got %v", err)
	}
	r.Release("u1")
	if err := r.TryReserve("u1", 1, 0); err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
}

func TestAdmissionLastSlotConcurrent(t *testing.T) {
	r := NewRegistry()
	const limit = 3
	r.Put(pendingTask("t1", "u1", time.Hour))
	r.Put(pendingTask("t2", "u1", time.Hour))

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- r.TryReserve("u1", limit, 0)
		}()
	}
	wg.Wait()
	close(results)

	admitted := 0
	for err := range results {
		if err == nil {
			admitted++
		} else if err != ErrOwnerLimit {
			t.Fatalf("unexpected admission error: %v", err)
		}
	}
	if admitted != 1 {
		t.Fatalf("admitted %d callers for one slot, want exactly 1", admitted)
	}
}

func TestRegistryUpscaleGuard(t *testing.T) {
	r := NewRegistry()
	if r.Upscaled("img1", 2) {
		t.Fatalf("fresh pair must not be marked")
	}
	if !r.MarkUpscaled("img1", 2) {
		t.Fatalf("first mark should succeed")
	}
	if r.MarkUpscaled("img1", 2) {
		t.Fatalf("second mark must report duplicate")
	}
	if r.MarkUpscaled("img1", 3) != true {
		t.Fatalf("different index is independent")
	}
}
