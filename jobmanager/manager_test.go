package jobmanager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/docsvault/scrape"
)

// blockingRunner returns a Runner that blocks until release is closed, or
// ctx is cancelled, incrementing calls for every invocation.
func blockingRunner(release <-chan struct{}) (Runner, *int32Counter) {
	calls := &int32Counter{}
	return func(ctx context.Context, job *Job) error {
		calls.inc()
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}, calls
}

type int32Counter struct {
	mu sync.Mutex
	n  int
}

func (c *int32Counter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *int32Counter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func newTestManager(t *testing.T, runner Runner, concurrency int) *Manager {
	t.Helper()
	m, err := New(Config{Concurrency: concurrency, Runner: runner})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = m.Stop(ctx)
	})
	return m
}

func TestEnqueueJobRunsAndCompletes(t *testing.T) {
	m, err := New(Config{Concurrency: 1, Runner: func(ctx context.Context, job *Job) error { return nil }})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = m.Stop(ctx)
	})

	id, err := m.EnqueueJob("react", "18.0.0", scrape.Options{URL: "https://react.dev"})
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	status, err := m.WaitForJob(context.Background(), id)
	if err != nil {
		t.Fatalf("WaitForJob: %v", err)
	}
	if status != StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", status)
	}

	job, ok := m.GetJob(id)
	if !ok {
		t.Fatalf("GetJob(%s) not found", id)
	}
	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Errorf("snapshot status = %s, want COMPLETED", snap.Status)
	}
	if snap.FinishedAt.IsZero() {
		t.Error("FinishedAt not set on completion")
	}
}

func TestEnqueueJobReportsFailure(t *testing.T) {
	wantErr := errors.New("boom")
	m, _ := New(Config{Concurrency: 1, Runner: func(ctx context.Context, job *Job) error { return wantErr }})
	m.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = m.Stop(ctx)
	})

	id, _ := m.EnqueueJob("vue", "", scrape.Options{URL: "https://vuejs.org"})
	status, err := m.WaitForJob(context.Background(), id)
	if err != nil {
		t.Fatalf("WaitForJob: %v", err)
	}
	if status != StatusFailed {
		t.Errorf("status = %s, want FAILED", status)
	}
	job, _ := m.GetJob(id)
	if !errors.Is(job.Snapshot().Err, wantErr) {
		t.Errorf("job error = %v, want %v", job.Snapshot().Err, wantErr)
	}
}

func TestDedupCancelsPriorQueuedOrRunningJobForSameKey(t *testing.T) {
	release := make(chan struct{})
	runner, calls := blockingRunner(release)
	m := newTestManager(t, runner, 1)

	idA, err := m.EnqueueJob("react", "18", scrape.Options{URL: "https://react.dev"})
	if err != nil {
		t.Fatalf("enqueue A: %v", err)
	}

	// Give the dispatcher a moment to pick up A and call the runner.
	deadline := time.After(time.Second)
	for calls.get() == 0 {
		select {
		case <-deadline:
			t.Fatal("job A never started running")
		case <-time.After(time.Millisecond):
		}
	}

	idB, err := m.EnqueueJob("react", "18", scrape.Options{URL: "https://react.dev"})
	if err != nil {
		t.Fatalf("enqueue B: %v", err)
	}
	if idA == idB {
		t.Fatal("expected distinct job ids")
	}

	statusA, err := m.WaitForJob(context.Background(), idA)
	if err != nil {
		t.Fatalf("wait A: %v", err)
	}
	if statusA != StatusCancelled {
		t.Errorf("job A status = %s, want CANCELLED", statusA)
	}

	close(release)
	statusB, err := m.WaitForJob(context.Background(), idB)
	if err != nil {
		t.Fatalf("wait B: %v", err)
	}
	if statusB != StatusCompleted {
		t.Errorf("job B status = %s, want COMPLETED", statusB)
	}
}

func TestDedupCancelsStillQueuedJobImmediately(t *testing.T) {
	release := make(chan struct{})
	runner, calls := blockingRunner(release)
	defer close(release)
	// concurrency=1 so job A (a different dedup key) occupies the only
	// slot and B/C (same key) stay QUEUED behind it.
	m := newTestManager(t, runner, 1)

	_, err := m.EnqueueJob("slotfiller", "", scrape.Options{URL: "https://example.com"})
	if err != nil {
		t.Fatalf("enqueue A: %v", err)
	}
	deadline := time.After(time.Second)
	for calls.get() == 0 {
		select {
		case <-deadline:
			t.Fatal("job A never started running")
		case <-time.After(time.Millisecond):
		}
	}

	idB, err := m.EnqueueJob("vue", "3", scrape.Options{URL: "https://vuejs.org/guide"})
	if err != nil {
		t.Fatalf("enqueue B: %v", err)
	}
	idC, err := m.EnqueueJob("vue", "3", scrape.Options{URL: "https://vuejs.org/api"})
	if err != nil {
		t.Fatalf("enqueue C: %v", err)
	}

	// B was queued behind A and never ran; enqueuing C (same key) cancels
	// B immediately, with no worker needed to observe the signal.
	statusB, err := m.WaitForJob(context.Background(), idB)
	if err != nil {
		t.Fatalf("wait B: %v", err)
	}
	if statusB != StatusCancelled {
		t.Errorf("job B status = %s, want CANCELLED", statusB)
	}
	if _, ok := m.GetJob(idC); !ok {
		t.Fatal("job C should still be tracked")
	}
}

func TestCancelJobUnknownID(t *testing.T) {
	m, _ := New(Config{Runner: func(context.Context, *Job) error { return nil }})
	if err := m.CancelJob("nope"); err == nil {
		t.Error("expected error cancelling unknown job id")
	}
}

func TestCancelRunningJobSettlesCancelled(t *testing.T) {
	release := make(chan struct{})
	runner, calls := blockingRunner(release)
	defer close(release)
	m := newTestManager(t, runner, 1)

	id, _ := m.EnqueueJob("svelte", "", scrape.Options{URL: "https://svelte.dev"})
	deadline := time.After(time.Second)
	for calls.get() == 0 {
		select {
		case <-deadline:
			t.Fatal("job never started")
		case <-time.After(time.Millisecond):
		}
	}

	if err := m.CancelJob(id); err != nil {
		t.Fatalf("CancelJob: %v", err)
	}
	status, err := m.WaitForJob(context.Background(), id)
	if err != nil {
		t.Fatalf("WaitForJob: %v", err)
	}
	if status != StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", status)
	}
}

func TestConcurrencyBoundsSimultaneousRunningJobs(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	active, maxActive := 0, 0
	runner := func(ctx context.Context, job *Job) error {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		<-release
		mu.Lock()
		active--
		mu.Unlock()
		return nil
	}
	m := newTestManager(t, runner, 2)

	ids := make([]string, 5)
	for i := range ids {
		id, err := m.EnqueueJob("lib", string(rune('a'+i)), scrape.Options{URL: "https://example.com"})
		if err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
		ids[i] = id
	}

	time.Sleep(50 * time.Millisecond)
	close(release)

	for _, id := range ids {
		if _, err := m.WaitForJob(context.Background(), id); err != nil {
			t.Fatalf("wait %s: %v", id, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if maxActive > 2 {
		t.Errorf("maxActive = %d, want <= 2", maxActive)
	}
}

func TestListJobsOrderedByCreation(t *testing.T) {
	m, _ := New(Config{Runner: func(context.Context, *Job) error { return nil }})
	m.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = m.Stop(ctx)
	})

	var ids []string
	for i := 0; i < 3; i++ {
		id, _ := m.EnqueueJob("lib", string(rune('a'+i)), scrape.Options{URL: "https://example.com"})
		ids = append(ids, id)
		time.Sleep(time.Millisecond)
	}

	jobs := m.ListJobs()
	if len(jobs) != 3 {
		t.Fatalf("len(ListJobs()) = %d, want 3", len(jobs))
	}
	for i, j := range jobs {
		if j.ID() != ids[i] {
			t.Errorf("ListJobs()[%d].ID() = %s, want %s (creation order)", i, j.ID(), ids[i])
		}
	}
}

func TestWaitForJobUnknownID(t *testing.T) {
	m, _ := New(Config{Runner: func(context.Context, *Job) error { return nil }})
	if _, err := m.WaitForJob(context.Background(), "missing"); err == nil {
		t.Error("expected error waiting on unknown job id")
	}
}
