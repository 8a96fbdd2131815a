// Package jobmanager implements the Pipeline Manager (C10): an in-memory
// job table that accepts, deduplicates, schedules, runs, and lets callers
// cancel or await long-running scrape jobs, per §4.10.
package jobmanager

import (
	"context"
	"sync"
	"time"

	"github.com/hazyhaar/docsvault/scrape"
)

// Status is a job's position in the state machine described by §4.10:
//
//	QUEUED --start--> RUNNING --ok--> COMPLETED
//	                   |
//	                   +--err--> FAILED
//	                   +--cancel--> CANCELLED
type Status string

const (
	StatusQueued    Status = "QUEUED"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether s is one of the state machine's terminal states.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Progress tracks one job's scrape progress, per §4.9's onProgress shape.
type Progress struct {
	PagesScraped int
	MaxPages     int
	CurrentURL   string
	Depth        int
	MaxDepth     int
}

// Job is a single pipeline execution unit (§3). Its mutable fields are
// guarded by mu so the Manager's dispatcher goroutine and a caller's
// GetJob/WaitForJob can observe it concurrently without racing.
type Job struct {
	id      string
	library string
	version string
	options scrape.Options

	mu         sync.Mutex
	status     Status
	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time
	progress   Progress
	err        error

	ctx    context.Context
	cancel context.CancelFunc

	done     chan struct{}
	doneOnce sync.Once

	progressHook func(Progress)
}

func newJob(id, library, version string, opts scrape.Options, now time.Time) *Job {
	ctx, cancel := context.WithCancel(context.Background())
	return &Job{
		id:        id,
		library:   library,
		version:   version,
		options:   opts,
		status:    StatusQueued,
		createdAt: now,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// ID returns the job's stable identifier.
func (j *Job) ID() string { return j.id }

// Library returns the job's (lowercased) library name.
func (j *Job) Library() string { return j.library }

// Version returns the job's version string ("" means unversioned).
func (j *Job) Version() string { return j.version }

// Options returns the scrape options the job was submitted with.
func (j *Job) Options() scrape.Options { return j.options }

// Context returns the job's cancellation context, threaded by the worker
// into every suspending scrape operation per §5.
func (j *Job) Context() context.Context { return j.ctx }

// Snapshot is an immutable point-in-time view of a Job, safe to read
// without further synchronization (returned by Job.Snapshot).
type Snapshot struct {
	ID         string
	Library    string
	Version    string
	Options    scrape.Options
	Status     Status
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	Progress   Progress
	Err        error
}

// Snapshot copies the job's current state under lock.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Snapshot{
		ID:         j.id,
		Library:    j.library,
		Version:    j.version,
		Options:    j.options,
		Status:     j.status,
		CreatedAt:  j.createdAt,
		StartedAt:  j.startedAt,
		FinishedAt: j.finishedAt,
		Progress:   j.progress,
		Err:        j.err,
	}
}

// Status returns the job's current state.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// SetProgress updates the job's progress counters. Called from the
// pipeline worker as pages are scraped; serialized with respect to the
// job's own state transitions by j.mu, per §4.10's ordering guarantee.
func (j *Job) SetProgress(p Progress) {
	j.mu.Lock()
	j.progress = p
	hook := j.progressHook
	j.mu.Unlock()
	if hook != nil {
		hook(p)
	}
}

// bindProgressHook attaches the Manager's per-progress callback, invoked
// after every SetProgress call once the job starts running.
func (j *Job) bindProgressHook(fn func(Progress)) {
	j.mu.Lock()
	j.progressHook = fn
	j.mu.Unlock()
}

// Progress returns the job's current progress counters.
func (j *Job) Progress() Progress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

// markRunning transitions QUEUED -> RUNNING. Returns false if the job was
// cancelled before it got a chance to start (already terminal).
func (j *Job) markRunning(now time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return false
	}
	j.status = StatusRunning
	j.startedAt = now
	return true
}

// finish moves a QUEUED or RUNNING job into a terminal state exactly once. Later
// calls (e.g. a cancel racing a natural completion) are no-ops, preserving
// whichever terminal state was entered first.
func (j *Job) finish(status Status, err error, now time.Time) {
	j.mu.Lock()
	if j.status.Terminal() {
		j.mu.Unlock()
		return
	}
	j.status = status
	j.err = err
	j.finishedAt = now
	j.mu.Unlock()
	j.doneOnce.Do(func() { close(j.done) })
}

// requestCancel raises the job's cancel signal. If the job never started
// running, it settles directly into CANCELLED (there is no worker to
// observe the context and finish it). Idempotent per §5.
func (j *Job) requestCancel(now time.Time) {
	j.cancel()
	j.mu.Lock()
	wasQueued := j.status == StatusQueued
	j.mu.Unlock()
	if wasQueued {
		j.finish(StatusCancelled, context.Canceled, now)
	}
}

// Done returns a channel closed once the job enters a terminal state —
// the single-shot completion future named in §3.
func (j *Job) Done() <-chan struct{} { return j.done }
