package jobmanager

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/docsvault/docerr"
	"github.com/hazyhaar/docsvault/idgen"
	"github.com/hazyhaar/docsvault/scrape"
)

// Runner executes one job to completion (the Pipeline Worker, C9). It is
// injected rather than imported directly so this package never depends on
// the store/scrape/splitter stack it schedules work for.
type Runner func(ctx context.Context, job *Job) error

// Config configures a Manager.
type Config struct {
	// Concurrency bounds how many jobs may be RUNNING at once. Default: 3.
	Concurrency int

	// Runner executes a job once it is dispatched. Required.
	Runner Runner

	// OnProgress, if set, is invoked every time a job's progress is
	// updated, serialized with respect to that job's own state
	// transitions per §4.10's ordering guarantee.
	OnProgress func(jobID string, p Progress)

	IDGen  idgen.Generator
	Now    func() time.Time
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 3
	}
	if c.IDGen == nil {
		c.IDGen = idgen.Default
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type managerState int32

const (
	managerStopped managerState = iota
	managerRunning
	managerDraining
)

// Manager is the Pipeline Manager (C10): the sole owner of the job table,
// per §3's Ownership rules. It queues, deduplicates, schedules, cancels,
// and awaits jobs, running up to Config.Concurrency of them at once.
type Manager struct {
	cfg Config

	mu      sync.Mutex
	jobs    map[string]*Job // every job ever submitted, for GetJob/ListJobs
	byKey   map[string]*Job // the active (QUEUED or RUNNING) job per dedup key
	queue   []*Job          // FIFO of QUEUED jobs awaiting a slot
	running int

	state  atomic.Int32
	wakeCh chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Manager. Start() must be called before queued jobs
// begin running.
func New(cfg Config) (*Manager, error) {
	cfg.defaults()
	if cfg.Runner == nil {
		return nil, fmt.Errorf("jobmanager: Config.Runner is required")
	}
	m := &Manager{
		cfg:    cfg,
		jobs:   make(map[string]*Job),
		byKey:  make(map[string]*Job),
		wakeCh: make(chan struct{}, 1),
	}
	m.state.Store(int32(managerStopped))
	return m, nil
}

func dedupKey(library, version string) string { return library + "\x00" + version }

// EnqueueJob submits a new job for (library, version), per §4.10. Any
// existing QUEUED or RUNNING job for the same key is cancelled first — it
// settles into CANCELLED once its completion future resolves, which for an
// already-queued (not yet running) job happens immediately.
func (m *Manager) EnqueueJob(library, version string, opts scrape.Options) (string, error) {
	library = strings.ToLower(library)
	opts.Library = library
	opts.Version = version
	now := m.cfg.Now()
	id := m.cfg.IDGen()
	job := newJob(id, library, version, opts, now)

	key := dedupKey(library, version)

	m.mu.Lock()
	old, hadOld := m.byKey[key]
	m.jobs[id] = job
	m.byKey[key] = job
	m.queue = append(m.queue, job)
	m.mu.Unlock()

	if hadOld {
		old.requestCancel(m.cfg.Now())
	}

	m.poke()
	return id, nil
}

// GetJob returns the job with the given id, if any.
func (m *Manager) GetJob(id string) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	return j, ok
}

// ListJobs returns every submitted job, ordered by creation time.
func (m *Manager) ListJobs() []*Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].createdAt.Before(out[k].createdAt) })
	return out
}

// CancelJob raises job id's cancel signal. Idempotent: cancelling an
// already-terminal job is a no-op, per §5.
func (m *Manager) CancelJob(id string) error {
	m.mu.Lock()
	j, ok := m.jobs[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("jobmanager: cancel %s: %w", id, docerr.ErrJobNotFound)
	}
	j.requestCancel(m.cfg.Now())
	return nil
}

// WaitForJob blocks until job id reaches a terminal state (or ctx is
// cancelled first) and returns its final status.
func (m *Manager) WaitForJob(ctx context.Context, id string) (Status, error) {
	m.mu.Lock()
	j, ok := m.jobs[id]
	m.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("jobmanager: wait %s: %w", id, docerr.ErrJobNotFound)
	}
	select {
	case <-j.Done():
		return j.Status(), nil
	case <-ctx.Done():
		return j.Status(), ctx.Err()
	}
}

// Start begins dispatching QUEUED jobs, up to Config.Concurrency at once.
func (m *Manager) Start() {
	if !m.state.CompareAndSwap(int32(managerStopped), int32(managerRunning)) {
		return
	}
	m.stopCh = make(chan struct{})
	m.cfg.Logger.Info("jobmanager: started", "concurrency", m.cfg.Concurrency)
	go m.dispatchLoop()
}

// Stop drains running jobs (waiting for them to reach a terminal state)
// or returns early if ctx is cancelled first. It does not cancel jobs —
// callers wanting that should CancelJob each one before calling Stop.
func (m *Manager) Stop(ctx context.Context) error {
	if !m.state.CompareAndSwap(int32(managerRunning), int32(managerDraining)) {
		return nil
	}
	close(m.stopCh)

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.cfg.Logger.Info("jobmanager: stopped")
	case <-ctx.Done():
		m.cfg.Logger.Warn("jobmanager: stop timed out with jobs still running")
	}
	m.state.Store(int32(managerStopped))
	return nil
}

func (m *Manager) poke() {
	select {
	case m.wakeCh <- struct{}{}:
	default:
	}
}

// dispatchLoop pulls QUEUED jobs off the front of the FIFO whenever a slot
// is free, skipping any that were cancelled before they got a slot.
func (m *Manager) dispatchLoop() {
	for {
		m.mu.Lock()
		if managerState(m.state.Load()) != managerRunning {
			m.mu.Unlock()
			return
		}
		if m.running >= m.cfg.Concurrency || len(m.queue) == 0 {
			m.mu.Unlock()
			select {
			case <-m.wakeCh:
				continue
			case <-m.stopCh:
				return
			}
		}
		job := m.queue[0]
		m.queue = m.queue[1:]
		if job.Status().Terminal() {
			m.mu.Unlock()
			continue
		}
		m.running++
		m.mu.Unlock()

		m.wg.Add(1)
		go m.runJob(job)
	}
}

func (m *Manager) runJob(job *Job) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		m.running--
		key := dedupKey(job.library, job.version)
		if m.byKey[key] == job {
			delete(m.byKey, key)
		}
		m.mu.Unlock()
		m.poke()
	}()

	if !job.markRunning(m.cfg.Now()) {
		return // cancelled between enqueue and dispatch
	}
	if m.cfg.OnProgress != nil {
		job.bindProgressHook(func(p Progress) { m.cfg.OnProgress(job.id, p) })
	}

	err := m.cfg.Runner(job.Context(), job)
	now := m.cfg.Now()

	switch {
	case job.Context().Err() != nil:
		job.finish(StatusCancelled, context.Canceled, now)
	case err != nil:
		m.cfg.Logger.Warn("jobmanager: job failed", "job_id", job.id, "library", job.library, "version", job.version, "error", err)
		job.finish(StatusFailed, err, now)
	default:
		job.finish(StatusCompleted, nil, now)
	}
}
