// Package jobmgr runs jobs in per-key FIFO lanes: jobs sharing a key run one
// after another in submission order, jobs with different keys run in
// parallel. A lane's goroutine exits once its queue drains.
//
// Typical usage:
//
//	jm := jobmgr.NewManager(func(msg string) {
//	    log.Println("JOB:", msg)
//	})
//
//	jm.Enqueue("guild-1", func(ctx context.Context) error {
//	    return handle(ctx)
//	})
//
//	// later, drop whatever is still waiting for that key
//	jm.Stop("guild-1")
package jobmgr

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

var ErrClosed = errors.New("job manager is closed")

// Job is a unit of work run inside a lane.
type Job func(ctx context.Context) error

// StatusReporter receives lifecycle events for lanes and jobs.
// Example messages:
//
//	error:guild-1:failed to connect
//	stopped:guild-1
type StatusReporter func(string)

type lane struct {
	ctx     context.Context
	cancel  context.CancelFunc
	pending []Job
}

// Manager owns the lanes. It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	lanes    map[string]*lane
	closed   bool
	wg       sync.WaitGroup
	Reporter StatusReporter
}

// NewManager creates a new Manager. The reporter may be nil.
func NewManager(reporter StatusReporter) *Manager {
	return &Manager{
		lanes:    make(map[string]*lane),
		Reporter: reporter,
	}
}

// Enqueue appends job to the lane for key and starts the lane if idle.
func (m *Manager) Enqueue(key string, job Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	l, ok := m.lanes[key]
	if ok {
		l.pending = append(l.pending, job)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	l = &lane{ctx: ctx, cancel: cancel, pending: []Job{job}}
	m.lanes[key] = l
	m.wg.Add(1)
	go m.run(key, l)
	return nil
}

// Do enqueues job for key and waits for it to finish.
func (m *Manager) Do(ctx context.Context, key string, job Job) error {
	done := make(chan error, 1)
	err := m.Enqueue(key, func(laneCtx context.Context) error {
		err := job(laneCtx)
		done <- err
		return err
	})
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) run(key string, l *lane) {
	defer m.wg.Done()
	for {
		m.mu.Lock()
		if len(l.pending) == 0 || l.ctx.Err() != nil {
			if m.lanes[key] == l {
				delete(m.lanes, key)
			}
			m.mu.Unlock()
			l.cancel()
			return
		}
		job := l.pending[0]
		l.pending = slices.Delete(l.pending, 0, 1)
		m.mu.Unlock()

		if err := job(l.ctx); err != nil {
			m.report(fmt.Sprintf("error:%s:%v", key, err))
		}
	}
}

// Stop cancels the running job of key and drops the jobs still queued.
func (m *Manager) Stop(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lanes[key]
	if !ok {
		return fmt.Errorf("no jobs for '%s'", key)
	}
	l.cancel()
	l.pending = nil
	delete(m.lanes, key)
	m.report("stopped:" + key)
	return nil
}

// Close stops accepting jobs, cancels every lane and waits for running jobs
// to return.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	for key, l := range m.lanes {
		l.cancel()
		l.pending = nil
		delete(m.lanes, key)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// List returns the keys with work queued or running, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.lanes))
	for k := range m.lanes {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Status returns a human-readable summary of busy lanes.
func (m *Manager) Status() string {
	active := m.List()
	if len(active) == 0 {
		return "No jobs are running."
	}
	return fmt.Sprintf("Busy lanes: %s", strings.Join(active, ", "))
}

func (m *Manager) report(s string) {
	if m.Reporter != nil {
		m.Reporter(s)
	}
}
