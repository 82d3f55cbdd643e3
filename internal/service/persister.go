package service

import (
	"context"
	"sync"
	"time"

	"pagegen-backend/internal/metrics"
	"pagegen-backend/internal/model"
	"pagegen-backend/internal/storage"
	"pagegen-backend/pkg/logger"
)

type jobKind int

const (
	jobCreate jobKind = iota
	jobSave
	jobBarrier
)

type persistJob struct {
	kind      jobKind
	projectID string
	messages  []model.Message
	done      chan struct{}
}

// Persister runs gateway writes on a single worker in enqueue order, so a
// save queued before a project switch always lands before the next read.
// Failures are logged and counted, never retried.
type Persister struct {
	store   storage.Storage
	timeout time.Duration
	metrics *metrics.Metrics

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []persistJob
	closed   bool
	finished chan struct{}
}

func NewPersister(store storage.Storage, timeout time.Duration, m *metrics.Metrics) *Persister {
	p := &Persister{
		store:    store,
		timeout:  timeout,
		metrics:  m,
		finished: make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	go p.run()
	return p
}

// EnqueueCreate schedules createProject for a freshly minted id.
func (p *Persister) EnqueueCreate(projectID string) bool {
	return p.enqueue(persistJob{kind: jobCreate, projectID: projectID})
}

// EnqueueSave schedules a full replace of the stored log for projectID.
func (p *Persister) EnqueueSave(projectID string, messages []model.Message) bool {
	snapshot := make([]model.Message, len(messages))
	copy(snapshot, messages)
	return p.enqueue(persistJob{kind: jobSave, projectID: projectID, messages: snapshot})
}

// Flush waits until every job enqueued before the call has run.
func (p *Persister) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if !p.enqueue(persistJob{kind: jobBarrier, done: done}) {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work and waits for the queue to drain.
func (p *Persister) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	select {
	case <-p.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Persister) enqueue(job persistJob) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		if job.kind != jobBarrier {
			logger.WithProject(job.projectID).Warn("Persister closed, dropping write")
		}
		return false
	}
	p.queue = append(p.queue, job)
	p.cond.Signal()
	return true
}

func (p *Persister) run() {
	defer close(p.finished)

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		job := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.execute(job)
	}
}

func (p *Persister) execute(job persistJob) {
	if job.kind == jobBarrier {
		close(job.done)
		return
	}

	ctx := context.Background()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	log := logger.WithProject(job.projectID)
	switch job.kind {
	case jobCreate:
		err := p.store.CreateProject(ctx, job.projectID)
		p.metrics.RecordPersistence("create", err)
		if err != nil {
			log.Errorf("Failed to create project: %v", err)
			return
		}
		log.Debug("Project created")
	case jobSave:
		err := p.store.SaveMessages(ctx, job.projectID, job.messages)
		p.metrics.RecordPersistence("save", err)
		if err != nil {
			log.Errorf("Failed to save %d messages: %v", len(job.messages), err)
			return
		}
		log.Debugf("Saved %d messages", len(job.messages))
	}
}
