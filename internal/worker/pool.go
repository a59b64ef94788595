// Package worker runs notification delivery on a bounded pool so dispatch
// never blocks the request path and never leaks unmanaged goroutines.
package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/notify"
	"github.com/spec-kit/helpdesk/internal/observability"
)

// Queue accepts notification jobs. Enqueue reports whether the job was
// accepted; callers treat a refusal as a dropped best-effort send.
type Queue interface {
	Enqueue(job notify.Job) bool
}

// Pool is a fixed-size worker pool over a buffered job channel.
type Pool struct {
	jobs      chan notify.Job
	transport notify.Transport
	logger    *zap.Logger
	metrics   *observability.Metrics
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewPool builds a pool with the given worker count and queue capacity.
func NewPool(workers, queueSize int, transport notify.Transport, logger *zap.Logger, metrics *observability.Metrics) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	pool := &Pool{
		jobs:      make(chan notify.Job, queueSize),
		transport: transport,
		logger:    logger,
		metrics:   metrics,
	}
	pool.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go pool.run()
	}
	return pool
}

// Enqueue offers a job without blocking. When the queue is saturated the job
// is dropped and logged; delivery is advisory, not transactional.
func (p *Pool) Enqueue(job notify.Job) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		p.metrics.RecordDroppedJob(string(job.Kind))
		p.logger.Warn("notification queue full, dropping job",
			zap.String("kind", string(job.Kind)),
			zap.String("to", job.Address))
		return false
	}
}

// Stop drains the queue and waits for in-flight sends to finish.
func (p *Pool) Stop() {
	p.closeOnce.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}

func (p *Pool) run() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.deliver(job)
	}
}

func (p *Pool) deliver(job notify.Job) {
	ctx := context.Background()
	var ok bool
	switch job.Kind {
	case notify.JobSms:
		ok = p.transport.SendSms(ctx, job.Address, job.Body)
	default:
		ok = p.transport.SendEmail(ctx, job.Address, job.Subject, job.Body)
	}
	if !ok {
		p.logger.Warn("notification delivery failed",
			zap.String("kind", string(job.Kind)),
			zap.String("to", job.Address))
	}
}
