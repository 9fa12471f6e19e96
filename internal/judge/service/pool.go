package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"arbiter/internal/judge/model"
	appErr "arbiter/pkg/errors"
	"arbiter/pkg/logger"
)

// PoolConfig sizes the judging worker pool.
type PoolConfig struct {
	// Workers is the number of concurrent judging slots; effectively the
	// number of sandbox containers running at once.
	Workers int `yaml:"workers"`

	// QueueSize bounds the backlog of admitted submissions waiting for a
	// worker. A full queue rejects instead of blocking the caller.
	QueueSize int `yaml:"queueSize"`
}

// DefaultPoolConfig returns conservative pool sizes.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{Workers: 4, QueueSize: 256}
}

// Pool runs judging on a fixed set of workers fed by a bounded queue.
type Pool struct {
	orchestrator *Orchestrator
	workers      int
	queue        chan *model.Submission

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewPool creates a worker pool over the orchestrator.
func NewPool(orchestrator *Orchestrator, cfg PoolConfig) (*Pool, error) {
	if orchestrator == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("orchestrator is required")
	}
	if cfg.Workers <= 0 {
		return nil, appErr.ValidationError("workers", "must be positive")
	}
	if cfg.QueueSize <= 0 {
		return nil, appErr.ValidationError("queueSize", "must be positive")
	}
	return &Pool{
		orchestrator: orchestrator,
		workers:      cfg.Workers,
		queue:        make(chan *model.Submission, cfg.QueueSize),
	}, nil
}

// Start launches the workers. They judge until Stop is called; ctx cancels
// in-flight executions.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Enqueue hands a submission to the pool without blocking. A full queue
// returns JudgeQueueFull; the submission stays Pending and can be re-enqueued.
func (p *Pool) Enqueue(sub *model.Submission) error {
	if sub == nil || sub.ID == "" {
		return appErr.ValidationError("submission", "required")
	}
	select {
	case p.queue <- sub:
		return nil
	default:
		return appErr.New(appErr.JudgeQueueFull)
	}
}

// Stop closes the intake and waits for the workers to drain the queue.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.queue)
	})
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for sub := range p.queue {
		if err := p.orchestrator.Judge(ctx, sub); err != nil {
			logger.Error(ctx, "persist verdict failed",
				zap.Int("worker", id),
				zap.String("submission_id", sub.ID),
				zap.Error(err))
		}
	}
}
