package tasks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytaudio/internal/shared"
	"golang.org/x/time/rate"
)

// Runner converts one request. [*Pipeline] is the production implementation.
type Runner interface {
	Run(ctx context.Context, req Request) error
}

// Stats is a snapshot of pool depth.
type Stats struct {
	Workers int `json:"workers"`
	Queued  int `json:"queued"`
	Running int `json:"running"`
}

// Pool runs requests on a fixed set of workers fed by a bounded queue.
type Pool struct {
	runner  Runner
	queue   chan Request
	workers int
	limiter *rate.Limiter
	logger  *log.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Int32

	mu      sync.RWMutex
	started bool
	closed  bool
}

// NewPool sizes a pool from cfg. Non-positive counts fall back to one worker and a queue of one.
func NewPool(runner Runner, cfg shared.WorkersConfig, logger *log.Logger) *Pool {
	if cfg.Count <= 0 {
		cfg.Count = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		runner:  runner,
		queue:   make(chan Request, cfg.QueueSize),
		workers: cfg.Count,
		limiter: rate.NewLimiter(limit, cfg.Count),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("worker pool started", "workers", p.workers, "queue", cap(p.queue))
}

// Submit enqueues req without blocking.
//
// It returns [shared.ErrQueueFull] when the queue is at capacity and [shared.ErrServiceUnavailable]
// after Shutdown has begun.
func (p *Pool) Submit(req Request) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return fmt.Errorf("%w: worker pool is shutting down", shared.ErrServiceUnavailable)
	}

	select {
	case p.queue <- req:
		return nil
	default:
		return shared.ErrQueueFull
	}
}

// Stats reports the configured workers, queued requests and requests in progress.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers: p.workers,
		Queued:  len(p.queue),
		Running: int(p.running.Load()),
	}
}

// Shutdown stops accepting work and waits for queued and running requests to finish.
// When ctx expires first, in-flight conversions are cancelled and ctx's error is returned
// once the workers have exited.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	started := p.started
	p.mu.Unlock()

	if !started {
		p.cancel()
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.logger.Warn("shutdown deadline reached, cancelling conversions")
		p.cancel()
		<-done
		return ctx.Err()
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	logger := shared.WithLogger(p.logger, "worker", id)

	for req := range p.queue {
		if err := p.limiter.Wait(p.ctx); err != nil {
			logger.Debug("rate limiter interrupted", "error", err)
		}

		p.running.Add(1)
		if err := p.runner.Run(p.ctx, req); err != nil {
			logger.Debug("job ended in failure", "filename", req.Filename, "error", err)
		}
		p.running.Add(-1)
	}
}
