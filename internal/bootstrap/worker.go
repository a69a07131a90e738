package bootstrap

import (
	"context"
	"os"
	"sync"
	"time"

	"draft_server/adapter/in/worker"
	"draft_server/config"
	"draft_server/core/port/out"
	"draft_server/pkg/logger"

	"github.com/rs/zerolog"
)

// Worker owns the background side of the pipeline: the job pool that
// runs draft generation, and the renewal scheduler that keeps Graph
// subscriptions alive.
type Worker struct {
	pool  *worker.Pool
	queue *worker.Queue
	deps  *Dependencies

	renewalInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWorker(cfg *config.Config, deps *Dependencies) *Worker {
	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		With().Timestamp().
		Str("component", "worker").
		Str("worker_id", cfg.WorkerID).
		Logger()

	draftProcessor := worker.NewDraftProcessor(deps.Orchestrator)
	renewProcessor := worker.NewRenewProcessor(deps.RenewalService)
	handler := worker.NewHandler(draftProcessor, renewProcessor)

	poolConfig := worker.DefaultPoolConfig()
	if cfg.WorkerMax > 0 {
		poolConfig.MaxWorkers = cfg.WorkerMax
	}
	if cfg.WorkerQueueSize > 0 {
		poolConfig.QueueSize = cfg.WorkerQueueSize
	}

	pool := worker.NewPool(handler, poolConfig, zlog)
	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		pool:            pool,
		queue:           worker.NewQueue(pool),
		deps:            deps,
		renewalInterval: cfg.RenewalInterval(),
		ctx:             ctx,
		cancel:          cancel,
	}
}

// Queue is the enqueue-only view handed to the intake service.
func (w *Worker) Queue() out.DraftQueue {
	return w.queue
}

// Start brings up the pool workers. It does not block.
func (w *Worker) Start() {
	w.pool.Start()
}

// StartScheduler runs the periodic subscription renewal sweep. One
// renewal pass is enqueued immediately so expirations missed during
// downtime are caught on boot.
func (w *Worker) StartScheduler() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		if err := w.queue.EnqueueRenewal(w.ctx); err != nil {
			logger.Warn("Initial renewal enqueue failed: %v", err)
		}

		ticker := time.NewTicker(w.renewalInterval)
		defer ticker.Stop()

		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				if err := w.queue.EnqueueRenewal(w.ctx); err != nil {
					logger.Warn("Renewal enqueue failed: %v", err)
				}
			}
		}
	}()
	logger.Info("Subscription renewal scheduler started (interval: %s)", w.renewalInterval)
}

func (w *Worker) Stop() {
	w.cancel()
	w.pool.Stop()
	w.wg.Wait()
}

func (w *Worker) GetMetrics() worker.PoolMetrics {
	return w.pool.GetMetrics()
}
