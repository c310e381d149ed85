package msgworker

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// MessageJob is one unit of inbound webhook work. Jobs sharing ChannelKey and
// ChatKey always land on the same worker, so a chat is processed in order.
type MessageJob struct {
	ChannelKey string
	ChatKey    string
	Handler    func(ctx context.Context) error
}

func (j MessageJob) key() string {
	return j.ChannelKey + "|" + j.ChatKey
}

// PoolStats is a point-in-time snapshot of the pool.
type PoolStats struct {
	NumWorkers      int            `json:"num_workers"`
	QueueSize       int            `json:"queue_size"`
	ActiveWorkers   int            `json:"active_workers"`
	TotalDispatched int64          `json:"total_dispatched"`
	TotalProcessed  int64          `json:"total_processed"`
	TotalDropped    int64          `json:"total_dropped"`
	TotalErrors     int64          `json:"total_errors"`
	WorkerStats     []WorkerStats  `json:"worker_stats"`
	ActiveChats     map[string]int `json:"active_chats"` // channel|chat -> worker id
}

type WorkerStats struct {
	WorkerID      int   `json:"worker_id"`
	QueueDepth    int   `json:"queue_depth"`
	IsProcessing  bool  `json:"is_processing"`
	JobsProcessed int64 `json:"jobs_processed"`
}

type activeChatEntry struct {
	workerID  int
	updatedAt time.Time
}

const activeChatTTL = 2 * time.Second

// MessageWorkerPool runs inbound jobs off the HTTP request path.
type MessageWorkerPool struct {
	numWorkers int
	queueSize  int
	workers    []*worker
	wg         sync.WaitGroup
	stopOnce   sync.Once
	stopped    int32
	stopCh     chan struct{}

	totalDispatched int64
	totalProcessed  int64
	totalDropped    int64
	totalErrors     int64

	activeChatsMu sync.Mutex
	activeChats   map[string]activeChatEntry
}

type worker struct {
	id            int
	jobQueue      chan MessageJob
	ctx           context.Context
	cancel        context.CancelFunc
	isProcessing  int32
	jobsProcessed int64
	pool          *MessageWorkerPool
}

func NewMessageWorkerPool(numWorkers, queueSize int) *MessageWorkerPool {
	if numWorkers <= 0 {
		numWorkers = 10
	}
	if queueSize <= 0 {
		queueSize = 100
	}

	return &MessageWorkerPool{
		numWorkers:  numWorkers,
		queueSize:   queueSize,
		workers:     make([]*worker, numWorkers),
		activeChats: make(map[string]activeChatEntry),
		stopCh:      make(chan struct{}),
	}
}

// Start launches the workers and the janitor that expires active-chat entries.
func (p *MessageWorkerPool) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.expireActiveChats(time.Now())
			}
		}
	}()

	for i := 0; i < p.numWorkers; i++ {
		workerCtx, cancel := context.WithCancel(ctx)
		w := &worker{
			id:       i,
			jobQueue: make(chan MessageJob, p.queueSize),
			ctx:      workerCtx,
			cancel:   cancel,
			pool:     p,
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(&p.wg)
	}

	logrus.Infof("[MSG_WORKER_POOL] Started with %d workers, queue size: %d", p.numWorkers, p.queueSize)
}

// TryDispatch enqueues without blocking and reports whether the job was accepted.
func (p *MessageWorkerPool) TryDispatch(job MessageJob) bool {
	if atomic.LoadInt32(&p.stopped) == 1 {
		atomic.AddInt64(&p.totalDropped, 1)
		return false
	}

	shard := p.shardFor(job)
	atomic.AddInt64(&p.totalDispatched, 1)

	chatKey := job.key()
	p.activeChatsMu.Lock()
	p.activeChats[chatKey] = activeChatEntry{workerID: shard, updatedAt: time.Now()}
	p.activeChatsMu.Unlock()

	sent := func() (ok bool) {
		// a concurrent Stop closes the queue; sending on it panics
		defer func() {
			if r := recover(); r != nil {
				ok = false
			}
		}()
		select {
		case p.workers[shard].jobQueue <- job:
			return true
		default:
			return false
		}
	}()
	if sent {
		return true
	}

	p.activeChatsMu.Lock()
	delete(p.activeChats, chatKey)
	p.activeChatsMu.Unlock()

	atomic.AddInt64(&p.totalDropped, 1)
	logrus.Warnf("[MSG_WORKER_POOL] Worker %d queue full (or stopped), dropping job for %s", shard, chatKey)
	return false
}

func (p *MessageWorkerPool) Dispatch(job MessageJob) {
	_ = p.TryDispatch(job)
}

// Stop drains the queues and waits for every worker to exit.
func (p *MessageWorkerPool) Stop() {
	p.stopOnce.Do(func() {
		atomic.StoreInt32(&p.stopped, 1)
		close(p.stopCh)
		logrus.Info("[MSG_WORKER_POOL] Stopping workers...")

		for _, w := range p.workers {
			if w == nil {
				continue
			}
			w.cancel()
			close(w.jobQueue)
		}
		p.wg.Wait()

		logrus.Info("[MSG_WORKER_POOL] All workers stopped")
	})
}

func (p *MessageWorkerPool) shardFor(job MessageJob) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(job.key()))
	return int(h.Sum32() % uint32(p.numWorkers))
}

func (p *MessageWorkerPool) expireActiveChats(now time.Time) {
	p.activeChatsMu.Lock()
	defer p.activeChatsMu.Unlock()
	for k, v := range p.activeChats {
		if now.Sub(v.updatedAt) > activeChatTTL {
			delete(p.activeChats, k)
		}
	}
}

func (p *MessageWorkerPool) GetStats() PoolStats {
	workerStats := make([]WorkerStats, 0, len(p.workers))
	activeWorkers := 0

	for _, w := range p.workers {
		if w == nil {
			continue
		}
		isProcessing := atomic.LoadInt32(&w.isProcessing) == 1
		if isProcessing {
			activeWorkers++
		}
		workerStats = append(workerStats, WorkerStats{
			WorkerID:      w.id,
			QueueDepth:    len(w.jobQueue),
			IsProcessing:  isProcessing,
			JobsProcessed: atomic.LoadInt64(&w.jobsProcessed),
		})
	}

	p.expireActiveChats(time.Now())
	p.activeChatsMu.Lock()
	snapshot := make(map[string]int, len(p.activeChats))
	for k, v := range p.activeChats {
		snapshot[k] = v.workerID
	}
	p.activeChatsMu.Unlock()

	return PoolStats{
		NumWorkers:      p.numWorkers,
		QueueSize:       p.queueSize,
		ActiveWorkers:   activeWorkers,
		TotalDispatched: atomic.LoadInt64(&p.totalDispatched),
		TotalProcessed:  atomic.LoadInt64(&p.totalProcessed),
		TotalDropped:    atomic.LoadInt64(&p.totalDropped),
		TotalErrors:     atomic.LoadInt64(&p.totalErrors),
		WorkerStats:     workerStats,
		ActiveChats:     snapshot,
	}
}

func (w *worker) run(wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case job, ok := <-w.jobQueue:
			if !ok {
				return
			}
			w.process(job)
		case <-w.ctx.Done():
			w.drainQueue()
			return
		}
	}
}

// process runs one job inside its own panic boundary.
func (w *worker) process(job MessageJob) {
	chatKey := job.key()
	atomic.StoreInt32(&w.isProcessing, 1)
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&w.pool.totalErrors, 1)
			logrus.Errorf("[MSG_WORKER_POOL] Worker %d panic for %s: %v", w.id, chatKey, r)
		}
		atomic.StoreInt32(&w.isProcessing, 0)
		atomic.AddInt64(&w.jobsProcessed, 1)
		atomic.AddInt64(&w.pool.totalProcessed, 1)
	}()

	if err := job.Handler(w.ctx); err != nil {
		atomic.AddInt64(&w.pool.totalErrors, 1)
		logrus.WithError(err).Errorf("[MSG_WORKER_POOL] Worker %d job failed for %s", w.id, chatKey)
	}
}

// drainQueue finishes whatever was accepted before shutdown, on a fresh context
// since the worker context is already cancelled.
func (w *worker) drainQueue() {
	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	saved := w.ctx
	w.ctx = drainCtx
	defer func() { w.ctx = saved }()

	for {
		select {
		case job, ok := <-w.jobQueue:
			if !ok {
				return
			}
			w.process(job)
		default:
			return
		}
	}
}
