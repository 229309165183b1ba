package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/maninjwa/stock-count-backend/internal/infra"
	"github.com/maninjwa/stock-count-backend/internal/metrics"
	"github.com/maninjwa/stock-count-backend/internal/service"
)

const (
	QueueReconcile = "jobs:reconcile"
	QueueNotify    = "jobs:notify"

	JobReconcile = "reconcile"
	JobNotify    = "notify"
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

type ReconcilePayload struct {
	AreaID uuid.UUID `json:"area_id"`
}

type NotifyPayload struct {
	AreaID       uuid.UUID `json:"area_id"`
	ComparisonID uuid.UUID `json:"comparison_id"`
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb     *redis.Client
	cb      *infra.CircuitBreaker
	metrics *metrics.Metrics
}

func NewDispatcher(rdb *redis.Client, cb *infra.CircuitBreaker, m *metrics.Metrics) *Dispatcher {
	if cb == nil {
		cb = infra.NewCircuitBreaker(infra.DefaultCBConfig())
	}
	return &Dispatcher{rdb: rdb, cb: cb, metrics: m}
}

// EnqueueReconcile pushes a reconciliation job to Redis.
func (d *Dispatcher) EnqueueReconcile(ctx context.Context, areaID uuid.UUID) error {
	return d.enqueue(ctx, QueueReconcile, JobReconcile, ReconcilePayload{AreaID: areaID})
}

// ComparisonReady pushes a notification job to Redis.
func (d *Dispatcher) ComparisonReady(ctx context.Context, areaID, comparisonID uuid.UUID) error {
	return d.enqueue(ctx, QueueNotify, JobNotify, NotifyPayload{AreaID: areaID, ComparisonID: comparisonID})
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	return d.cb.Execute(func() error {
		return d.rdb.LPush(ctx, queue, encoded).Err()
	})
}

// Trigger returns a ReconcileTrigger that queues the job and runs fallback inline
// when the queue is unreachable or its circuit is open.
func (d *Dispatcher) Trigger(fallback service.ReconcileTrigger) service.ReconcileTrigger {
	return queuedTrigger{d: d, fallback: fallback}
}

type queuedTrigger struct {
	d        *Dispatcher
	fallback service.ReconcileTrigger
}

func (t queuedTrigger) TriggerReconcile(ctx context.Context, areaID uuid.UUID) error {
	err := t.d.EnqueueReconcile(ctx, areaID)
	if err == nil {
		return nil
	}
	log.Warn().Err(err).Str("area_id", areaID.String()).Msg("dispatcher: queue unavailable, reconciling inline")
	t.d.metrics.QueueFallback()
	return t.fallback.TriggerReconcile(ctx, areaID)
}

// Handler processes the payload of one job. A returned error schedules a retry.
type Handler func(ctx context.Context, payload json.RawMessage) error

// ErrPermanent marks a job failure that retrying cannot fix; the job goes straight
// to the dead letter queue.
var ErrPermanent = errors.New("permanent job failure")

// Pool runs numWorkers goroutines consuming the registered queues.
type Pool struct {
	rdb         *redis.Client
	handlers    map[string]Handler
	queues      []string
	maxAttempts int
	metrics     *metrics.Metrics
	wg          sync.WaitGroup
	// errBackoff is the pause after a pop fails with anything but a timeout.
	errBackoff  time.Duration
}

func NewPool(rdb *redis.Client, maxAttempts int, m *metrics.Metrics) *Pool {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Pool{
		rdb:         rdb,
		handlers:    map[string]Handler{},
		maxAttempts: maxAttempts,
		metrics:     m,
		errBackoff:  time.Second,
	}
}

// Handle registers h for jobs of jobType arriving on queue.
func (p *Pool) Handle(queue, jobType string, h Handler) {
	p.handlers[jobType] = h
	for _, q := range p.queues {
		if q == queue {
			return
		}
	}
	p.queues = append(p.queues, queue)
}

// Start launches the workers. Each goroutine blocks on BRPOP, so idle workers cost
// nothing. Workers stop when ctx is cancelled; Wait blocks until they have.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.run(ctx, id)
		}(i)
	}
	log.Info().Strs("queues", p.queues).Msgf("worker pool started with %d workers", numWorkers)
}

func (p *Pool) Wait() { p.wg.Wait() }

func (p *Pool) run(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop: waits up to 5s then loops to check ctx
			result, err := p.rdb.BRPop(ctx, 5*time.Second, p.queues...).Result()
			if errors.Is(err, redis.Nil) {
				continue // timeout
			}
			if err != nil {
				if ctx.Err() == nil {
					log.Warn().Err(err).Msgf("worker %d: pop failed, backing off", id)
				}
				select {
				case <-ctx.Done():
				case <-time.After(p.errBackoff):
				}
				continue
			}
			if len(result) < 2 {
				continue
			}
			p.process(ctx, result[0], result[1])
		}
	}
}

func (p *Pool) process(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		SendToDLQ(ctx, p.rdb, queue, Job{Type: "unknown", Payload: json.RawMessage(raw)}, "unreadable job: "+err.Error())
		return
	}
	h, ok := p.handlers[job.Type]
	if !ok {
		SendToDLQ(ctx, p.rdb, queue, job, "no handler for job type")
		return
	}

	job.Attempts++
	err := h(ctx, job.Payload)
	switch {
	case err == nil:
		p.metrics.JobProcessed(job.Type, "ok")
		log.Debug().Str("type", job.Type).Int("attempt", job.Attempts).Msg("job processed")
	case errors.Is(err, ErrPermanent) || job.Attempts >= p.maxAttempts:
		p.metrics.JobProcessed(job.Type, "dead")
		SendToDLQ(ctx, p.rdb, queue, job, err.Error())
	default:
		p.metrics.JobProcessed(job.Type, "retry")
		log.Warn().Err(err).Str("type", job.Type).Int("attempt", job.Attempts).Msg("job failed, requeueing")
		encoded, mErr := json.Marshal(job)
		if mErr == nil {
			mErr = p.rdb.LPush(ctx, queue, encoded).Err()
		}
		if mErr != nil {
			SendToDLQ(ctx, p.rdb, queue, job, "requeue failed: "+mErr.Error())
		}
	}
}
