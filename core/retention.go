package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	JobIDTransactionSweep = "accounttx.transactions.sweep"

	sweepParamRetentionSeconds = "retention_seconds"
	defaultSweepRetryDelay     = 30 * time.Second
)

// RetentionSweeper evicts terminal transactions once they have been idle for
// longer than the configured retention. It never touches PENDING or PREPARED
// records.
type RetentionSweeper struct {
	store      EvictingTransactionStore
	retention  time.Duration
	retryDelay time.Duration
	now        func() time.Time
}

type SweepResult struct {
	Evicted int
	Cutoff  time.Time
}

func NewRetentionSweeper(store TransactionStore, retention time.Duration) (*RetentionSweeper, error) {
	evicting, ok := store.(EvictingTransactionStore)
	if !ok || evicting == nil {
		return nil, fmt.Errorf("core: transaction store does not support eviction")
	}
	if retention < 0 {
		return nil, fmt.Errorf("core: invalid retention %s", retention)
	}
	return &RetentionSweeper{
		store:      evicting,
		retention:  retention,
		retryDelay: defaultSweepRetryDelay,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// RetentionSweeper builds a sweeper over the service transaction store using
// transactions.retention_seconds.
func (s *Service) RetentionSweeper() (*RetentionSweeper, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	sweeper, err := NewRetentionSweeper(s.transactions, s.config.Transactions.Retention())
	if err != nil {
		return nil, s.mapError(err)
	}
	sweeper.now = s.now
	return sweeper, nil
}

// Sweep evicts eligible records. A zero retention disables eviction.
func (r *RetentionSweeper) Sweep(ctx context.Context) (SweepResult, error) {
	if r == nil || r.store == nil {
		return SweepResult{}, fmt.Errorf("core: retention sweeper is not configured")
	}
	return r.SweepOlderThan(ctx, r.retention)
}

// SweepOlderThan evicts terminal records idle for longer than retention,
// overriding the configured value for one run.
func (r *RetentionSweeper) SweepOlderThan(ctx context.Context, retention time.Duration) (SweepResult, error) {
	if r == nil || r.store == nil {
		return SweepResult{}, fmt.Errorf("core: retention sweeper is not configured")
	}
	if retention <= 0 {
		return SweepResult{}, nil
	}
	cutoff := r.now().Add(-retention)
	evicted, err := r.store.EvictTerminal(ctx, cutoff)
	if err != nil {
		return SweepResult{Cutoff: cutoff}, err
	}
	return SweepResult{Evicted: evicted, Cutoff: cutoff}, nil
}

// Schedule enqueues one sweep job. Jobs sharing idempotencyKey are dropped
// by queues that honour the dedup policy.
func (r *RetentionSweeper) Schedule(ctx context.Context, enqueuer JobEnqueuer, idempotencyKey string) error {
	if r == nil {
		return fmt.Errorf("core: retention sweeper is not configured")
	}
	if enqueuer == nil {
		return fmt.Errorf("core: job enqueuer is required")
	}
	msg := &JobExecutionMessage{
		JobID: JobIDTransactionSweep,
		Parameters: map[string]any{
			sweepParamRetentionSeconds: int(r.retention / time.Second),
		},
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
	}
	if msg.IdempotencyKey != "" {
		msg.DedupPolicy = "drop"
	}
	return enqueuer.Enqueue(ctx, msg)
}

// ProcessNext dequeues one delivery and runs it. Sweep jobs are acked on
// success and requeued with a delay on failure; unknown jobs are dead-lettered.
func (r *RetentionSweeper) ProcessNext(ctx context.Context, dequeuer JobDequeuer) (SweepResult, error) {
	if r == nil {
		return SweepResult{}, fmt.Errorf("core: retention sweeper is not configured")
	}
	if dequeuer == nil {
		return SweepResult{}, fmt.Errorf("core: job dequeuer is required")
	}
	delivery, err := dequeuer.Dequeue(ctx)
	if err != nil {
		return SweepResult{}, err
	}
	if delivery == nil {
		return SweepResult{}, nil
	}

	msg := delivery.Message()
	if msg == nil || strings.TrimSpace(msg.JobID) != JobIDTransactionSweep {
		jobID := ""
		if msg != nil {
			jobID = msg.JobID
		}
		nackErr := delivery.Nack(ctx, JobNackOptions{
			DeadLetter: true,
			Reason:     fmt.Sprintf("unexpected job %q", jobID),
		})
		return SweepResult{}, joinErrors(fmt.Errorf("core: unexpected job %q", jobID), nackErr)
	}

	result, sweepErr := r.Sweep(ctx)
	if sweepErr != nil {
		nackErr := delivery.Nack(ctx, JobNackOptions{
			Delay:   r.retryDelay,
			Requeue: true,
			Reason:  sweepErr.Error(),
		})
		return result, joinErrors(sweepErr, nackErr)
	}
	if err := delivery.Ack(ctx); err != nil {
		return result, err
	}
	return result, nil
}

func joinErrors(existing error, next error) error {
	if existing == nil {
		return next
	}
	if next == nil {
		return existing
	}
	return fmt.Errorf("%w; %v", existing, next)
}

// SweepWorkerHook reports sweep worker events through the service logger and
// metrics recorder.
func (s *Service) SweepWorkerHook() JobWorkerHook {
	return sweepWorkerHook{service: s}
}

type sweepWorkerHook struct {
	service *Service
}

func (h sweepWorkerHook) OnStart(ctx context.Context, event JobWorkerEvent) {
	h.record(ctx, "start", event)
}

func (h sweepWorkerHook) OnSuccess(ctx context.Context, event JobWorkerEvent) {
	h.record(ctx, "success", event)
}

func (h sweepWorkerHook) OnFailure(ctx context.Context, event JobWorkerEvent) {
	h.record(ctx, "failure", event)
}

func (h sweepWorkerHook) OnRetry(ctx context.Context, event JobWorkerEvent) {
	h.record(ctx, "retry", event)
}

func (h sweepWorkerHook) record(ctx context.Context, stage string, event JobWorkerEvent) {
	if h.service == nil {
		return
	}
	jobID := ""
	if event.Message != nil {
		jobID = event.Message.JobID
	}
	fields := map[string]any{
		"job_id":  jobID,
		"stage":   stage,
		"attempt": event.Attempt,
	}
	if event.Duration > 0 {
		fields["duration_ms"] = event.Duration.Milliseconds()
	}
	if event.Delay > 0 {
		fields["delay_ms"] = event.Delay.Milliseconds()
	}
	h.service.recordCounter(ctx, "accounttx.sweep_worker."+stage+".total", 1, map[string]string{"job_id": jobID})
	if event.Err != nil {
		fields["error"] = event.Err.Error()
		h.service.logWithLevel(ctx, "warn", "sweep worker "+stage, fields)
		return
	}
	h.service.logInfo(ctx, "sweep worker "+stage, fields)
}
