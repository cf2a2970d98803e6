package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ads-marketplace/campaign-backend/internal/events"
	"github.com/ads-marketplace/campaign-backend/internal/metrics"
	"github.com/ads-marketplace/campaign-backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReceiptStore persists transaction receipts.
type ReceiptStore interface {
	Create(ctx context.Context, rc *models.TxReceipt) error
	Finalize(ctx context.Context, rc *models.TxReceipt) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.TxReceipt, error)
}

// TxFunc performs one marketplace write and returns its result.
type TxFunc func(ctx context.Context) (any, error)

type txJob struct {
	receipt *models.TxReceipt
	run     TxFunc
	done    chan struct{}
}

// TxService accepts writes and executes them one at a time, in submission
// order, on a single goroutine. Every write gets a receipt immediately;
// the receipt turns confirmed or failed once the write has run. Writes
// are never retried.
type TxService struct {
	receipts  ReceiptStore
	publisher events.Publisher
	queue     chan *txJob
	log       *zap.Logger

	mu      sync.Mutex
	waiting map[uuid.UUID]chan struct{}
}

func NewTxService(receipts ReceiptStore, publisher events.Publisher, queueSize int, log *zap.Logger) *TxService {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &TxService{
		receipts:  receipts,
		publisher: publisher,
		queue:     make(chan *txJob, queueSize),
		log:       log,
		waiting:   make(map[uuid.UUID]chan struct{}),
	}
}

// Run executes queued writes until ctx is cancelled.
func (s *TxService) Run(ctx context.Context) {
	s.log.Info("transaction executor started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info("transaction executor stopped", zap.Int("queued", len(s.queue)))
			return
		case job := <-s.queue:
			s.execute(ctx, job)
		}
	}
}

// Submit records a pending receipt and queues the write. It never blocks on
// a full queue.
func (s *TxService) Submit(ctx context.Context, op string, caller common.Address, run TxFunc) (*models.TxReceipt, error) {
	rc := &models.TxReceipt{
		ID:          uuid.New(),
		Op:          op,
		Caller:      caller.Hex(),
		Status:      models.TxStatusPending,
		SubmittedAt: time.Now(),
	}
	if err := s.receipts.Create(ctx, rc); err != nil {
		return nil, fmt.Errorf("create receipt: %w", err)
	}

	job := &txJob{receipt: rc, run: run, done: make(chan struct{})}
	s.mu.Lock()
	s.waiting[rc.ID] = job.done
	s.mu.Unlock()

	select {
	case s.queue <- job:
	default:
		s.forget(rc.ID)
		s.finalize(ctx, rc, nil, ErrQueueFull)
		return nil, ErrQueueFull
	}

	s.log.Debug("transaction submitted",
		zap.String("tx_id", rc.ID.String()),
		zap.String("op", op),
		zap.String("caller", rc.Caller),
	)
	cp := *rc
	return &cp, nil
}

// Wait blocks until the receipt is final or ctx is done, then returns it.
func (s *TxService) Wait(ctx context.Context, id uuid.UUID) (*models.TxReceipt, error) {
	s.mu.Lock()
	done, ok := s.waiting[id]
	s.mu.Unlock()
	if ok {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.receipts.GetByID(ctx, id)
}

func (s *TxService) Get(ctx context.Context, id uuid.UUID) (*models.TxReceipt, error) {
	return s.receipts.GetByID(ctx, id)
}

func (s *TxService) execute(ctx context.Context, job *txJob) {
	rc := job.receipt
	start := time.Now()

	result, err := s.run(ctx, job)

	metrics.OperationDuration.WithLabelValues(rc.Op).Observe(time.Since(start).Seconds())
	s.finalize(ctx, rc, result, err)
	s.forget(rc.ID)
	close(job.done)
}

// run executes one job. A panic fails the job instead of the executor.
func (s *TxService) run(ctx context.Context, job *txJob) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("transaction panicked",
				zap.String("tx_id", job.receipt.ID.String()),
				zap.String("op", job.receipt.Op),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			result, err = nil, fmt.Errorf("%s: panic: %v", job.receipt.Op, r)
		}
	}()
	return job.run(ctx)
}

// receiptMessage is the error text clients see on a failed receipt.
func receiptMessage(code string, err error) string {
	if code == CodeInternal && !errors.Is(err, ErrQueueFull) {
		return "internal error"
	}
	return err.Error()
}

func (s *TxService) finalize(ctx context.Context, rc *models.TxReceipt, result any, err error) {
	now := time.Now()
	rc.FinalizedAt = &now

	eventType := events.EventTxConfirmed
	if err != nil {
		code := ErrorCode(err)
		msg := receiptMessage(code, err)
		rc.Status = models.TxStatusFailed
		rc.ErrorCode = &code
		rc.Error = &msg
		eventType = events.EventTxFailed
		metrics.Operations.WithLabelValues(rc.Op, code).Inc()
		s.log.Info("transaction failed",
			zap.String("tx_id", rc.ID.String()),
			zap.String("op", rc.Op),
			zap.String("code", code),
			zap.Error(err),
		)
	} else {
		rc.Status = models.TxStatusConfirmed
		rc.Result = result
		metrics.Operations.WithLabelValues(rc.Op, "ok").Inc()
		s.log.Info("transaction confirmed",
			zap.String("tx_id", rc.ID.String()),
			zap.String("op", rc.Op),
		)
	}

	// The write has run; record it even if ctx was cancelled meanwhile.
	if ferr := s.receipts.Finalize(context.WithoutCancel(ctx), rc); ferr != nil {
		s.log.Error("failed to finalize receipt", zap.String("tx_id", rc.ID.String()), zap.Error(ferr))
	}

	payload := map[string]any{
		"tx_id":  rc.ID.String(),
		"op":     rc.Op,
		"caller": rc.Caller,
		"status": rc.Status,
	}
	if rc.ErrorCode != nil {
		payload["error_code"] = *rc.ErrorCode
	}
	if s.publisher != nil {
		if perr := s.publisher.Publish(context.WithoutCancel(ctx), events.StreamNotifications, events.Event{Type: eventType, Payload: payload}); perr != nil {
			s.log.Warn("failed to publish tx event", zap.Error(perr))
		}
	}
}

func (s *TxService) forget(id uuid.UUID) {
	s.mu.Lock()
	delete(s.waiting, id)
	s.mu.Unlock()
}
