package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/hostel-dispatch/internal/service"
)

// Scanner runs one escalation pass.
type Scanner interface {
	RunScan(ctx context.Context, now time.Time, dryRun bool) (*service.ScanReport, error)
}

// EscalationWorker runs the escalation scan on a fixed interval.
type EscalationWorker struct {
	scanner  Scanner
	interval time.Duration
	logger   *zap.Logger
	clock    func() time.Time

	wg sync.WaitGroup
}

// NewEscalationWorker builds a worker that scans every interval.
func NewEscalationWorker(scanner Scanner, interval time.Duration, logger *zap.Logger) *EscalationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EscalationWorker{
		scanner:  scanner,
		interval: interval,
		logger:   logger,
		clock:    time.Now,
	}
}

// Start launches the loop. The first scan runs straight away, then once per
// interval. Start returns immediately; the loop exits when ctx is cancelled.
// Use Wait to block until it has.
func (w *EscalationWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ticker.Stop()
		w.logger.Info("escalation worker started", zap.Duration("interval", w.interval))
		w.tick(ctx)
		for {
			select {
			case <-ticker.C:
				w.tick(ctx)
			case <-ctx.Done():
				w.logger.Info("escalation worker stopping")
				return
			}
		}
	}()
}

// Wait blocks until the loop started by Start has returned.
func (w *EscalationWorker) Wait() {
	w.wg.Wait()
}

func (w *EscalationWorker) tick(ctx context.Context) {
	report, err := w.scanner.RunScan(ctx, w.clock().UTC(), false)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Error("escalation scan failed", zap.Error(err))
		return
	}
	if len(report.Applied) > 0 {
		w.logger.Info("escalation scan applied actions", zap.Int("applied", len(report.Applied)))
	}
}
