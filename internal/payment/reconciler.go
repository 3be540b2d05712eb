package payment

import (
	"context"
	"log/slog"
	"time"
)

// IndexReconciler periodically re-derives the status index from the payment records and
// removes entries that no longer match a record. An interval of 0 disables it.
type IndexReconciler struct {
	store    Store
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewIndexReconciler creates a reconciler but does not start it.
func NewIndexReconciler(store Store, interval time.Duration, logger *slog.Logger) *IndexReconciler {
	return &IndexReconciler{
		store:    store,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start runs one pass immediately and then repeats on the interval until ctx is
// cancelled or Stop is called.
func (r *IndexReconciler) Start(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Info("index reconciler disabled")
		close(r.done)
		return
	}

	ctx, r.cancel = context.WithCancel(ctx)

	go r.loop(ctx)

	r.logger.Info("index reconciler started", "interval", r.interval.String())
}

// Stop signals the loop to exit and waits for it.
func (r *IndexReconciler) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
}

// RunOnce performs a single repair pass and returns the number of index rows changed.
func (r *IndexReconciler) RunOnce(ctx context.Context) (int64, error) {
	changed, err := r.store.RepairIndex(ctx)
	if err != nil {
		r.logger.Error("index reconcile failed", "error", err)
		return 0, err
	}
	if changed > 0 {
		r.logger.Warn("index reconcile repaired drift", "changed", changed)
	}
	return changed, nil
}

func (r *IndexReconciler) loop(ctx context.Context) {
	defer close(r.done)

	_, _ = r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = r.RunOnce(ctx)
		}
	}
}
