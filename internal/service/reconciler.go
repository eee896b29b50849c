package service

import (
	"context"
	"errors"
	"log"
	"time"

	"nguvuhire/config"
	"nguvuhire/internal/domain"
	"nguvuhire/internal/metrics"
	"nguvuhire/internal/repository"
)

// Reconciler heals orders whose callbacks never arrived and lapses old boosts.
type Reconciler struct {
	orders   *repository.PaymentOrderRepository
	boosts   *repository.BoostRepository
	payments *PaymentService
	cfg      config.ReconcileConfig
	now      func() time.Time
}

func NewReconciler(cfg config.ReconcileConfig, orders *repository.PaymentOrderRepository, boosts *repository.BoostRepository, payments *PaymentService) *Reconciler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Reconciler{
		orders:   orders,
		boosts:   boosts,
		payments: payments,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type SweepResult struct {
	Checked       int   `json:"checked"`
	Completed     int   `json:"completed"`
	Failed        int   `json:"failed"`
	StillPending  int   `json:"still_pending"`
	Errors        int   `json:"errors"`
	Abandoned     int   `json:"abandoned"`
	BoostsExpired int64 `json:"boosts_expired"`
}

// Sweep runs one reconciliation pass. Per-order errors are counted, not returned.
func (r *Reconciler) Sweep(ctx context.Context) (*SweepResult, error) {
	now := r.now()
	res := &SweepResult{}

	stale, err := r.orders.ListStale(ctx, now.Add(-r.cfg.PendingAfter), r.cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	for i := range stale {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Checked++
		if err := r.orders.MarkChecked(ctx, stale[i].ID, now); err != nil {
			log.Printf("[RECONCILE] mark checked %s: %v", stale[i].Reference, err)
		}
		fr, err := r.payments.Finalize(ctx, &stale[i], SourceReconcile)
		if err != nil {
			res.Errors++
			log.Printf("[RECONCILE] %s: %v", stale[i].Reference, err)
			continue
		}
		switch fr.Order.Status {
		case domain.OrderStatusCompleted:
			res.Completed++
		case domain.OrderStatusFailed:
			res.Failed++
		default:
			res.StillPending++
		}
	}

	abandoned, err := r.orders.ListAbandoned(ctx, now.Add(-r.cfg.AbandonAfter), r.cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	for _, o := range abandoned {
		won, err := r.orders.Transition(ctx, o.ID, domain.OrderStatusFailed, map[string]interface{}{"failure_reason": "abandoned"})
		if err != nil {
			res.Errors++
			log.Printf("[RECONCILE] abandon %s: %v", o.Reference, err)
			continue
		}
		if won {
			res.Abandoned++
			metrics.RecordOrderFinalized(o.Kind, domain.OrderStatusFailed, SourceReconcile)
		}
	}

	res.BoostsExpired, err = r.boosts.ExpireAll(ctx, now)
	if err != nil {
		return nil, err
	}

	metrics.RecordReconcile("completed", res.Completed)
	metrics.RecordReconcile("failed", res.Failed)
	metrics.RecordReconcile("pending", res.StillPending)
	metrics.RecordReconcile("error", res.Errors)
	metrics.RecordReconcile("abandoned", res.Abandoned)
	if res.Checked > 0 || res.Abandoned > 0 || res.BoostsExpired > 0 {
		log.Printf("[RECONCILE] checked=%d completed=%d failed=%d pending=%d errors=%d abandoned=%d boosts_expired=%d",
			res.Checked, res.Completed, res.Failed, res.StillPending, res.Errors, res.Abandoned, res.BoostsExpired)
	}
	return res, nil
}

// Run sweeps every interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	interval := r.cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Printf("[RECONCILE] running every %s", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("[RECONCILE] sweep failed: %v", err)
			}
		}
	}
}
