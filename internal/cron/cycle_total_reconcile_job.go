package cron

import (
	"context"
	"fmt"

	"github.com/neferdidi/boba-backend/internal/cycles"
	"github.com/neferdidi/boba-backend/pkg/logger"
)

type totalReconciler interface {
	ReconcileActiveTotal(ctx context.Context) (cycles.ReconcileResult, error)
}

// NewCycleTotalReconcileJob builds the job that re-derives the active cycle's
// running total from its orders.
func NewCycleTotalReconcileJob(logg *logger.Logger, reconciler totalReconciler) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	return &cycleTotalReconcileJob{logg: logg, reconciler: reconciler}, nil
}

type cycleTotalReconcileJob struct {
	logg       *logger.Logger
	reconciler totalReconciler
}

func (j *cycleTotalReconcileJob) Name() string { return "cycle-total-reconcile" }

func (j *cycleTotalReconcileJob) Run(ctx context.Context) error {
	res, err := j.reconciler.ReconcileActiveTotal(ctx)
	if err != nil {
		return fmt.Errorf("reconcile active total: %w", err)
	}
	if res.CycleID == nil {
		return nil
	}
	j.logg.Debug(j.logg.WithFields(j.logg.WithCycleID(ctx, *res.CycleID), map[string]any{
		"total_amount": res.Current,
		"changed":      res.Changed,
	}), "cycle total reconciled")
	return nil
}
