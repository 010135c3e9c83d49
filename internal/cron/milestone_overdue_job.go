package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/jmorales/caterflow-backend/pkg/logger"
)

type overdueSweeper interface {
	SweepOverdue(ctx context.Context, asOf time.Time) (int, error)
}

// MilestoneOverdueJobParams configure the overdue sweep.
type MilestoneOverdueJobParams struct {
	Logger   *logger.Logger
	Payments overdueSweeper
}

// NewMilestoneOverdueJob flips invoices with past-due unpaid milestones to
// overdue on every cron cycle.
func NewMilestoneOverdueJob(params MilestoneOverdueJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	return &milestoneOverdueJob{
		logg:     params.Logger,
		payments: params.Payments,
		now:      time.Now,
	}, nil
}

type milestoneOverdueJob struct {
	logg     *logger.Logger
	payments overdueSweeper
	now      func() time.Time
}

func (j *milestoneOverdueJob) Name() string { return "milestone-overdue" }

func (j *milestoneOverdueJob) Run(ctx context.Context) error {
	asOf := j.now().UTC()
	flipped, err := j.payments.SweepOverdue(ctx, asOf)
	if err != nil {
		return fmt.Errorf("overdue sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"as_of":            asOf,
		"invoices_flipped": flipped,
	})
	j.logg.Info(logCtx, "overdue sweep complete")
	return nil
}
