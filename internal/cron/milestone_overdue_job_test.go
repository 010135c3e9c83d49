package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmorales/caterflow-backend/pkg/logger"
)

type fakeSweeper struct {
	asOf    time.Time
	flipped int
	err     error
	calls   int
}

func (f *fakeSweeper) SweepOverdue(ctx context.Context, asOf time.Time) (int, error) {
	f.calls++
	f.asOf = asOf
	return f.flipped, f.err
}

func TestMilestoneOverdueJobRunsSweep(t *testing.T) {
	now := time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC)
	sweeper := &fakeSweeper{flipped: 2}
	jobIface, err := NewMilestoneOverdueJob(MilestoneOverdueJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Payments: sweeper,
	})
	if err != nil {
		t.Fatalf("NewMilestoneOverdueJob: %v", err)
	}
	job := jobIface.(*milestoneOverdueJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.calls != 1 {
		t.Fatalf("expected one sweep, got %d", sweeper.calls)
	}
	if !sweeper.asOf.Equal(now) {
		t.Fatalf("expected as-of %s, got %s", now, sweeper.asOf)
	}
}

func TestMilestoneOverdueJobPropagatesError(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("boom")}
	jobIface, err := NewMilestoneOverdueJob(MilestoneOverdueJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Payments: sweeper,
	})
	if err != nil {
		t.Fatalf("NewMilestoneOverdueJob: %v", err)
	}
	if err := jobIface.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
