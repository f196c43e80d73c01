package cron

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/neferdidi/boba-backend/internal/cycles"
	"github.com/neferdidi/boba-backend/pkg/config"
	pkgerrors "github.com/neferdidi/boba-backend/pkg/errors"
	"github.com/neferdidi/boba-backend/pkg/logger"
)

type orderingLifecycle interface {
	OpenOrdering(ctx context.Context) (cycles.OpenResult, error)
	CloseOrdering(ctx context.Context) (cycles.CloseResult, error)
}

type orderingFlag interface {
	OrderingOpen(ctx context.Context) (bool, error)
}

// OrderingWindowJobParams configure the daily open/close schedule.
type OrderingWindowJobParams struct {
	Logger    *logger.Logger
	Lifecycle orderingLifecycle
	Flag      orderingFlag
	OpenAt    string
	CloseAt   string
	Location  *time.Location
	Now       func() time.Time
}

// NewOrderingWindowJob builds the job that opens ordering at OpenAt and closes
// it at CloseAt every day. A window whose close precedes its open spans
// midnight.
//
// The job acts on window edges so manual admin overrides survive until the next
// edge. Its first run reconciles the flag with the window.
func NewOrderingWindowJob(params OrderingWindowJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lifecycle == nil {
		return nil, fmt.Errorf("cycle lifecycle required")
	}
	if params.Flag == nil {
		return nil, fmt.Errorf("ordering flag reader required")
	}
	openAt, err := parseClock(params.OpenAt)
	if err != nil {
		return nil, fmt.Errorf("open time: %w", err)
	}
	closeAt, err := parseClock(params.CloseAt)
	if err != nil {
		return nil, fmt.Errorf("close time: %w", err)
	}
	if openAt == closeAt {
		return nil, fmt.Errorf("open and close times must differ")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &orderingWindowJob{
		logg:      params.Logger,
		lifecycle: params.Lifecycle,
		flag:      params.Flag,
		openAt:    openAt,
		closeAt:   closeAt,
		loc:       loc,
		now:       now,
	}, nil
}

type orderingWindowJob struct {
	logg      *logger.Logger
	lifecycle orderingLifecycle
	flag      orderingFlag
	openAt    time.Duration
	closeAt   time.Duration
	loc       *time.Location
	now       func() time.Time

	mu   sync.Mutex
	last *bool
}

func (j *orderingWindowJob) Name() string { return "ordering-window" }

func (j *orderingWindowJob) Run(ctx context.Context) error {
	inside := j.inWindow(j.now())

	j.mu.Lock()
	first := j.last == nil
	edge := first || *j.last != inside
	j.mu.Unlock()
	if !edge {
		return nil
	}

	open, err := j.flag.OrderingOpen(ctx)
	if err != nil {
		return fmt.Errorf("read ordering flag: %w", err)
	}

	switch {
	case inside && !open:
		res, err := j.lifecycle.OpenOrdering(ctx)
		if err != nil {
			return fmt.Errorf("open ordering: %w", err)
		}
		if res.Cycle != nil {
			ctx = j.logg.WithCycleID(ctx, res.Cycle.ID)
		}
		j.logg.Info(j.logg.WithField(ctx, "opened_new_cycle", res.OpenedNewCycle), "ordering window opened")
	case !inside && open:
		res, err := j.lifecycle.CloseOrdering(ctx)
		if err != nil && pkgerrors.As(err).Reason() != cycles.ReasonAlreadyClosed {
			return fmt.Errorf("close ordering: %w", err)
		}
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"cycle_ended":   res.CycleEnded,
			"discount_rate": res.DiscountRate,
			"order_count":   res.OrderCount,
		}), "ordering window closed")
	}

	j.mu.Lock()
	j.last = &inside
	j.mu.Unlock()
	return nil
}

func (j *orderingWindowJob) inWindow(t time.Time) bool {
	local := t.In(j.loc)
	offset := time.Duration(local.Hour())*time.Hour + time.Duration(local.Minute())*time.Minute
	if j.openAt < j.closeAt {
		return offset >= j.openAt && offset < j.closeAt
	}
	return offset >= j.openAt || offset < j.closeAt
}

func parseClock(value string) (time.Duration, error) {
	t, err := time.Parse(config.ClockLayout, strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
