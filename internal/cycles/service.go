package cycles

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/neferdidi/boba-backend/internal/discounts"
	"github.com/neferdidi/boba-backend/internal/pricing"
	"github.com/neferdidi/boba-backend/internal/settings"
	"github.com/neferdidi/boba-backend/pkg/db"
	"github.com/neferdidi/boba-backend/pkg/db/models"
	"github.com/neferdidi/boba-backend/pkg/enums"
	pkgerrors "github.com/neferdidi/boba-backend/pkg/errors"
	"github.com/neferdidi/boba-backend/pkg/logger"
	"github.com/neferdidi/boba-backend/pkg/metrics"
	"gorm.io/gorm"
)

const (
	defaultMaxVisibleCycles = 10

	ReasonAlreadyClosed    = "ordering_already_closed"
	ReasonNotEnded         = "cycle_not_ended"
	ReasonAlreadyConfirmed = "cycle_already_confirmed"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the lifecycle manager.
type ServiceParams struct {
	Repo     Repository
	Rules    discounts.Repository
	Settings *settings.Repository
	TxRunner txRunner
	Logger   *logger.Logger
	Metrics  *metrics.OrderingMetrics
	// PreviewRules serves read-only tier previews; defaults to Rules.
	PreviewRules     discounts.Source
	Now              func() time.Time
	MaxVisibleCycles int
}

// Service drives cycles through active -> ended -> confirmed.
type Service struct {
	repo         Repository
	rules        discounts.Repository
	settings     *settings.Repository
	tx           txRunner
	logg         *logger.Logger
	metrics      *metrics.OrderingMetrics
	previewRules discounts.Source
	now          func() time.Time
	maxVisible   int
}

type OpenResult struct {
	OpenedNewCycle bool                  `json:"opened_new_cycle"`
	Cycle          *models.OrderingCycle `json:"cycle"`
}

type CloseResult struct {
	CycleEnded   bool    `json:"cycle_ended"`
	DiscountRate float64 `json:"discount_rate"`
	CycleID      *int64  `json:"cycle_id,omitempty"`
	OrderCount   int     `json:"order_count"`
}

type ConfirmResult struct {
	CycleID        int64     `json:"cycle_id"`
	DiscountRate   float64   `json:"discount_rate"`
	OrderCount     int64     `json:"order_count"`
	CancelledCount int64     `json:"cancelled_count"`
	ConfirmedAt    time.Time `json:"confirmed_at"`
}

// PreviewResult reports whether a closed cycle's discount was (re)applied.
type PreviewResult struct {
	DiscountApplied bool     `json:"discount_applied"`
	DiscountRate    *float64 `json:"discount_rate,omitempty"`
	CycleID         *int64   `json:"cycle_id,omitempty"`
	OrderCount      int      `json:"order_count"`
}

// CycleDiscount is the live tier view of the active cycle.
type CycleDiscount struct {
	Cycle           *models.OrderingCycle `json:"cycle"`
	CurrentDiscount *discounts.Match      `json:"current_discount"`
	NextDiscount    *discounts.NextTier   `json:"next_discount"`
}

type Statistics struct {
	Cycle *models.OrderingCycle `json:"cycle"`
	OrderStats
}

type ReconcileResult struct {
	CycleID  *int64  `json:"cycle_id,omitempty"`
	Previous float64 `json:"previous"`
	Current  float64 `json:"current"`
	Changed  bool    `json:"changed"`
}

// NewService builds the cycle lifecycle manager.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cycles repository required")
	}
	if params.Rules == nil {
		return nil, fmt.Errorf("discount rules repository required")
	}
	if params.Settings == nil {
		return nil, fmt.Errorf("settings repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	preview := params.PreviewRules
	if preview == nil {
		preview = params.Rules
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	maxVisible := params.MaxVisibleCycles
	if maxVisible <= 0 {
		maxVisible = defaultMaxVisibleCycles
	}
	return &Service{
		repo:         params.Repo,
		rules:        params.Rules,
		settings:     params.Settings,
		tx:           params.TxRunner,
		logg:         params.Logger,
		metrics:      params.Metrics,
		previewRules: preview,
		now:          now,
		maxVisible:   maxVisible,
	}, nil
}

// OpenOrdering starts a new cycle unless one is already active.
func (s *Service) OpenOrdering(ctx context.Context) (OpenResult, error) {
	var result OpenResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		store := s.settings.WithTx(tx)

		active, err := repo.FindActive(ctx)
		if err != nil {
			return err
		}
		if active != nil {
			result = OpenResult{Cycle: active}
			open, err := store.OrderingOpen(ctx)
			if err != nil || open {
				return err
			}
			s.logg.Warn(s.logg.WithCycleID(ctx, active.ID), "ordering flag was off with an active cycle; reopening flag")
			return store.SetOrderingOpen(ctx, true)
		}

		cycle := &models.OrderingCycle{
			CycleNumber: s.newCycleNumber(),
			StartTime:   s.now().UTC(),
			Status:      enums.CycleStatusActive,
		}
		if err := repo.Create(ctx, cycle); err != nil {
			if db.IsUniqueViolation(err, "") {
				// another process opened a cycle between our read and insert
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "another cycle is already active")
			}
			return err
		}
		if err := store.SetOrderingOpen(ctx, true); err != nil {
			return err
		}
		result = OpenResult{OpenedNewCycle: true, Cycle: cycle}
		return nil
	})
	if err != nil {
		return OpenResult{}, s.txFailure(ctx, "open ordering", err)
	}

	if result.OpenedNewCycle {
		s.metrics.IncTransition("opened")
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"cycle_id":     result.Cycle.ID,
			"cycle_number": result.Cycle.CycleNumber,
		}), "ordering opened")
	}
	return result, nil
}

// CloseOrdering ends the active cycle, fixes its discount rate and reprices its
// pending orders.
func (s *Service) CloseOrdering(ctx context.Context) (CloseResult, error) {
	var result CloseResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		store := s.settings.WithTx(tx)

		open, err := store.OrderingOpen(ctx)
		if err != nil {
			return err
		}
		if !open {
			return pkgerrors.StateConflict(ReasonAlreadyClosed, "ordering is already closed")
		}

		active, err := repo.FindActive(ctx)
		if err != nil {
			return err
		}
		if active == nil {
			return store.SetOrderingOpen(ctx, false)
		}

		total, err := s.adoptOrphans(ctx, repo, active, true)
		if err != nil {
			return err
		}

		rules, err := s.rules.WithTx(tx).ListActive(ctx)
		if err != nil {
			return err
		}
		rate := discounts.RateFor(rules, total)

		endTime := s.now().UTC()
		if endTime.Before(active.StartTime) {
			endTime = active.StartTime
		}
		if err := repo.Update(ctx, active.ID, map[string]any{
			"end_time":      endTime,
			"status":        enums.CycleStatusEnded,
			"discount_rate": rate,
		}); err != nil {
			return err
		}

		repriced, err := s.reprice(ctx, repo, active.ID, rate)
		if err != nil {
			return err
		}
		if err := store.SetOrderingOpen(ctx, false); err != nil {
			return err
		}

		id := active.ID
		result = CloseResult{CycleEnded: true, DiscountRate: rate, CycleID: &id, OrderCount: repriced}
		return nil
	})
	if err != nil {
		return CloseResult{}, s.txFailure(ctx, "close ordering", err)
	}

	if result.CycleEnded {
		s.metrics.IncTransition("closed")
		s.metrics.SetDiscountRate(result.DiscountRate)
		s.metrics.AddRepriced("close", result.OrderCount)
		s.logg.Info(s.logg.WithFields(s.logg.WithCycleID(ctx, *result.CycleID), map[string]any{
			"discount_rate": result.DiscountRate,
			"order_count":   result.OrderCount,
		}), "ordering closed")
	} else {
		s.logg.Info(ctx, "ordering closed without an active cycle")
	}
	return result, nil
}

// ConfirmCycle finalizes an ended cycle and cancels the orders left unpaid.
func (s *Service) ConfirmCycle(ctx context.Context, cycleID int64) (ConfirmResult, error) {
	if cycleID <= 0 {
		return ConfirmResult{}, pkgerrors.New(pkgerrors.CodeValidation, "cycle id must be positive")
	}
	ctx = s.logg.WithCycleID(ctx, cycleID)

	var result ConfirmResult
	var repriced int
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cycle, err := repo.FindByID(ctx, cycleID)
		if err != nil {
			return err
		}
		if cycle == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cycle not found")
		}
		switch cycle.Status {
		case enums.CycleStatusEnded:
		case enums.CycleStatusConfirmed:
			return pkgerrors.StateConflict(ReasonAlreadyConfirmed, "cycle is already confirmed")
		default:
			return pkgerrors.StateConflict(ReasonNotEnded, "cycle has not ended")
		}

		// the rate is locked; late orders join at that rate without moving the total
		if _, err := s.adoptOrphans(ctx, repo, cycle, false); err != nil {
			return err
		}
		repriced, err = s.reprice(ctx, repo, cycle.ID, cycle.DiscountRate)
		if err != nil {
			return err
		}
		cancelled, err := repo.CancelPendingOrders(ctx, cycle.ID)
		if err != nil {
			return err
		}
		count, err := repo.CountOrders(ctx, cycle.ID)
		if err != nil {
			return err
		}

		confirmedAt := s.now().UTC()
		if err := repo.Update(ctx, cycle.ID, map[string]any{
			"status":       enums.CycleStatusConfirmed,
			"confirmed_at": confirmedAt,
		}); err != nil {
			return err
		}

		result = ConfirmResult{
			CycleID:        cycle.ID,
			DiscountRate:   cycle.DiscountRate,
			OrderCount:     count,
			CancelledCount: cancelled,
			ConfirmedAt:    confirmedAt,
		}
		return nil
	})
	if err != nil {
		return ConfirmResult{}, s.txFailure(ctx, "confirm cycle", err)
	}

	s.metrics.IncTransition("confirmed")
	s.metrics.AddRepriced("confirm", repriced)
	s.metrics.AddCancelled(int(result.CancelledCount))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_count":     result.OrderCount,
		"cancelled_count": result.CancelledCount,
	}), "cycle confirmed")
	return result, nil
}

// PreviewOrLockDiscount re-applies the latest ended cycle's fixed rate to its
// pending orders. It does nothing while ordering is open.
func (s *Service) PreviewOrLockDiscount(ctx context.Context) (PreviewResult, error) {
	open, err := s.settings.OrderingOpen(ctx)
	if err != nil {
		return PreviewResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read ordering flag")
	}
	if open {
		return PreviewResult{}, nil
	}

	var result PreviewResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// the flag may have flipped while waiting for the writer slot
		open, err := s.settings.WithTx(tx).OrderingOpen(ctx)
		if err != nil || open {
			return err
		}
		latest, err := repo.FindLatestEnded(ctx)
		if err != nil || latest == nil {
			return err
		}
		n, err := s.reprice(ctx, repo, latest.ID, latest.DiscountRate)
		if err != nil {
			return err
		}
		rate, id := latest.DiscountRate, latest.ID
		result = PreviewResult{DiscountApplied: true, DiscountRate: &rate, CycleID: &id, OrderCount: n}
		return nil
	})
	if err != nil {
		return PreviewResult{}, s.txFailure(ctx, "lock discount", err)
	}
	if result.DiscountApplied {
		s.metrics.AddRepriced("preview", result.OrderCount)
	}
	return result, nil
}

// CurrentCycleDiscount returns the active cycle with its current and next tier.
func (s *Service) CurrentCycleDiscount(ctx context.Context) (CycleDiscount, error) {
	active, err := s.repo.FindActive(ctx)
	if err != nil {
		return CycleDiscount{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active cycle")
	}
	if active == nil {
		return CycleDiscount{}, nil
	}
	rules, err := s.previewRules.ListActive(ctx)
	if err != nil {
		return CycleDiscount{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load discount rules")
	}
	return CycleDiscount{
		Cycle:           active,
		CurrentDiscount: discounts.Resolve(rules, active.TotalAmount),
		NextDiscount:    discounts.ResolveNext(rules, active.TotalAmount),
	}, nil
}

// Statistics summarizes the active cycle, or the latest ended one when
// ordering is closed.
func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	cycle, err := s.repo.FindActive(ctx)
	if err != nil {
		return Statistics{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active cycle")
	}
	if cycle == nil {
		cycle, err = s.repo.FindLatestEnded(ctx)
		if err != nil {
			return Statistics{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load latest ended cycle")
		}
	}
	if cycle == nil {
		return Statistics{}, nil
	}

	stats, err := s.repo.OrderStats(ctx, cycle.ID)
	if err != nil {
		return Statistics{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate cycle orders")
	}
	stats.TotalAmount = pricing.RoundAmount(stats.TotalAmount)
	stats.TotalDiscount = pricing.RoundAmount(stats.TotalDiscount)
	stats.TotalFinalAmount = pricing.RoundAmount(stats.TotalFinalAmount)
	return Statistics{Cycle: cycle, OrderStats: stats}, nil
}

// ListCycles returns the most recent cycles, newest first, capped by the
// max_visible_cycles setting.
func (s *Service) ListCycles(ctx context.Context) ([]models.OrderingCycle, error) {
	limit, err := s.settings.MaxVisibleCycles(ctx, s.maxVisible)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read max_visible_cycles")
	}
	cycles, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cycles")
	}
	return cycles, nil
}

// ReconcileActiveTotal recomputes the active cycle's running total from its
// non-cancelled orders.
func (s *Service) ReconcileActiveTotal(ctx context.Context) (ReconcileResult, error) {
	var result ReconcileResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		active, err := repo.FindActive(ctx)
		if err != nil || active == nil {
			return err
		}
		sum, err := repo.SumLiveOrderTotals(ctx, active.ID)
		if err != nil {
			return err
		}
		current := pricing.RoundAmount(sum)
		id := active.ID
		result = ReconcileResult{CycleID: &id, Previous: active.TotalAmount, Current: current}
		if current == active.TotalAmount {
			return nil
		}
		result.Changed = true
		return repo.Update(ctx, active.ID, map[string]any{"total_amount": current})
	})
	if err != nil {
		return ReconcileResult{}, s.txFailure(ctx, "reconcile cycle total", err)
	}
	if result.Changed {
		s.logg.Warn(s.logg.WithFields(s.logg.WithCycleID(ctx, *result.CycleID), map[string]any{
			"previous": result.Previous,
			"current":  result.Current,
		}), "active cycle total drifted; corrected")
	}
	return result, nil
}

// ActiveCycle returns the open cycle or nil.
func (s *Service) ActiveCycle(ctx context.Context) (*models.OrderingCycle, error) {
	return s.repo.FindActive(ctx)
}

// LatestEndedCycle returns the most recently ended, unconfirmed cycle or nil.
func (s *Service) LatestEndedCycle(ctx context.Context) (*models.OrderingCycle, error) {
	return s.repo.FindLatestEnded(ctx)
}

// CyclesByID loads the given cycles keyed by id; unknown ids are absent.
func (s *Service) CyclesByID(ctx context.Context, ids []int64) (map[int64]models.OrderingCycle, error) {
	rows, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]models.OrderingCycle, len(rows))
	for _, c := range rows {
		out[c.ID] = c
	}
	return out, nil
}

// FindOrderCycle classifies one timestamp against every cycle.
func (s *Service) FindOrderCycle(ctx context.Context, createdAt time.Time) (*models.OrderingCycle, error) {
	cycles, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return Classify(cycles, createdAt.UTC()), nil
}

// FindOrderCyclesBatch loads the cycle set once and classifies every timestamp.
func (s *Service) FindOrderCyclesBatch(ctx context.Context, times []time.Time) (map[time.Time]models.OrderingCycle, error) {
	if len(times) == 0 {
		return map[time.Time]models.OrderingCycle{}, nil
	}
	cycles, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return ClassifyBatch(cycles, times), nil
}

// adoptOrphans attaches orders with no stored cycle whose creation time falls
// inside cycle and returns the cycle total. With addToTotal their live totals
// are added to the stored running total; otherwise total_amount is untouched.
func (s *Service) adoptOrphans(ctx context.Context, repo Repository, cycle *models.OrderingCycle, addToTotal bool) (float64, error) {
	orphans, err := repo.ListOrphanOrders(ctx)
	if err != nil || len(orphans) == 0 {
		return cycle.TotalAmount, err
	}
	all, err := repo.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(orphans))
	total := cycle.TotalAmount
	for _, order := range orphans {
		owner := Classify(all, order.CreatedAt.UTC())
		if owner == nil || owner.ID != cycle.ID {
			continue
		}
		ids = append(ids, order.ID)
		if addToTotal && order.Status != enums.OrderStatusCancelled {
			total = pricing.Sum(total, order.TotalAmount)
		}
	}
	if len(ids) == 0 {
		return total, nil
	}

	if err := repo.AssignOrders(ctx, cycle.ID, ids); err != nil {
		return 0, err
	}
	if total != cycle.TotalAmount {
		if err := repo.Update(ctx, cycle.ID, map[string]any{"total_amount": total}); err != nil {
			return 0, err
		}
	}
	s.logg.Warn(s.logg.WithField(s.logg.WithCycleID(ctx, cycle.ID), "adopted", len(ids)), "attached orders without a stored cycle")
	return total, nil
}

func (s *Service) reprice(ctx context.Context, repo Repository, cycleID int64, rate float64) (int, error) {
	pending, err := repo.ListPendingOrders(ctx, cycleID)
	if err != nil {
		return 0, err
	}
	for _, order := range pending {
		discount, final := pricing.ApplyDiscount(order.TotalAmount, rate)
		if err := repo.UpdateOrderAmounts(ctx, order.ID, discount, final); err != nil {
			return 0, fmt.Errorf("reprice order %s: %w", order.ID, err)
		}
	}
	return len(pending), nil
}

// txFailure passes typed errors through and maps everything else to a
// retryable transaction failure.
func (s *Service) txFailure(ctx context.Context, op string, err error) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.logg.Error(ctx, op+" failed", err)
	msg := op + " failed"
	if db.IsBusy(err) {
		msg = "store busy: " + msg
	}
	return pkgerrors.Wrap(pkgerrors.CodeTransaction, err, msg)
}

func (s *Service) newCycleNumber() string {
	var b strings.Builder
	b.WriteString("CYCLE")
	b.WriteString(strconv.FormatInt(s.now().UnixMilli(), 10))
	b.WriteByte('-')
	for i := 0; i < 4; i++ {
		b.WriteByte(base36[rand.IntN(len(base36))])
	}
	return b.String()
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"
