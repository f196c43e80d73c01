package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/neferdidi/boba-backend/api/responses"
	"github.com/neferdidi/boba-backend/api/validators"
	"github.com/neferdidi/boba-backend/internal/cycles"
	"github.com/neferdidi/boba-backend/pkg/db/models"
	"github.com/neferdidi/boba-backend/pkg/logger"
)

// CycleService is the lifecycle surface the ordering controllers need.
type CycleService interface {
	OpenOrdering(ctx context.Context) (cycles.OpenResult, error)
	CloseOrdering(ctx context.Context) (cycles.CloseResult, error)
	ConfirmCycle(ctx context.Context, cycleID int64) (cycles.ConfirmResult, error)
	PreviewOrLockDiscount(ctx context.Context) (cycles.PreviewResult, error)
	CurrentCycleDiscount(ctx context.Context) (cycles.CycleDiscount, error)
	Statistics(ctx context.Context) (cycles.Statistics, error)
	ListCycles(ctx context.Context) ([]models.OrderingCycle, error)
}

// AdminOpenOrdering opens ordering, starting a cycle if none is active.
func AdminOpenOrdering(svc CycleService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.OpenOrdering(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

// AdminCloseOrdering closes ordering and fixes the active cycle's discount.
func AdminCloseOrdering(svc CycleService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.CloseOrdering(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

func AdminListCycles(svc CycleService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListCycles(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"cycles": list})
	}
}

// AdminConfirmCycle confirms an ended cycle, cancelling its unpaid orders.
func AdminConfirmCycle(svc CycleService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cycleID, err := validators.ParsePathID(chi.URLParam(r, "cycleId"), "cycle id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.ConfirmCycle(r.Context(), cycleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

func AdminOrderStatistics(svc CycleService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Statistics(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

// PublicCalculateDiscount re-applies the latest closed cycle's discount.
func PublicCalculateDiscount(svc CycleService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.PreviewOrLockDiscount(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

func PublicCycleDiscount(svc CycleService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.CurrentCycleDiscount(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}
