package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/neferdidi/boba-backend/internal/cycles"
	"github.com/neferdidi/boba-backend/pkg/db/models"
	"github.com/neferdidi/boba-backend/pkg/enums"
	pkgerrors "github.com/neferdidi/boba-backend/pkg/errors"
)

type stubCycleService struct {
	openFn    func(ctx context.Context) (cycles.OpenResult, error)
	closeFn   func(ctx context.Context) (cycles.CloseResult, error)
	confirmFn func(ctx context.Context, id int64) (cycles.ConfirmResult, error)
	previewFn func(ctx context.Context) (cycles.PreviewResult, error)
	currentFn func(ctx context.Context) (cycles.CycleDiscount, error)
	statsFn   func(ctx context.Context) (cycles.Statistics, error)
	listFn    func(ctx context.Context) ([]models.OrderingCycle, error)
}

func (s stubCycleService) OpenOrdering(ctx context.Context) (cycles.OpenResult, error) {
	return s.openFn(ctx)
}

func (s stubCycleService) CloseOrdering(ctx context.Context) (cycles.CloseResult, error) {
	return s.closeFn(ctx)
}

func (s stubCycleService) ConfirmCycle(ctx context.Context, id int64) (cycles.ConfirmResult, error) {
	return s.confirmFn(ctx, id)
}

func (s stubCycleService) PreviewOrLockDiscount(ctx context.Context) (cycles.PreviewResult, error) {
	return s.previewFn(ctx)
}

func (s stubCycleService) CurrentCycleDiscount(ctx context.Context) (cycles.CycleDiscount, error) {
	return s.currentFn(ctx)
}

func (s stubCycleService) Statistics(ctx context.Context) (cycles.Statistics, error) {
	return s.statsFn(ctx)
}

func (s stubCycleService) ListCycles(ctx context.Context) ([]models.OrderingCycle, error) {
	return s.listFn(ctx)
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(resp.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, resp.Body.String())
	}
	return env
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestAdminOpenOrdering(t *testing.T) {
	svc := stubCycleService{openFn: func(context.Context) (cycles.OpenResult, error) {
		return cycles.OpenResult{OpenedNewCycle: true, Cycle: &models.OrderingCycle{ID: 3, CycleNumber: "CYCLE1-abcd", Status: enums.CycleStatusActive}}, nil
	}}
	resp := httptest.NewRecorder()
	AdminOpenOrdering(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var env struct {
		Data cycles.OpenResult `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Data.OpenedNewCycle || env.Data.Cycle == nil || env.Data.Cycle.ID != 3 {
		t.Fatalf("unexpected payload %+v", env.Data)
	}
}

func TestAdminCloseOrderingAlreadyClosed(t *testing.T) {
	svc := stubCycleService{closeFn: func(context.Context) (cycles.CloseResult, error) {
		return cycles.CloseResult{}, pkgerrors.StateConflict(cycles.ReasonAlreadyClosed, "ordering is already closed")
	}}
	resp := httptest.NewRecorder()
	AdminCloseOrdering(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", nil))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	env := decodeError(t, resp)
	if env.Error.Code != string(pkgerrors.CodeStateConflict) || env.Error.Details["reason"] != cycles.ReasonAlreadyClosed {
		t.Fatalf("unexpected error %+v", env.Error)
	}
}

func TestAdminConfirmCycle(t *testing.T) {
	var gotID int64
	svc := stubCycleService{confirmFn: func(_ context.Context, id int64) (cycles.ConfirmResult, error) {
		gotID = id
		if id == 404 {
			return cycles.ConfirmResult{}, pkgerrors.New(pkgerrors.CodeNotFound, "cycle not found")
		}
		return cycles.ConfirmResult{CycleID: id, DiscountRate: 10, OrderCount: 2, CancelledCount: 1, ConfirmedAt: time.Now().UTC()}, nil
	}}
	handler := AdminConfirmCycle(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, withURLParam(httptest.NewRequest(http.MethodPost, "/", nil), "cycleId", "7"))
	if resp.Code != http.StatusOK || gotID != 7 {
		t.Fatalf("expected 200 for cycle 7, got %d (id %d)", resp.Code, gotID)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, withURLParam(httptest.NewRequest(http.MethodPost, "/", nil), "cycleId", "404"))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, withURLParam(httptest.NewRequest(http.MethodPost, "/", nil), "cycleId", "abc"))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id got %d", resp.Code)
	}
}

func TestPublicCalculateDiscountNoCycle(t *testing.T) {
	svc := stubCycleService{previewFn: func(context.Context) (cycles.PreviewResult, error) {
		return cycles.PreviewResult{DiscountApplied: false}, nil
	}}
	resp := httptest.NewRecorder()
	PublicCalculateDiscount(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var env struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data["discount_applied"] != false {
		t.Fatalf("unexpected payload %v", env.Data)
	}
	if _, ok := env.Data["discount_rate"]; ok {
		t.Fatalf("discount_rate should be omitted when nothing was applied")
	}
}

func TestPublicCycleDiscountAndStatistics(t *testing.T) {
	svc := stubCycleService{
		currentFn: func(context.Context) (cycles.CycleDiscount, error) {
			return cycles.CycleDiscount{}, nil
		},
		statsFn: func(context.Context) (cycles.Statistics, error) {
			return cycles.Statistics{OrderStats: cycles.OrderStats{TotalOrders: 4, TotalAmount: 100.3}}, nil
		},
		listFn: func(context.Context) ([]models.OrderingCycle, error) {
			return []models.OrderingCycle{{ID: 2}, {ID: 1}}, nil
		},
	}

	resp := httptest.NewRecorder()
	PublicCycleDiscount(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	AdminOrderStatistics(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	var stats struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Data["total_orders"] != float64(4) || stats.Data["total_amount"] != 100.3 {
		t.Fatalf("expected flattened order stats, got %v", stats.Data)
	}

	resp = httptest.NewRecorder()
	AdminListCycles(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	var list struct {
		Data struct {
			Cycles []models.OrderingCycle `json:"cycles"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Data.Cycles) != 2 {
		t.Fatalf("expected two cycles, got %d", len(list.Data.Cycles))
	}
}
