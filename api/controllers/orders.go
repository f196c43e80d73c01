package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/neferdidi/boba-backend/api/responses"
	"github.com/neferdidi/boba-backend/api/validators"
	"github.com/neferdidi/boba-backend/internal/orders"
	"github.com/neferdidi/boba-backend/pkg/db/models"
	"github.com/neferdidi/boba-backend/pkg/enums"
	pkgerrors "github.com/neferdidi/boba-backend/pkg/errors"
	"github.com/neferdidi/boba-backend/pkg/logger"
	"github.com/neferdidi/boba-backend/pkg/pagination"
)

// OrderService is the order surface the controllers need.
type OrderService interface {
	PlaceOrder(ctx context.Context, input orders.PlaceOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, id string) (*orders.OrderView, error)
	ListOrders(ctx context.Context, params orders.ListParams) (*orders.OrderList, error)
	UpdateStatus(ctx context.Context, id string, status string) (*models.Order, error)
}

type updateStatusBody struct {
	Status string `json:"status" validate:"required,oneof=pending paid completed cancelled"`
}

// UserPlaceOrder prices and stores a customer order in the active cycle.
func UserPlaceOrder(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body orders.PlaceOrderInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body.CustomerName = validators.SanitizeString(body.CustomerName, 64)
		body.CustomerPhone = validators.SanitizePhone(body.CustomerPhone)
		body.Notes = validators.SanitizeString(body.Notes, 500)

		order, err := svc.PlaceOrder(r.Context(), body)
		if err != nil {
			if rejection, ok := orders.IsRejection(err); ok {
				responses.WriteError(r.Context(), logg, w, rejection.APIError())
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// UserOrdersByPhone lists the orders placed with a phone number.
func UserOrdersByPhone(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		phone := validators.SanitizePhone(r.URL.Query().Get("phone"))
		if phone == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "phone is required").WithDetails(map[string]any{"field": "phone"}))
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListOrders(r.Context(), orders.ListParams{
			Filters:    orders.ListFilters{CustomerPhone: phone},
			Pagination: params,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// UserOrderDetail returns one order when the phone number matches.
func UserOrderDetail(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		phone := validators.SanitizePhone(r.URL.Query().Get("phone"))
		view, err := svc.GetOrder(r.Context(), strings.TrimSpace(chi.URLParam(r, "orderId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if phone == "" || view.CustomerPhone == nil || *view.CustomerPhone != phone {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// AdminListOrders pages through all orders with optional status and cycle filters.
func AdminListOrders(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var filters orders.ListFilters
		if filters.Status, err = validators.ParseQueryEnum(r, "status", enums.ParseOrderStatus); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filters.CycleID, err = validators.ParseQueryID(r, "cycle_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters.CustomerPhone = validators.SanitizePhone(r.URL.Query().Get("phone"))

		list, err := svc.ListOrders(r.Context(), orders.ListParams{Filters: filters, Pagination: params})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func AdminOrderDetail(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.GetOrder(r.Context(), strings.TrimSpace(chi.URLParam(r, "orderId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func AdminUpdateOrderStatus(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body updateStatusBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.UpdateStatus(r.Context(), strings.TrimSpace(chi.URLParam(r, "orderId")), body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}
