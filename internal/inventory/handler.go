package inventory

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler manages inventory endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/receipts", h.receive)
	r.Post("/allocations", h.allocate)
	r.Post("/releases", h.release)
	r.Post("/fulfillments", h.fulfill)
	r.Get("/stock", h.getStock)
	r.Get("/lots", h.listLots)
}

type receiveRequest struct {
	VariantID   int64  `json:"variant_id" validate:"required"`
	WarehouseID int64  `json:"warehouse_id" validate:"required"`
	BatchNumber string `json:"batch_number"`
	Quantity    string `json:"quantity" validate:"required"`
	UnitCost    string `json:"unit_cost" validate:"required"`
	ReceivedAt  string `json:"received_at"`
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "actor not resolved")
		return
	}
	var req receiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	quantity, err := money.ParsePositive(req.Quantity)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid quantity")
		return
	}
	unitCost, err := money.ParseNonNegative(req.UnitCost)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid unit cost")
		return
	}
	input := ReceiveInput{
		VariantID:   req.VariantID,
		WarehouseID: req.WarehouseID,
		BranchID:    actor.BranchID,
		BatchNumber: req.BatchNumber,
		Quantity:    quantity,
		UnitCost:    unitCost,
		ActorID:     actor.ID,
	}
	if req.ReceivedAt != "" {
		at, err := time.Parse(time.RFC3339, req.ReceivedAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "received_at must be RFC3339")
			return
		}
		input.ReceivedAt = at
	}

	lot, err := h.service.Receive(r.Context(), input)
	if err != nil {
		h.respondError(w, "receive lot", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toLotResponse(lot))
}

type reservationRequest struct {
	VariantID   int64  `json:"variant_id" validate:"required"`
	WarehouseID int64  `json:"warehouse_id" validate:"required"`
	Quantity    string `json:"quantity" validate:"required"`
}

func (h *Handler) allocate(w http.ResponseWriter, r *http.Request) {
	h.reserve(w, r, h.service.Allocate)
}

func (h *Handler) release(w http.ResponseWriter, r *http.Request) {
	h.reserve(w, r, h.service.Release)
}

func (h *Handler) reserve(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, in AllocateInput) (Stock, error)) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "actor not resolved")
		return
	}
	var req reservationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	quantity, err := money.ParsePositive(req.Quantity)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid quantity")
		return
	}

	stock, err := op(r.Context(), AllocateInput{
		VariantID:   req.VariantID,
		WarehouseID: req.WarehouseID,
		Quantity:    quantity,
		ActorID:     actor.ID,
	})
	if err != nil {
		h.respondError(w, "reserve stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toStockResponse(stock))
}

type fulfillRequest struct {
	VariantID   int64  `json:"variant_id" validate:"required"`
	WarehouseID int64  `json:"warehouse_id" validate:"required"`
	Quantity    string `json:"quantity" validate:"required"`
	ReferenceID *int64 `json:"reference_id"`
	RefType     string `json:"reference_type"`
}

func (h *Handler) fulfill(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "actor not resolved")
		return
	}
	var req fulfillRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	quantity, err := money.ParsePositive(req.Quantity)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid quantity")
		return
	}

	result, err := h.service.FulfillFIFO(r.Context(), FulfillInput{
		VariantID:     req.VariantID,
		WarehouseID:   req.WarehouseID,
		BranchID:      actor.BranchID,
		Quantity:      quantity,
		ReferenceID:   req.ReferenceID,
		ReferenceType: req.RefType,
		ActorID:       actor.ID,
	})
	if err != nil {
		h.respondError(w, "fulfill stock", err)
		return
	}

	lots := make([]map[string]any, 0, len(result.Lots))
	for _, c := range result.Lots {
		lots = append(lots, map[string]any{
			"lot_id":    c.LotID,
			"quantity":  c.Quantity.String(),
			"unit_cost": c.UnitCost.String(),
			"line_cost": c.LineCost.String(),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"total_cost":    result.TotalCost.String(),
		"lots_consumed": lots,
	})
}

func (h *Handler) getStock(w http.ResponseWriter, r *http.Request) {
	variantID, err := strconv.ParseInt(r.URL.Query().Get("variant_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid variant_id")
		return
	}
	warehouseID, err := strconv.ParseInt(r.URL.Query().Get("warehouse_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid warehouse_id")
		return
	}
	stock, err := h.service.GetStock(r.Context(), variantID, warehouseID)
	if err != nil {
		h.respondError(w, "get stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toStockResponse(stock))
}

func (h *Handler) listLots(w http.ResponseWriter, r *http.Request) {
	filter := LotFilter{OnlyOpen: r.URL.Query().Get("only_open") == "true"}
	if v := r.URL.Query().Get("variant_id"); v != "" {
		filter.VariantID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := r.URL.Query().Get("warehouse_id"); v != "" {
		filter.WarehouseID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	lots, err := h.service.ListLots(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list lots", err)
		return
	}
	out := make([]map[string]any, 0, len(lots))
	for _, l := range lots {
		out = append(out, toLotResponse(l))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func toLotResponse(l Lot) map[string]any {
	return map[string]any{
		"id":           l.ID,
		"variant_id":   l.VariantID,
		"warehouse_id": l.WarehouseID,
		"branch_id":    l.BranchID,
		"batch_number": l.BatchNumber,
		"quantity":     l.Quantity.String(),
		"remaining":    l.Remaining.String(),
		"unit_cost":    l.UnitCost.String(),
		"received_at":  l.ReceivedAt,
	}
}

func toStockResponse(s Stock) map[string]any {
	return map[string]any{
		"variant_id":   s.VariantID,
		"warehouse_id": s.WarehouseID,
		"quantity":     s.Quantity.String(),
		"reserved":     s.Reserved.String(),
		"available":    s.Available().String(),
	}
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrStockNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrInsufficientLots):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidUnitCost):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
