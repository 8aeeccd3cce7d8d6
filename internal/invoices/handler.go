package invoices

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler manages invoice endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/{id}/post", h.post)
	r.Post("/{id}/cancel", h.cancel)
}

type lineRequest struct {
	VariantID   int64  `json:"variant_id"`
	WarehouseID int64  `json:"warehouse_id"`
	Description string `json:"description"`
	Quantity    string `json:"quantity" validate:"required"`
	UnitPrice   string `json:"unit_price" validate:"required"`
}

type createInvoiceRequest struct {
	CustomerAccountID int64         `json:"customer_account_id" validate:"required"`
	Currency          string        `json:"currency" validate:"required,len=3"`
	Lines             []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "actor not resolved")
		return
	}
	var req createInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	lines := make([]LineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		quantity, err := money.ParsePositive(l.Quantity)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid line quantity")
			return
		}
		unitPrice, err := money.ParseNonNegative(l.UnitPrice)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid line unit price")
			return
		}
		lines = append(lines, LineInput{
			VariantID:   l.VariantID,
			WarehouseID: l.WarehouseID,
			Description: l.Description,
			Quantity:    quantity,
			UnitPrice:   unitPrice,
		})
	}

	invoice, err := h.service.Create(r.Context(), CreateInput{
		BranchID:          actor.BranchID,
		CustomerAccountID: req.CustomerAccountID,
		Currency:          req.Currency,
		Lines:             lines,
		ActorID:           actor.ID,
	})
	if err != nil {
		h.respondError(w, "create invoice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toInvoiceResponse(invoice))
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "actor not resolved")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	invoice, err := h.service.Post(r.Context(), id, actor.BranchID, actor.ID)
	if err != nil {
		h.respondError(w, "post invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(invoice))
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "actor not resolved")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	var req cancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	invoice, err := h.service.Cancel(r.Context(), id, actor.BranchID, actor.ID, req.Reason)
	if err != nil {
		h.respondError(w, "cancel invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(invoice))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	invoice, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get invoice", err)
		return
	}
	lines, err := h.service.GetLines(r.Context(), id)
	if err != nil {
		h.respondError(w, "get invoice lines", err)
		return
	}
	resp := toInvoiceResponse(invoice)
	lineOut := make([]map[string]any, 0, len(lines))
	for _, l := range lines {
		lineOut = append(lineOut, map[string]any{
			"variant_id":   l.VariantID,
			"warehouse_id": l.WarehouseID,
			"description":  l.Description,
			"quantity":     l.Quantity.String(),
			"unit_price":   l.UnitPrice.String(),
			"line_total":   l.LineTotal.String(),
		})
	}
	resp["lines"] = lineOut
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{}
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		filter.BranchID = actor.BranchID
	}
	q := r.URL.Query()
	if v := q.Get("customer_account_id"); v != "" {
		filter.CustomerAccountID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := q.Get("status"); v != "" {
		status := Status(v)
		filter.Status = &status
	}
	if v := q.Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	invoices, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list invoices", err)
		return
	}
	out := make([]map[string]any, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, toInvoiceResponse(inv))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func toInvoiceResponse(inv Invoice) map[string]any {
	return map[string]any{
		"id":                  inv.ID,
		"number":              inv.Number,
		"branch_id":           inv.BranchID,
		"customer_account_id": inv.CustomerAccountID,
		"currency":            inv.Currency,
		"status":              string(inv.Status),
		"grand_total":         inv.GrandTotal.String(),
		"total_cost":          inv.TotalCost.String(),
		"created_at":          inv.CreatedAt,
	}
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInvoiceNotFound), errors.Is(err, ledger.ErrAccountNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNotDraft), errors.Is(err, ErrAlreadyCancelled),
		errors.Is(err, inventory.ErrInsufficientLots), errors.Is(err, inventory.ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrNoLines), errors.Is(err, money.ErrInvalidCurrency):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
