package cheques

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler manages cheque endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers cheque routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/{id}/transition", h.transition)
	r.Get("/{id}/history", h.history)
}

type createChequeRequest struct {
	ChequeNumber    string `json:"cheque_number" validate:"required"`
	DrawerAccountID int64  `json:"drawer_account_id" validate:"required"`
	Amount          string `json:"amount" validate:"required"`
	Currency        string `json:"currency" validate:"required,len=3"`
	Payee           string `json:"payee"`
	DueDate         string `json:"due_date"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "actor not resolved")
		return
	}
	var req createChequeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, err := money.ParsePositive(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid amount")
		return
	}
	input := CreateInput{
		ChequeNumber:    req.ChequeNumber,
		BranchID:        actor.BranchID,
		DrawerAccountID: req.DrawerAccountID,
		Amount:          amount,
		Currency:        req.Currency,
		Payee:           req.Payee,
		ActorID:         actor.ID,
	}
	if req.DueDate != "" {
		due, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "due_date must be YYYY-MM-DD")
			return
		}
		input.DueDate = due
	}

	cheque, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, "create cheque", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toChequeResponse(cheque))
}

type transitionRequest struct {
	To         string `json:"to" validate:"required"`
	EndorsedTo string `json:"endorsed_to"`
	Notes      string `json:"notes"`
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "actor not resolved")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid cheque id")
		return
	}
	var req transitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	cheque, err := h.service.Transition(r.Context(), TransitionInput{
		ChequeID:   id,
		BranchID:   actor.BranchID,
		To:         Status(req.To),
		ActorID:    actor.ID,
		EndorsedTo: req.EndorsedTo,
		Notes:      req.Notes,
	})
	if err != nil {
		h.respondError(w, "transition cheque", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toChequeResponse(cheque))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid cheque id")
		return
	}
	cheque, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get cheque", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toChequeResponse(cheque))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{}
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		filter.BranchID = actor.BranchID
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := Status(v)
		if !status.Valid() {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid status")
			return
		}
		filter.Status = &status
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	cheques, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list cheques", err)
		return
	}
	out := make([]map[string]any, 0, len(cheques))
	for _, c := range cheques {
		out = append(out, toChequeResponse(c))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid cheque id")
		return
	}
	history, err := h.service.History(r.Context(), id)
	if err != nil {
		h.respondError(w, "cheque history", err)
		return
	}
	out := make([]map[string]any, 0, len(history))
	for _, entry := range history {
		out = append(out, map[string]any{
			"from":       string(entry.FromStatus),
			"to":         string(entry.ToStatus),
			"actor_id":   entry.ActorID,
			"notes":      entry.Notes,
			"created_at": entry.CreatedAt,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func toChequeResponse(c Cheque) map[string]any {
	return map[string]any{
		"id":                c.ID,
		"number":            c.Number,
		"cheque_number":     c.ChequeNumber,
		"branch_id":         c.BranchID,
		"drawer_account_id": c.DrawerAccountID,
		"amount":            c.Amount.String(),
		"currency":          c.Currency,
		"status":            string(c.Status),
		"payee":             c.Payee,
		"endorsed_to":       c.EndorsedTo,
		"due_date":          c.DueDate,
		"collected_at":      c.CollectedAt,
		"bounced_at":        c.BouncedAt,
		"is_cancelled":      c.IsCancelled,
	}
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrChequeNotFound), errors.Is(err, ledger.ErrAccountNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, money.ErrNonPositiveAmount),
		errors.Is(err, money.ErrInvalidCurrency):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
