package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler manages ledger endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/entries", h.recordEntry)
	r.Post("/entries/{id}/reverse", h.reverseEntry)
	r.Get("/entries", h.listEntries)
	r.Get("/entries/{id}", h.getEntry)
	r.Get("/accounts/{id}", h.getAccount)
}

type recordEntryRequest struct {
	AccountID    int64  `json:"account_id" validate:"required"`
	Type         string `json:"type" validate:"required"`
	Debit        string `json:"debit"`
	Credit       string `json:"credit"`
	Currency     string `json:"currency" validate:"required,len=3"`
	ExchangeRate string `json:"exchange_rate"`
	CostCenter   string `json:"cost_center"`
	Description  string `json:"description"`
	ReferenceID  *int64 `json:"reference_id"`
	RefType      string `json:"reference_type"`
}

type entryResponse struct {
	ID           int64     `json:"id"`
	Number       string    `json:"number"`
	AccountID    int64     `json:"account_id"`
	BranchID     int64     `json:"branch_id"`
	Type         string    `json:"type"`
	Debit        string    `json:"debit"`
	Credit       string    `json:"credit"`
	Currency     string    `json:"currency"`
	ExchangeRate string    `json:"exchange_rate"`
	Description  string    `json:"description,omitempty"`
	ReferenceID  *int64    `json:"reference_id,omitempty"`
	RefType      string    `json:"reference_type,omitempty"`
	IsCancelled  bool      `json:"is_cancelled"`
	CreatedAt    time.Time `json:"created_at"`
}

func toEntryResponse(e Entry) entryResponse {
	return entryResponse{
		ID:           e.ID,
		Number:       e.Number,
		AccountID:    e.AccountID,
		BranchID:     e.BranchID,
		Type:         string(e.Type),
		Debit:        e.Debit.String(),
		Credit:       e.Credit.String(),
		Currency:     e.Currency,
		ExchangeRate: e.ExchangeRate.String(),
		Description:  e.Description,
		ReferenceID:  e.ReferenceID,
		RefType:      e.ReferenceType,
		IsCancelled:  e.IsCancelled,
		CreatedAt:    e.CreatedAt,
	}
}

func (h *Handler) recordEntry(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "actor not resolved")
		return
	}

	var req recordEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	debit, err := parseAmountField(req.Debit)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid debit amount")
		return
	}
	credit, err := parseAmountField(req.Credit)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid credit amount")
		return
	}
	input := RecordInput{
		AccountID:     req.AccountID,
		BranchID:      actor.BranchID,
		Type:          EntryType(req.Type),
		Debit:         debit,
		Credit:        credit,
		Currency:      req.Currency,
		CostCenter:    req.CostCenter,
		Description:   req.Description,
		ReferenceID:   req.ReferenceID,
		ReferenceType: req.RefType,
		ActorID:       actor.ID,
	}
	if req.ExchangeRate != "" {
		rate, err := money.ParsePositive(req.ExchangeRate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid exchange rate")
			return
		}
		input.ExchangeRate = rate
	}

	entry, err := h.service.Record(r.Context(), input)
	if err != nil {
		h.respondError(w, r, "record ledger entry", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

// parseAmountField treats an omitted amount as zero. Exactly-one-side
// validation happens in RecordInput.Validate.
func parseAmountField(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	return money.ParseNonNegative(value)
}

type reverseEntryRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) reverseEntry(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "actor not resolved")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return
	}

	var req reverseEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}

	reversal, err := h.service.Reverse(r.Context(), ReverseInput{
		EntryID: id,
		ActorID: actor.ID,
		Reason:  req.Reason,
	})
	if err != nil {
		h.respondError(w, r, "reverse ledger entry", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(reversal))
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{}
	q := r.URL.Query()
	if v := q.Get("account_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account_id")
			return
		}
		filter.AccountID = &id
	}
	if v := q.Get("type"); v != "" {
		t := EntryType(v)
		if !t.Valid() {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry type")
			return
		}
		filter.Type = &t
	}
	if v := q.Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		filter.BranchID = &actor.BranchID
	}

	entries, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, "list ledger entries", err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return
	}
	entry, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "get ledger entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account id")
		return
	}
	account, err := h.service.GetAccount(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "get account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"id":              account.ID,
		"code":            account.Code,
		"name":            account.Name,
		"branch_id":       account.BranchID,
		"currency":        account.Currency,
		"current_balance": account.CurrentBalance.String(),
	})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrEntryNotFound), errors.Is(err, ErrAccountNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadyReversed):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInvalidEntryType), errors.Is(err, ErrUnbalancedAmounts),
		errors.Is(err, money.ErrInvalidCurrency), errors.Is(err, money.ErrNegativeAmount),
		errors.Is(err, shared.ErrBranchMismatch):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
