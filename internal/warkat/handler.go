package warkat

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dhe2en832/erp-next-system-sub000/internal/platform/httpx"
	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
)

// Handler manages warkat endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers warkat routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/warkat", h.listOutstanding)
	r.Get("/warkat/{id}", h.show)
	r.Post("/warkat/{id}/clear", h.clear)
	r.Post("/warkat/{id}/bounce", h.bounce)
}

type clearRequest struct {
	BankAccount   string `json:"bank_account" validate:"required"`
	ClearanceDate string `json:"clearance_date" validate:"required,datetime=2006-01-02"`
}

type bounceRequest struct {
	Reason string `json:"reason" validate:"max=140"`
}

type entryView struct {
	PaymentEntry
	Actions []Action `json:"actions"`
	AgeDays int      `json:"age_days"`
}

func (h *Handler) listOutstanding(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	var directions []Direction
	if raw := r.URL.Query().Get("direction"); raw != "" {
		d, err := ParseDirection(raw)
		if err != nil {
			httpx.RespondError(w, shared.Invalid("direction", err.Error()))
			return
		}
		directions = []Direction{d}
	} else {
		directions = []Direction{DirectionReceive, DirectionPay}
	}

	views := make([]entryView, 0)
	for _, d := range directions {
		entries, err := h.service.ListOutstanding(r.Context(), scope, d)
		if err != nil {
			h.logger.Error("list warkat failed", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		for _, e := range entries {
			views = append(views, entryView{PaymentEntry: e, Actions: e.Actions(), AgeDays: e.AgeDays(scope.Today())})
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": views})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	entry, err := h.service.Get(r.Context(), scope, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entryView{PaymentEntry: entry, Actions: entry.Actions(), AgeDays: entry.AgeDays(scope.Today())})
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := time.Parse(time.DateOnly, req.ClearanceDate)
	if err != nil {
		httpx.RespondError(w, shared.Invalid("clearance_date", "format tanggal harus YYYY-MM-DD"))
		return
	}
	scope := shared.ScopeFromContext(r.Context())
	res, err := h.service.ClearByID(r.Context(), scope, chi.URLParam(r, "id"), ClearCommand{
		BankAccount:   req.BankAccount,
		ClearanceDate: date,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) bounce(w http.ResponseWriter, r *http.Request) {
	var req bounceRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	scope := shared.ScopeFromContext(r.Context())
	res, err := h.service.BounceByID(r.Context(), scope, chi.URLParam(r, "id"), BounceCommand(req))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}
