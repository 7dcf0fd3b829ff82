package chain

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/dhe2en832/erp-next-system-sub000/internal/documents"
	"github.com/dhe2en832/erp-next-system-sub000/internal/platform/httpx"
	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
)

// Handler exposes chain and document endpoints.
type Handler struct {
	logger   *slog.Logger
	resolver *Resolver
	service  *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, resolver *Resolver, service *Service) *Handler {
	return &Handler{logger: logger, resolver: resolver, service: service}
}

// MountRoutes registers chain and document routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/chain", func(r chi.Router) {
		r.Get("/candidates", h.listCandidates)
		r.Post("/drafts", h.materialize)
		r.Put("/drafts/{key}", h.saveDraft)
		r.Post("/drafts/{key}/submit", h.submit)
	})
	r.Route("/documents/{kind}/{id}", func(r chi.Router) {
		r.Get("/", h.show)
		r.Patch("/", h.patch)
		r.Post("/cancel", h.cancel)
	})
}

type materializeRequest struct {
	Source   string `json:"source" validate:"required"`
	Target   string `json:"target" validate:"required"`
	SourceID string `json:"source_id" validate:"required"`
}

type lineRequest struct {
	ID           string                 `json:"id"`
	ItemCode     string                 `json:"item_code" validate:"required"`
	ItemName     string                 `json:"item_name"`
	Quantity     decimal.Decimal        `json:"quantity"`
	Rate         decimal.Decimal        `json:"rate"`
	Warehouse    string                 `json:"warehouse"`
	UOM          string                 `json:"uom"`
	QtyPrecision int32                  `json:"qty_precision" validate:"gte=0,lte=9"`
	Upstream     *documents.UpstreamRef `json:"upstream"`
	ReturnReason string                 `json:"return_reason"`
	ReturnNotes  string                 `json:"return_notes" validate:"max=280"`
}

type saveRequest struct {
	Kind        string        `json:"kind" validate:"required"`
	Party       string        `json:"party" validate:"required"`
	PostingDate string        `json:"posting_date" validate:"omitempty,datetime=2006-01-02"`
	Currency    string        `json:"currency" validate:"omitempty,len=3"`
	Notes       string        `json:"notes"`
	Remarks     string        `json:"remarks"`
	Lines       []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type submitRequest struct {
	Kind string `json:"kind" validate:"required"`
}

type patchRequest struct {
	Party       *string `json:"party" validate:"omitempty,min=1"`
	PostingDate *string `json:"posting_date" validate:"omitempty,datetime=2006-01-02"`
	Currency    *string `json:"currency" validate:"omitempty,len=3"`
	Notes       *string `json:"notes"`
	Remarks     *string `json:"remarks"`
}

func (req saveRequest) document() (documents.TradeDocument, error) {
	kind, err := documents.ParseKind(req.Kind)
	if err != nil {
		return documents.TradeDocument{}, shared.Invalid("kind", err.Error())
	}
	doc := documents.TradeDocument{
		Kind:     kind,
		Party:    req.Party,
		Currency: req.Currency,
		Notes:    req.Notes,
		Remarks:  req.Remarks,
	}
	if req.PostingDate != "" {
		date, err := time.Parse(time.DateOnly, req.PostingDate)
		if err != nil {
			return documents.TradeDocument{}, shared.Invalid("posting_date", "format tanggal harus YYYY-MM-DD")
		}
		doc.PostingDate = date
	}
	for _, l := range req.Lines {
		doc.Lines = append(doc.Lines, documents.LineItem{
			ID:           l.ID,
			ItemCode:     l.ItemCode,
			ItemName:     l.ItemName,
			Quantity:     l.Quantity,
			Rate:         l.Rate,
			Warehouse:    l.Warehouse,
			UOM:          l.UOM,
			QtyPrecision: l.QtyPrecision,
			Upstream:     l.Upstream,
			ReturnReason: documents.ReturnReason(l.ReturnReason),
			ReturnNotes:  l.ReturnNotes,
		})
	}
	return doc, nil
}

func (req patchRequest) headerPatch() (documents.HeaderPatch, error) {
	patch := documents.HeaderPatch{
		Party:    req.Party,
		Currency: req.Currency,
		Notes:    req.Notes,
		Remarks:  req.Remarks,
	}
	if req.PostingDate != nil {
		date, err := time.Parse(time.DateOnly, *req.PostingDate)
		if err != nil {
			return documents.HeaderPatch{}, shared.Invalid("posting_date", "format tanggal harus YYYY-MM-DD")
		}
		patch.PostingDate = &date
	}
	return patch, nil
}

func (h *Handler) listCandidates(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	q := r.URL.Query()
	source, err := documents.ParseKind(q.Get("source"))
	if err != nil {
		httpx.RespondError(w, shared.Invalid("source", err.Error()))
		return
	}
	target, err := documents.ParseKind(q.Get("target"))
	if err != nil {
		httpx.RespondError(w, shared.Invalid("target", err.Error()))
		return
	}
	pager, err := h.resolver.Candidates(scope, source, target, q.Get("party"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pager.Seek(httpx.QueryInt(r, "offset", 0), httpx.QueryInt(r, "limit", 0))
	candidates, err := pager.Next(r.Context())
	if err != nil {
		h.logger.Error("list candidates failed", slog.String("source", string(source)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":        candidates,
		"next_offset": pager.Offset(),
		"done":        pager.Done(),
		"pagination":  shared.NewPagination(httpx.QueryInt(r, "offset", 0), httpx.QueryInt(r, "limit", 0), pager.Total()),
	})
}

func (h *Handler) materialize(w http.ResponseWriter, r *http.Request) {
	var req materializeRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	source, err := documents.ParseKind(req.Source)
	if err != nil {
		httpx.RespondError(w, shared.Invalid("source", err.Error()))
		return
	}
	target, err := documents.ParseKind(req.Target)
	if err != nil {
		httpx.RespondError(w, shared.Invalid("target", err.Error()))
		return
	}
	pair, err := PairFor(source, target)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	draft, err := h.resolver.Materialize(r.Context(), shared.ScopeFromContext(r.Context()), pair, req.SourceID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, draft)
}

func (h *Handler) saveDraft(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	doc, err := req.document()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	saved, err := h.service.SaveDraft(r.Context(), shared.ScopeFromContext(r.Context()), chi.URLParam(r, "key"), doc)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, saved)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	kind, err := documents.ParseKind(req.Kind)
	if err != nil {
		httpx.RespondError(w, shared.Invalid("kind", err.Error()))
		return
	}
	doc, err := h.service.Submit(r.Context(), shared.ScopeFromContext(r.Context()), kind, chi.URLParam(r, "key"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetDocument(r.Context(), shared.ScopeFromContext(r.Context()), documents.Kind(chi.URLParam(r, "kind")), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) patch(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	patch, err := req.headerPatch()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	doc, err := h.service.PatchHeader(r.Context(), shared.ScopeFromContext(r.Context()), documents.Kind(chi.URLParam(r, "kind")), chi.URLParam(r, "id"), patch)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Cancel(r.Context(), shared.ScopeFromContext(r.Context()), documents.Kind(chi.URLParam(r, "kind")), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}
