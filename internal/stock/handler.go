package stock

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dhe2en832/erp-next-system-sub000/internal/platform/httpx"
	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
)

// Handler exposes availability lookups.
type Handler struct {
	logger   *slog.Logger
	resolver *Resolver
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, resolver *Resolver) *Handler {
	return &Handler{logger: logger, resolver: resolver}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stock/{item}", h.getAvailability)
}

// getAvailability answers for one warehouse, or the best of a comma separated candidate list.
func (h *Handler) getAvailability(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	if err := scope.Validate(); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item := chi.URLParam(r, "item")
	warehouse := r.URL.Query().Get("warehouse")

	var annotation Annotation
	if warehouse != "" && !strings.Contains(warehouse, ",") {
		annotation = h.resolver.Resolve(r.Context(), scope, item, warehouse)
	} else {
		var candidates []string
		for _, c := range strings.Split(warehouse, ",") {
			if c = strings.TrimSpace(c); c != "" {
				candidates = append(candidates, c)
			}
		}
		annotation = h.resolver.ResolveBest(r.Context(), scope, item, candidates)
	}
	httpx.JSON(w, http.StatusOK, annotation)
}
