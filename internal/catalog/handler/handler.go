package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pdv/internal/catalog"
	"pdv/internal/transport/http/shared"
	dErrors "pdv/pkg/domain-errors"
	"pdv/pkg/platform/sentinel"
)

// Handler exposes product and client lookups for the register UI.
type Handler struct {
	store  catalog.Store
	logger *slog.Logger
}

func New(store catalog.Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Register registers the catalog routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/products", h.handleSearchProducts)
	r.Get("/products/{productID}", h.handleGetProduct)
	r.Get("/clients", h.handleListClients)
}

type productResponse struct {
	ID    uuid.UUID       `json:"id"`
	Name  string          `json:"name"`
	Code  string          `json:"code"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

func toProductResponse(p catalog.Product) productResponse {
	return productResponse{ID: p.ID, Name: p.Name, Code: p.Code, Price: p.Price, Stock: p.Stock}
}

func (h *Handler) handleSearchProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid limit"))
			return
		}
		limit = n
	}

	// A barcode scan resolves by exact code first; fall through to search.
	if query != "" {
		if p, err := h.store.FindProductByCode(r.Context(), query); err == nil {
			shared.WriteJSON(w, http.StatusOK, []productResponse{toProductResponse(p)})
			return
		}
	}

	products, err := h.store.SearchProducts(r.Context(), query, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "product search failed", "error", err)
		shared.WriteError(w, err)
		return
	}
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid product id"))
		return
	}
	p, err := h.store.FindProduct(r.Context(), productID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeNotFound, "product not found"))
			return
		}
		h.logger.ErrorContext(r.Context(), "product lookup failed", "error", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toProductResponse(p))
}

type clientResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func (h *Handler) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.store.ListClients(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "client listing failed", "error", err)
		shared.WriteError(w, err)
		return
	}
	out := make([]clientResponse, 0, len(clients))
	for _, c := range clients {
		out = append(out, clientResponse{ID: c.ID, Name: c.Name})
	}
	shared.WriteJSON(w, http.StatusOK, out)
}
