package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pdv/internal/platform/middleware"
	"pdv/internal/sale"
	"pdv/internal/transport/http/shared"
	dErrors "pdv/pkg/domain-errors"
)

// Handler exposes the persisted-sale API: lookup, session listing,
// cancellation and unknown-outcome recovery.
type Handler struct {
	sales  *sale.Service
	logger *slog.Logger
}

func New(sales *sale.Service, logger *slog.Logger) *Handler {
	return &Handler{sales: sales, logger: logger}
}

// Register registers the sale routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/sales/{saleID}", h.handleFind)
	r.Post("/sales/{saleID}/cancel", h.handleCancel)
	r.Post("/sales/recover", h.handleRecover)
	r.Get("/sessions/{sessionID}/sales", h.handleListBySession)
}

type recoverRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
}

type itemResponse struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Discount  decimal.Decimal `json:"discount"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type paymentResponse struct {
	Method       string          `json:"method"`
	Amount       decimal.Decimal `json:"amount"`
	Installments int             `json:"installments"`
}

type saleResponse struct {
	ID             uuid.UUID         `json:"id"`
	IdempotencyKey string            `json:"idempotency_key"`
	SessionID      uuid.UUID         `json:"session_id"`
	RegisterID     string            `json:"register_id"`
	ClientID       *uuid.UUID        `json:"client_id,omitempty"`
	Items          []itemResponse    `json:"items"`
	Payments       []paymentResponse `json:"payments"`
	Subtotal       decimal.Decimal   `json:"subtotal"`
	DeliveryFee    decimal.Decimal   `json:"delivery_fee"`
	Discount       decimal.Decimal   `json:"discount"`
	Total          decimal.Decimal   `json:"total"`
	Status         string            `json:"status"`
	Operator       string            `json:"operator"`
	CreatedAt      time.Time         `json:"created_at"`
}

func toSaleResponse(s sale.Sale) saleResponse {
	items := make([]itemResponse, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, itemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Discount:  it.Discount,
			Subtotal:  it.Subtotal,
		})
	}
	payments := make([]paymentResponse, 0, len(s.Payments))
	for _, p := range s.Payments {
		payments = append(payments, paymentResponse{
			Method:       p.Method,
			Amount:       p.Amount,
			Installments: p.Installments,
		})
	}
	return saleResponse{
		ID:             s.ID,
		IdempotencyKey: s.IdempotencyKey,
		SessionID:      s.SessionID,
		RegisterID:     s.RegisterID,
		ClientID:       s.ClientID,
		Items:          items,
		Payments:       payments,
		Subtotal:       s.Subtotal,
		DeliveryFee:    s.DeliveryFee,
		Discount:       s.Discount,
		Total:          s.Total,
		Status:         string(s.Status),
		Operator:       s.Operator,
		CreatedAt:      s.CreatedAt,
	}
}

func (h *Handler) handleFind(w http.ResponseWriter, r *http.Request) {
	saleID, err := uuid.Parse(chi.URLParam(r, "saleID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid sale id"))
		return
	}
	record, err := h.sales.Find(r.Context(), saleID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toSaleResponse(record))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	saleID, err := uuid.Parse(chi.URLParam(r, "saleID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid sale id"))
		return
	}
	record, err := h.sales.Cancel(r.Context(), saleID, middleware.GetOperatorID(r.Context()))
	if err != nil {
		h.logger.WarnContext(r.Context(), "sale cancellation rejected",
			"sale_id", saleID,
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toSaleResponse(record))
}

func (h *Handler) handleRecover(w http.ResponseWriter, r *http.Request) {
	var req recoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.IdempotencyKey == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "idempotency_key is required"))
		return
	}
	record, err := h.sales.Recover(r.Context(), req.IdempotencyKey)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toSaleResponse(record))
}

func (h *Handler) handleListBySession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid session id"))
		return
	}
	records, err := h.sales.ListBySession(r.Context(), sessionID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]saleResponse, 0, len(records))
	for _, s := range records {
		out = append(out, toSaleResponse(s))
	}
	shared.WriteJSON(w, http.StatusOK, out)
}
