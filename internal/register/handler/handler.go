package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pdv/internal/cart"
	"pdv/internal/catalog"
	"pdv/internal/payment"
	"pdv/internal/platform/middleware"
	"pdv/internal/register"
	"pdv/internal/sale"
	"pdv/internal/transport/http/shared"
	dErrors "pdv/pkg/domain-errors"
	"pdv/pkg/platform/sentinel"
)

// Handler exposes the register working-state API: cart mutations, payment
// collection and checkout. All state access goes through the registry so
// each register's cart and payment set stay serialized.
type Handler struct {
	registry *register.Registry
	catalog  catalog.Store
	sales    *sale.Service
	logger   *slog.Logger
}

func New(registry *register.Registry, catalogStore catalog.Store, sales *sale.Service, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, catalog: catalogStore, sales: sales, logger: logger}
}

// Register registers the cart, payment and checkout routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/registers/{registerID}/cart", h.handleViewCart)
	r.Delete("/registers/{registerID}/cart", h.handleClearCart)
	r.Post("/registers/{registerID}/cart/items", h.handleAddItem)
	r.Put("/registers/{registerID}/cart/items/{productID}", h.handleUpdateItem)
	r.Delete("/registers/{registerID}/cart/items/{productID}", h.handleRemoveItem)
	r.Put("/registers/{registerID}/cart/discount", h.handleSetDiscount)
	r.Put("/registers/{registerID}/cart/delivery-fee", h.handleSetDeliveryFee)
	r.Put("/registers/{registerID}/cart/client", h.handleSetClient)

	r.Get("/registers/{registerID}/payment", h.handleViewPayment)
	r.Post("/registers/{registerID}/payment", h.handleOpenPayment)
	r.Post("/registers/{registerID}/payment/tenders", h.handleAddTender)
	r.Delete("/registers/{registerID}/payment/tenders/{index}", h.handleRemoveTender)

	r.Post("/registers/{registerID}/checkout", h.handleCheckout)
}

type addItemRequest struct {
	ProductID *uuid.UUID `json:"product_id,omitempty"`
	Code      string     `json:"code,omitempty"`
	Quantity  int        `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int              `json:"quantity"`
	Discount *decimal.Decimal `json:"discount,omitempty"`
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type setClientRequest struct {
	ClientID *uuid.UUID `json:"client_id"`
}

type addTenderRequest struct {
	Method       string          `json:"method"`
	Amount       decimal.Decimal `json:"amount"`
	Installments int             `json:"installments,omitempty"`
}

type lineResponse struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Discount  decimal.Decimal `json:"discount"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type cartResponse struct {
	Lines       []lineResponse  `json:"lines"`
	ClientID    *uuid.UUID      `json:"client_id,omitempty"`
	ItemCount   int             `json:"item_count"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
}

func toCartResponse(c *cart.Cart) cartResponse {
	lines := c.Lines()
	out := make([]lineResponse, 0, len(lines))
	for _, l := range lines {
		out = append(out, lineResponse{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			Discount:  l.Discount,
			Subtotal:  l.Subtotal(),
		})
	}
	return cartResponse{
		Lines:       out,
		ClientID:    c.ClientID(),
		ItemCount:   c.ItemCount(),
		Subtotal:    c.Subtotal(),
		DeliveryFee: c.DeliveryFee(),
		Discount:    c.Discount(),
		Total:       c.Total(),
	}
}

type tenderResponse struct {
	Method       string          `json:"method"`
	Amount       decimal.Decimal `json:"amount"`
	Installments int             `json:"installments"`
}

type paymentResponse struct {
	Target    decimal.Decimal  `json:"target"`
	Paid      decimal.Decimal  `json:"paid"`
	Remaining decimal.Decimal  `json:"remaining"`
	Suggested decimal.Decimal  `json:"suggested"`
	CanCommit bool             `json:"can_commit"`
	Tenders   []tenderResponse `json:"tenders"`
}

func toPaymentResponse(p *payment.Set) paymentResponse {
	tenders := p.Tenders()
	out := make([]tenderResponse, 0, len(tenders))
	for _, t := range tenders {
		out = append(out, tenderResponse{
			Method:       string(t.Method),
			Amount:       t.Amount,
			Installments: t.Installments,
		})
	}
	return paymentResponse{
		Target:    p.Target(),
		Paid:      p.Paid(),
		Remaining: p.Remaining(),
		Suggested: p.Suggested(),
		CanCommit: p.CanCommit(),
		Tenders:   out,
	}
}

func (h *Handler) handleViewCart(w http.ResponseWriter, r *http.Request) {
	var resp cartResponse
	err := h.registry.View(r.Context(), chi.URLParam(r, "registerID"), func(c *cart.Cart, _ *payment.Set) error {
		resp = toCartResponse(c)
		return nil
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Reset(r.Context(), chi.URLParam(r, "registerID")); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	registerID := chi.URLParam(r, "registerID")

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	var (
		product catalog.Product
		err     error
	)
	switch {
	case req.ProductID != nil:
		product, err = h.catalog.FindProduct(r.Context(), *req.ProductID)
	case req.Code != "":
		product, err = h.catalog.FindProductByCode(r.Context(), req.Code)
	default:
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "product_id or code is required"))
		return
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeNotFound, "product not found"))
			return
		}
		h.logger.ErrorContext(r.Context(), "product lookup failed", "error", err)
		shared.WriteError(w, err)
		return
	}

	var resp cartResponse
	err = h.registry.Update(r.Context(), registerID, func(c *cart.Cart, _ *payment.Set) error {
		if !c.AddItem(product, req.Quantity) {
			return dErrors.New(dErrors.CodeStockExceeded, "requested quantity exceeds available stock").
				WithDetail("product_id", product.ID.String()).
				WithDetail("available", strconv.Itoa(product.Stock))
		}
		resp = toCartResponse(c)
		return nil
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	registerID := chi.URLParam(r, "registerID")
	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid product id"))
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	var resp cartResponse
	err = h.registry.Update(r.Context(), registerID, func(c *cart.Cart, _ *payment.Set) error {
		if _, ok := c.Line(productID); !ok {
			return dErrors.New(dErrors.CodeNotFound, "product is not in the cart")
		}
		if !c.UpdateQuantity(productID, req.Quantity) {
			return dErrors.New(dErrors.CodeStockExceeded, "requested quantity exceeds available stock").
				WithDetail("product_id", productID.String())
		}
		if req.Discount != nil {
			if !c.SetLineDiscount(productID, *req.Discount) {
				return dErrors.New(dErrors.CodeValidation, "line discount cannot be negative")
			}
		}
		resp = toCartResponse(c)
		return nil
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	registerID := chi.URLParam(r, "registerID")
	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid product id"))
		return
	}

	var resp cartResponse
	err = h.registry.Update(r.Context(), registerID, func(c *cart.Cart, _ *payment.Set) error {
		if !c.RemoveItem(productID) {
			return dErrors.New(dErrors.CodeNotFound, "product is not in the cart")
		}
		resp = toCartResponse(c)
		return nil
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSetDiscount(w http.ResponseWriter, r *http.Request) {
	h.setCartAmount(w, r, func(c *cart.Cart, amount decimal.Decimal) {
		c.SetDiscount(amount)
	})
}

func (h *Handler) handleSetDeliveryFee(w http.ResponseWriter, r *http.Request) {
	h.setCartAmount(w, r, func(c *cart.Cart, amount decimal.Decimal) {
		c.SetDeliveryFee(amount)
	})
}

func (h *Handler) setCartAmount(w http.ResponseWriter, r *http.Request, apply func(*cart.Cart, decimal.Decimal)) {
	registerID := chi.URLParam(r, "registerID")

	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Amount.IsNegative() {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "amount cannot be negative"))
		return
	}

	var resp cartResponse
	err := h.registry.Update(r.Context(), registerID, func(c *cart.Cart, _ *payment.Set) error {
		apply(c, req.Amount)
		resp = toCartResponse(c)
		return nil
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSetClient(w http.ResponseWriter, r *http.Request) {
	registerID := chi.URLParam(r, "registerID")

	var req setClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if req.ClientID != nil {
		if _, err := h.catalog.FindClient(r.Context(), *req.ClientID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeNotFound, "client not found"))
				return
			}
			shared.WriteError(w, err)
			return
		}
	}

	var resp cartResponse
	err := h.registry.Update(r.Context(), registerID, func(c *cart.Cart, _ *payment.Set) error {
		c.SetClient(req.ClientID)
		resp = toCartResponse(c)
		return nil
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleViewPayment(w http.ResponseWriter, r *http.Request) {
	var resp paymentResponse
	err := h.registry.View(r.Context(), chi.URLParam(r, "registerID"), func(_ *cart.Cart, p *payment.Set) error {
		resp = toPaymentResponse(p)
		return nil
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

// handleOpenPayment opens the payment set against the current cart total.
// Reopening discards collected tenders; cart edits after opening require a
// reopen, which checkout enforces by matching target against total.
func (h *Handler) handleOpenPayment(w http.ResponseWriter, r *http.Request) {
	registerID := chi.URLParam(r, "registerID")

	var resp paymentResponse
	err := h.registry.Update(r.Context(), registerID, func(c *cart.Cart, p *payment.Set) error {
		if c.ItemCount() == 0 {
			return dErrors.New(dErrors.CodeValidation, "cart is empty")
		}
		if err := p.Open(c.Total()); err != nil {
			return err
		}
		resp = toPaymentResponse(p)
		return nil
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAddTender(w http.ResponseWriter, r *http.Request) {
	registerID := chi.URLParam(r, "registerID")

	var req addTenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	var resp paymentResponse
	err := h.registry.Update(r.Context(), registerID, func(_ *cart.Cart, p *payment.Set) error {
		if err := p.AddTender(payment.Method(req.Method), req.Amount, req.Installments); err != nil {
			return err
		}
		resp = toPaymentResponse(p)
		return nil
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleRemoveTender(w http.ResponseWriter, r *http.Request) {
	registerID := chi.URLParam(r, "registerID")
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid tender index"))
		return
	}

	var resp paymentResponse
	err = h.registry.Update(r.Context(), registerID, func(_ *cart.Cart, p *payment.Set) error {
		if err := p.RemoveTender(index); err != nil {
			return err
		}
		resp = toPaymentResponse(p)
		return nil
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

// handleCheckout runs the sale commit while holding the register lock, so no
// cart edit can slip in mid-commit. On success the register is reset; on any
// failure cart and tenders stay exactly as they were.
func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	registerID := chi.URLParam(r, "registerID")
	operator := middleware.GetOperatorID(r.Context())

	var record sale.Sale
	err := h.registry.View(r.Context(), registerID, func(c *cart.Cart, p *payment.Set) error {
		var err error
		record, err = h.sales.Commit(r.Context(), registerID, c, p, operator)
		return err
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "checkout rejected",
			"register_id", registerID,
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		shared.WriteError(w, err)
		return
	}

	if err := h.registry.Reset(r.Context(), registerID); err != nil {
		// The sale is durable; a failed snapshot delete only risks a stale
		// cart restore, which the operator can clear manually.
		h.logger.WarnContext(r.Context(), "register reset after checkout failed",
			"register_id", registerID,
			"error", err,
		)
	}
	shared.WriteJSON(w, http.StatusCreated, toSaleResponse(record))
}
