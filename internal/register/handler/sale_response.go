package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pdv/internal/sale"
)

type saleItemResponse struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Discount  decimal.Decimal `json:"discount"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type salePaymentResponse struct {
	Method       string          `json:"method"`
	Amount       decimal.Decimal `json:"amount"`
	Installments int             `json:"installments"`
}

type saleResponse struct {
	ID             uuid.UUID             `json:"id"`
	IdempotencyKey string                `json:"idempotency_key"`
	SessionID      uuid.UUID             `json:"session_id"`
	RegisterID     string                `json:"register_id"`
	ClientID       *uuid.UUID            `json:"client_id,omitempty"`
	Items          []saleItemResponse    `json:"items"`
	Payments       []salePaymentResponse `json:"payments"`
	Subtotal       decimal.Decimal       `json:"subtotal"`
	DeliveryFee    decimal.Decimal       `json:"delivery_fee"`
	Discount       decimal.Decimal       `json:"discount"`
	Total          decimal.Decimal       `json:"total"`
	Status         string                `json:"status"`
	Operator       string                `json:"operator"`
	CreatedAt      time.Time             `json:"created_at"`
}

func toSaleResponse(s sale.Sale) saleResponse {
	items := make([]saleItemResponse, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, saleItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Discount:  it.Discount,
			Subtotal:  it.Subtotal,
		})
	}
	payments := make([]salePaymentResponse, 0, len(s.Payments))
	for _, p := range s.Payments {
		payments = append(payments, salePaymentResponse{
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
