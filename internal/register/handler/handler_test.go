package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cartstore "pdv/internal/cart/store"
	"pdv/internal/cashsession"
	sessionstore "pdv/internal/cashsession/store"
	"pdv/internal/catalog"
	catalogstore "pdv/internal/catalog/store"
	"pdv/internal/platform/events"
	"pdv/internal/register"
	"pdv/internal/sale"
	salestore "pdv/internal/sale/store"
)

type fixture struct {
	router   chi.Router
	catalog  *catalogstore.InMemoryStore
	sessions *cashsession.Service
	product  catalog.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	catalogStore := catalogstore.NewInMemoryStore()
	sessions := cashsession.NewService(sessionstore.NewInMemoryStore(), nil)
	sales := sale.NewService(salestore.NewInMemoryStore(), catalogStore, sessions,
		events.NewInMemoryStore(), nil, nil, log)
	registry := register.NewRegistry(cartstore.NewInMemoryStore(), log)

	product := catalog.Product{
		ID:    uuid.New(),
		Name:  "espresso",
		Code:  "ESP-1",
		Price: decimal.RequireFromString("10.00"),
		Stock: 2,
	}
	catalogStore.SeedProduct(product)

	if _, err := sessions.Open(context.Background(), "reg-1", decimal.RequireFromString("50.00"), "op-1"); err != nil {
		t.Fatalf("open session: %v", err)
	}

	router := chi.NewRouter()
	New(registry, catalogStore, sales, log).Register(router)
	return &fixture{router: router, catalog: catalogStore, sessions: sessions, product: product}
}

func (f *fixture) do(t *testing.T, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestCartFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/registers/reg-1/cart/items", map[string]any{
		"product_id": f.product.ID,
		"quantity":   2,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 adding item, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp cartResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode cart response: %v", err)
	}
	if resp.ItemCount != 1 || !resp.Total.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("unexpected cart state: %+v", resp)
	}
}

func TestAddItemByCode(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/registers/reg-1/cart/items", map[string]any{
		"code":     "ESP-1",
		"quantity": 1,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 adding by code, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAddItemBeyondStockIsRejected(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/registers/reg-1/cart/items", map[string]any{
		"product_id": f.product.ID,
		"quantity":   2,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/registers/reg-1/cart/items", map[string]any{
		"product_id": f.product.ID,
		"quantity":   1,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 beyond stock, got %d: %s", rec.Code, rec.Body.String())
	}

	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Error != "stock_exceeded" {
		t.Fatalf("expected stock_exceeded, got %q", errResp.Error)
	}

	// the cart state was not touched by the rejected add
	rec = f.do(t, http.MethodGet, "/registers/reg-1/cart", nil)
	var resp cartResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode cart response: %v", err)
	}
	if len(resp.Lines) != 1 || resp.Lines[0].Quantity != 2 {
		t.Fatalf("cart changed by rejected add: %+v", resp)
	}
}

func TestUnknownProduct(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/registers/reg-1/cart/items", map[string]any{
		"product_id": uuid.New(),
		"quantity":   1,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown product, got %d", rec.Code)
	}
}

func TestCheckoutFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/registers/reg-1/cart/items", map[string]any{
		"product_id": f.product.ID,
		"quantity":   2,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add item: %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/registers/reg-1/payment", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("open payment: %d: %s", rec.Code, rec.Body.String())
	}
	var pay paymentResponse
	if err := json.NewDecoder(rec.Body).Decode(&pay); err != nil {
		t.Fatalf("decode payment response: %v", err)
	}
	if !pay.Suggested.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("expected suggestion 20.00, got %s", pay.Suggested)
	}

	// checkout blocked while payment incomplete
	rec = f.do(t, http.MethodPost, "/registers/reg-1/checkout", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 with no tenders, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/registers/reg-1/payment/tenders", map[string]any{
		"method": "cash",
		"amount": "20.00",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add tender: %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/registers/reg-1/checkout", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 on checkout, got %d: %s", rec.Code, rec.Body.String())
	}
	var committed saleResponse
	if err := json.NewDecoder(rec.Body).Decode(&committed); err != nil {
		t.Fatalf("decode sale response: %v", err)
	}
	if committed.Status != "completed" || !committed.Total.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("unexpected sale: %+v", committed)
	}

	// register is reset after a successful commit
	rec = f.do(t, http.MethodGet, "/registers/reg-1/cart", nil)
	var cartNow cartResponse
	if err := json.NewDecoder(rec.Body).Decode(&cartNow); err != nil {
		t.Fatalf("decode cart response: %v", err)
	}
	if cartNow.ItemCount != 0 {
		t.Fatalf("expected empty cart after checkout, got %+v", cartNow)
	}

	// live stock is gone, a new identical cart cannot be built
	rec = f.do(t, http.MethodPost, "/registers/reg-1/cart/items", map[string]any{
		"product_id": f.product.ID,
		"quantity":   1,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 adding sold-out product, got %d", rec.Code)
	}
}

func TestCheckoutFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/registers/reg-2/cart/items", map[string]any{
		"product_id": f.product.ID,
		"quantity":   1,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add item: %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/registers/reg-2/payment", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("open payment: %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/registers/reg-2/payment/tenders", map[string]any{
		"method": "cash",
		"amount": "10.00",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add tender: %d", rec.Code)
	}

	// reg-2 has no open session, so the commit is rejected server-side
	rec = f.do(t, http.MethodPost, "/registers/reg-2/checkout", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 without session, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/registers/reg-2/cart", nil)
	var resp cartResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode cart response: %v", err)
	}
	if resp.ItemCount != 1 {
		t.Fatalf("cart lost after failed checkout: %+v", resp)
	}
	rec = f.do(t, http.MethodGet, "/registers/reg-2/payment", nil)
	var pay paymentResponse
	if err := json.NewDecoder(rec.Body).Decode(&pay); err != nil {
		t.Fatalf("decode payment response: %v", err)
	}
	if len(pay.Tenders) != 1 {
		t.Fatalf("tenders lost after failed checkout: %+v", pay)
	}
}

func TestDiscountAndDeliveryFee(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/registers/reg-1/cart/items", map[string]any{
		"product_id": f.product.ID,
		"quantity":   1,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add item: %d", rec.Code)
	}

	rec = f.do(t, http.MethodPut, "/registers/reg-1/cart/delivery-fee", map[string]any{"amount": "5.00"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set delivery fee: %d", rec.Code)
	}
	rec = f.do(t, http.MethodPut, "/registers/reg-1/cart/discount", map[string]any{"amount": "3.00"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set discount: %d", rec.Code)
	}

	var resp cartResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode cart response: %v", err)
	}
	if !resp.Total.Equal(decimal.RequireFromString("12.00")) {
		t.Fatalf("expected total 12.00, got %s", resp.Total)
	}

	rec = f.do(t, http.MethodPut, "/registers/reg-1/cart/discount", map[string]any{"amount": "-1.00"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative discount, got %d", rec.Code)
	}
}
