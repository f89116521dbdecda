package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pdv/internal/catalog"
)

// Line is a single product entry in the cart. Subtotal is always derived,
// never stored. StockCeiling is the product stock cached when the line was
// created or last updated; it blocks obviously invalid local states but is
// not authoritative — the commit coordinator re-reads live stock.
type Line struct {
	ProductID    uuid.UUID       `json:"product_id"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	StockCeiling int             `json:"stock_ceiling"`
	Discount     decimal.Decimal `json:"discount"`
}

// Subtotal derives quantity times unit price minus the line discount,
// floored at zero.
func (l Line) Subtotal() decimal.Decimal {
	sub := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))).Sub(l.Discount)
	if sub.IsNegative() {
		return decimal.Zero
	}
	return sub
}

// Cart is the in-memory register cart. It is owned by exactly one operator
// session and is deliberately lock-free and synchronous: all mutations are
// local and never suspend. Rejected mutations are silent no-ops by design;
// callers inspect the boolean result and surface the notification themselves.
type Cart struct {
	lines       []Line
	index       map[uuid.UUID]int
	clientID    *uuid.UUID
	deliveryFee decimal.Decimal
	discount    decimal.Decimal
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{index: make(map[uuid.UUID]int)}
}

// AddItem inserts a line for the product or merges qty into an existing one.
// Returns false without changing state when qty is not positive or when the
// resulting quantity would exceed the product's current stock. Merging
// refreshes the line's stock ceiling and unit price from the product.
func (c *Cart) AddItem(p catalog.Product, qty int) bool {
	if qty <= 0 {
		return false
	}
	if i, ok := c.index[p.ID]; ok {
		newQty := c.lines[i].Quantity + qty
		if newQty > p.Stock {
			return false
		}
		c.lines[i].Quantity = newQty
		c.lines[i].StockCeiling = p.Stock
		c.lines[i].UnitPrice = p.Price
		return true
	}
	if qty > p.Stock {
		return false
	}
	c.lines = append(c.lines, Line{
		ProductID:    p.ID,
		Name:         p.Name,
		UnitPrice:    p.Price,
		Quantity:     qty,
		StockCeiling: p.Stock,
		Discount:     decimal.Zero,
	})
	c.index[p.ID] = len(c.lines) - 1
	return true
}

// UpdateQuantity sets the absolute quantity for a line. Zero or negative
// removes the line. Quantities above the cached stock ceiling are rejected.
func (c *Cart) UpdateQuantity(productID uuid.UUID, qty int) bool {
	i, ok := c.index[productID]
	if !ok {
		return false
	}
	if qty <= 0 {
		c.removeAt(i)
		return true
	}
	if qty > c.lines[i].StockCeiling {
		return false
	}
	c.lines[i].Quantity = qty
	return true
}

// SetLineDiscount applies an absolute discount to one line.
func (c *Cart) SetLineDiscount(productID uuid.UUID, discount decimal.Decimal) bool {
	i, ok := c.index[productID]
	if !ok || discount.IsNegative() {
		return false
	}
	c.lines[i].Discount = discount
	return true
}

// RemoveItem deletes the line for the product, if present.
func (c *Cart) RemoveItem(productID uuid.UUID) bool {
	i, ok := c.index[productID]
	if !ok {
		return false
	}
	c.removeAt(i)
	return true
}

func (c *Cart) removeAt(i int) {
	delete(c.index, c.lines[i].ProductID)
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	for j := i; j < len(c.lines); j++ {
		c.index[c.lines[j].ProductID] = j
	}
}

// SetDiscount sets the absolute cart discount. The value is not clamped here;
// Total clamps the final amount at zero.
func (c *Cart) SetDiscount(value decimal.Decimal) {
	c.discount = value
}

// SetDeliveryFee sets the absolute delivery fee.
func (c *Cart) SetDeliveryFee(value decimal.Decimal) {
	c.deliveryFee = value
}

// SetClient attaches or detaches (nil) the selected client.
func (c *Cart) SetClient(clientID *uuid.UUID) {
	c.clientID = clientID
}

// Clear resets the cart to empty, including the selected client.
func (c *Cart) Clear() {
	c.lines = nil
	c.index = make(map[uuid.UUID]int)
	c.clientID = nil
	c.deliveryFee = decimal.Zero
	c.discount = decimal.Zero
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Line returns the line for a product, if present.
func (c *Cart) Line(productID uuid.UUID) (Line, bool) {
	if i, ok := c.index[productID]; ok {
		return c.lines[i], true
	}
	return Line{}, false
}

// ClientID returns the selected client, or nil.
func (c *Cart) ClientID() *uuid.UUID { return c.clientID }

// DeliveryFee returns the current delivery fee.
func (c *Cart) DeliveryFee() decimal.Decimal { return c.deliveryFee }

// Discount returns the current cart discount.
func (c *Cart) Discount() decimal.Decimal { return c.discount }

// ItemCount returns the number of lines in the cart.
func (c *Cart) ItemCount() int { return len(c.lines) }

// Subtotal sums the derived line subtotals. Recomputed on every call so no
// reader ever observes a stale value.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.lines {
		sum = sum.Add(l.Subtotal())
	}
	return sum
}

// Total is subtotal plus delivery fee minus discount, clamped at zero.
func (c *Cart) Total() decimal.Decimal {
	total := c.Subtotal().Add(c.deliveryFee).Sub(c.discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}
