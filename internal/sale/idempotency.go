package sale

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pdv/internal/cart"
)

// IdempotencyKey derives a stable signature for one commit attempt from the
// register, session, cart contents (lines, delivery fee and cart discount)
// and the attempt timestamp (second granularity). A timed-out commit is reconciled by re-querying under the
// same key instead of being blindly retried; a later attempt with an adjusted
// cart or a new timestamp produces a fresh key.
func IdempotencyKey(registerID string, sessionID uuid.UUID, lines []cart.Line, deliveryFee, discount decimal.Decimal, clientID *uuid.UUID, at time.Time) string {
	var b strings.Builder
	b.WriteString(registerID)
	b.WriteByte('|')
	b.WriteString(sessionID.String())
	b.WriteByte('|')
	if clientID != nil {
		b.WriteString(clientID.String())
	}
	b.WriteByte('|')
	for _, l := range lines {
		fmt.Fprintf(&b, "%s:%d:%s;", l.ProductID, l.Quantity, l.UnitPrice.StringFixed(2))
	}
	b.WriteByte('|')
	b.WriteString(deliveryFee.StringFixed(2))
	b.WriteByte('|')
	b.WriteString(discount.StringFixed(2))
	b.WriteByte('|')
	b.WriteString(at.UTC().Truncate(time.Second).Format(time.RFC3339))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
