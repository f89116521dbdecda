package store

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
)

// scanDecimal maps a nullable numeric column onto a decimal, treating NULL as
// zero. Closing fields are NULL until the session closes.
func scanDecimal(src sql.NullString, dst *decimal.Decimal) error {
	if !src.Valid || src.String == "" {
		*dst = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(src.String)
	if err != nil {
		return fmt.Errorf("parse decimal %q: %w", src.String, err)
	}
	*dst = d
	return nil
}
