package payment

import "github.com/shopspring/decimal"

// Method identifies a payment instrument.
type Method string

const (
	MethodCash    Method = "cash"
	MethodCredit  Method = "credit"
	MethodDebit   Method = "debit"
	MethodPix     Method = "pix"
	MethodVoucher Method = "voucher"
)

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodCredit, MethodDebit, MethodPix, MethodVoucher:
		return true
	}
	return false
}

// Tender is a single instrument/amount pair contributing toward the total.
// Installments is only meaningful for credit and defaults to 1.
type Tender struct {
	Method       Method          `json:"method"`
	Amount       decimal.Decimal `json:"amount"`
	Installments int             `json:"installments"`
}
