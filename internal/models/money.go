package models

import (
	"github.com/shopspring/decimal"

	"fieldops/internal/apperr"
)

// Scales of the stored columns: money has cents, quantities thousandths.
const (
	MoneyScale    = 2
	QuantityScale = 3
)

// Money rounds a computed amount to cents, half away from zero.
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// CheckMoney rejects a caller-supplied amount that would not survive storage.
func CheckMoney(field string, d decimal.Decimal) error {
	if !d.Equal(d.Round(MoneyScale)) {
		return apperr.Validation("%s %s has more than %d decimal places", field, d, MoneyScale)
	}
	return nil
}

func CheckQuantity(field string, d decimal.Decimal) error {
	if !d.Equal(d.Truncate(QuantityScale)) {
		return apperr.Validation("%s %s has more than %d decimal places", field, d, QuantityScale)
	}
	return nil
}
