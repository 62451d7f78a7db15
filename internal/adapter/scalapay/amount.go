package scalapay

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency is the only currency this integration charges in.
const Currency = "EUR"

// ToDecimalString renders minor units as the provider's decimal string.
// Absent or zero amounts render as "0".
func ToDecimalString(minor *int64) string {
	if minor == nil {
		return "0"
	}
	return FormatMinor(*minor)
}

func FormatMinor(minor int64) string {
	if minor == 0 {
		return "0"
	}
	return decimal.New(minor, -2).String()
}

// ToMinorUnits parses a provider decimal string ("25.5") into minor units (2550).
func ToMinorUnits(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	m := d.Shift(2)
	if !m.IsInteger() {
		return 0, fmt.Errorf("amount %q has sub-cent precision", s)
	}
	return m.IntPart(), nil
}

// Amount is the provider's money block.
type Amount struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func NewAmount(minor int64) Amount {
	return Amount{Amount: FormatMinor(minor), Currency: Currency}
}
