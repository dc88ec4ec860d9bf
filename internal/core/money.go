// Package core provides the domain types of the finance bot and money
// parsing utilities.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrNonPositiveAmount = errors.New("amount must be positive")
)

// maxCents keeps amounts comfortably inside int64 after summing.
var maxCents = decimal.NewFromInt(1 << 50)

var hundred = decimal.NewFromInt(100)

// Money is an amount in minor units (kopecks).
type Money struct {
	Cents int64
}

// ParseAmount converts user input such as "150.50", "199,99" or " 1500 "
// into Money. The comma is accepted as decimal separator. Values are rounded
// half away from zero to two decimals and must be positive after rounding.
//
// Examples:
//
//	ParseAmount("199,99") -> 19999
//	ParseAmount("0.005")  -> 1 (rounds up)
//	ParseAmount("0.004")  -> ErrNonPositiveAmount
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}

	cents := d.Mul(hundred).Round(0)
	if !cents.IsPositive() {
		return Money{}, ErrNonPositiveAmount
	}
	if cents.GreaterThan(maxCents) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// MoneyFromDecimal rounds d to whole minor units.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Mul(hundred).Round(0).IntPart()}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrNonPositiveAmount
	}
	return nil
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount with exactly two decimals, e.g. "150.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

// Percent returns the share of m in total, in percent.
func (m Money) Percent(total Money) float64 {
	if total.IsZero() {
		return 0
	}
	return float64(m.Cents) * 100 / float64(total.Cents)
}
