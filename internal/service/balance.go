package service

import (
	"github.com/shopspring/decimal"
)

// BalanceState says whether a balance holds a value or a sentinel.
type BalanceState int

const (
	BalanceUnknown BalanceState = iota
	BalanceKnown
	BalanceNotFunded
	BalanceError
)

// Balance is the last fetched value or an explicit sentinel.
type Balance struct {
	State  BalanceState
	Amount decimal.Decimal
	Text   string
}

func knownBalance(amount decimal.Decimal, text string) Balance {
	return Balance{State: BalanceKnown, Amount: amount, Text: text}
}

// String is the display form.
func (b Balance) String() string {
	switch b.State {
	case BalanceKnown:
		return b.Text
	case BalanceNotFunded:
		return "0 (Not funded)"
	case BalanceError:
		return "Error"
	default:
		return "-"
	}
}
