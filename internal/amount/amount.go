// Package amount converts between XLM (the primary unit users type and read)
// and stroops (the integer unit contracts and transactions use).
package amount

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits in one XLM.
const Decimals = 7

// Scale is the number of stroops in one XLM.
const Scale int64 = 10_000_000

const (
	walletPlaces   = 2
	contractPlaces = Decimals
)

var ErrInvalid = errors.New("invalid amount")

// ParsePositive parses raw user input as an XLM amount. Empty, non-numeric,
// zero, negative and sub-stroop values are rejected.
func ParsePositive(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalid)
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalid, trimmed)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s is not positive", ErrInvalid, d.String())
	}
	if ToStroops(d).Sign() == 0 {
		return decimal.Zero, fmt.Errorf("%w: %s is below one stroop", ErrInvalid, d.String())
	}
	return d, nil
}

// ToStroops converts XLM to stroops. Digits below one stroop are dropped.
func ToStroops(xlm decimal.Decimal) *big.Int {
	return xlm.Shift(Decimals).Truncate(0).BigInt()
}

// FromStroops converts stroops to XLM.
func FromStroops(stroops *big.Int) decimal.Decimal {
	if stroops == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(stroops, -Decimals)
}

// FormatWallet renders a native balance with two decimal places.
func FormatWallet(xlm decimal.Decimal) string {
	return xlm.StringFixed(walletPlaces)
}

// FormatContract renders a contract balance with full stroop precision.
func FormatContract(xlm decimal.Decimal) string {
	return xlm.StringFixed(contractPlaces)
}

// ParseBalance parses a balance string as returned by Horizon ("100.0000000").
func ParseBalance(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse balance %q: %w", raw, err)
	}
	return d, nil
}
