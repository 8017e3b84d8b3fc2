// Package commission is the single authority for platform commission math.
// Every component that needs money arithmetic (commission, refund amounts,
// capture amounts) must round through this package so that reconciliation
// stays exact across the ledger.
package commission

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// minorUnitExponents lists currencies whose minor-unit count differs from the
// usual 2. Everything not listed rounds to 2 decimal places.
var minorUnitExponents = map[string]int32{
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
	"BHD": 3,
	"KWD": 3,
	"OMR": 3,
	"TND": 3,
}

// MinorUnits returns the number of decimal places for the currency
func MinorUnits(currency string) int32 {
	if exp, ok := minorUnitExponents[strings.ToUpper(currency)]; ok {
		return exp
	}
	return 2
}

// Round rounds an amount to the currency's minor units, half away from zero.
// Banker's rounding is deliberately not used: the same rule must hold at every
// call site or per-cent drift shows up during reconciliation.
func Round(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Round(MinorUnits(currency))
}

// Breakdown is the result of a commission calculation
type Breakdown struct {
	Rate       decimal.Decimal
	Commission decimal.Decimal
	Net        decimal.Decimal
}

// Calculate computes the platform commission and net payout for a gross
// amount. Commission = round(amount * rate) to the currency's minor units;
// Net = amount - Commission, so Commission + Net == amount always holds.
func Calculate(amount, rate decimal.Decimal, currency string) (Breakdown, error) {
	if amount.IsNegative() {
		return Breakdown{}, fmt.Errorf("commission: amount must not be negative, got %s", amount)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return Breakdown{}, fmt.Errorf("commission: rate must be within [0,1], got %s", rate)
	}

	com := Round(amount.Mul(rate), currency)
	return Breakdown{
		Rate:       rate,
		Commission: com,
		Net:        amount.Sub(com),
	}, nil
}
