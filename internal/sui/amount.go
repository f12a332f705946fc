package sui

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"stabletrade/internal/txerr"
)

// ToBaseUnits scales a positive decimal string by 10^decimals, truncating
// any precision the coin cannot represent.
func ToBaseUnits(amount string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, txerr.New(txerr.KindInvalidAmount, "invalid amount %q", amount)
	}
	units := d.Shift(decimals).Truncate(0)
	if !units.IsPositive() {
		return nil, txerr.New(txerr.KindInvalidAmount, "amount must be positive: %q", amount)
	}
	return units.BigInt(), nil
}

// SumCoins adds up coin balances.
func SumCoins(coins []Coin) *big.Int {
	total := new(big.Int)
	for _, c := range coins {
		if c.Balance != nil {
			total.Add(total, c.Balance)
		}
	}
	return total
}

// FormatUnits renders base units as a decimal string with places fraction digits.
func FormatUnits(units *big.Int, decimals, places int32) string {
	if units == nil {
		units = new(big.Int)
	}
	return decimal.NewFromBigInt(units, -decimals).StringFixed(places)
}
