package sui

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"stabletrade/internal/config"
)

// Balance is one asset's holding in base units plus its display form.
type Balance struct {
	Symbol  string          `json:"symbol"`
	Raw     string          `json:"raw"`
	Display string          `json:"balance"`
	Amount  decimal.Decimal `json:"-"`
}

type Balances struct {
	USDC  Balance `json:"usdc"`
	Brand Balance `json:"brand"`
}

const (
	usdcDisplayPlaces  = 2
	brandDisplayPlaces = 4
)

// FetchBalances reads the funding and brand balances concurrently.
// Unconfigured brands report zero without a query.
func FetchBalances(ctx context.Context, r CoinReader, owner string, n config.Network, b config.Brand) (Balances, error) {
	usdcDecimals := orDecimals(n.USDCDecimals, 6)
	brandDecimals := orDecimals(b.Decimals, 9)

	var usdcUnits, brandUnits *big.Int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		coins, err := r.Coins(gctx, owner, n.USDCCoinType)
		if err != nil {
			return err
		}
		usdcUnits = SumCoins(coins)
		return nil
	})
	g.Go(func() error {
		if !b.IsConfigured() {
			brandUnits = new(big.Int)
			return nil
		}
		coins, err := r.Coins(gctx, owner, b.CoinType)
		if err != nil {
			return err
		}
		brandUnits = SumCoins(coins)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Balances{}, err
	}

	return Balances{
		USDC:  newBalance("USDC", usdcUnits, usdcDecimals, usdcDisplayPlaces),
		Brand: newBalance(b.DisplayName, brandUnits, brandDecimals, brandDisplayPlaces),
	}, nil
}

func newBalance(symbol string, units *big.Int, decimals, places int32) Balance {
	return Balance{
		Symbol:  symbol,
		Raw:     units.String(),
		Display: FormatUnits(units, decimals, places),
		Amount:  decimal.NewFromBigInt(units, -decimals),
	}
}
