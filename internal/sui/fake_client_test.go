package sui

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stabletrade/internal/config"
	"stabletrade/internal/txerr"
)

func TestToBaseUnits(t *testing.T) {
	got, err := ToBaseUnits("1.5", 6)
	require.NoError(t, err)
	assert.Equal(t, "1500000", got.String())

	got, err = ToBaseUnits(" 0.0000001 ", 9)
	require.NoError(t, err)
	assert.Equal(t, "100", got.String())

	// precision below one base unit truncates to zero
	_, err = ToBaseUnits("0.0000001", 6)
	assert.Equal(t, txerr.KindInvalidAmount, txerr.KindOf(err))

	_, err = ToBaseUnits("-1", 6)
	assert.Equal(t, txerr.KindInvalidAmount, txerr.KindOf(err))

	_, err = ToBaseUnits("ten", 6)
	assert.Equal(t, txerr.KindInvalidAmount, txerr.KindOf(err))
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "12.35", FormatUnits(big.NewInt(12_345_678), 6, 2))
	assert.Equal(t, "0.0000", FormatUnits(nil, 9, 4))
	assert.Equal(t, "3.0000", FormatUnits(big.NewInt(3_000_000_000), 9, 4))
}

func TestFetchBalances(t *testing.T) {
	f := NewFakeClient()
	f.Fund("0xme", testNetwork.USDCCoinType, big.NewInt(2_500_000))
	f.Fund("0xme", testBrand.CoinType, big.NewInt(1_234_500_000))

	b, err := FetchBalances(context.Background(), f, "0xme", testNetwork, testBrand)
	require.NoError(t, err)
	assert.Equal(t, "2.50", b.USDC.Display)
	assert.Equal(t, "2500000", b.USDC.Raw)
	assert.Equal(t, "1.2345", b.Brand.Display)
	assert.Equal(t, "Gold", b.Brand.Symbol)
	assert.Equal(t, "2.5", b.USDC.Amount.String())
}

func TestFetchBalancesUnconfiguredBrand(t *testing.T) {
	f := NewFakeClient()
	b, err := FetchBalances(context.Background(), f, "0xme", testNetwork, config.DefaultBrands()[0])
	require.NoError(t, err)
	assert.Equal(t, "0.00", b.USDC.Display)
	assert.Equal(t, "0.0000", b.Brand.Display)
}

type failingReader struct{}

func (failingReader) Coins(context.Context, string, string) ([]Coin, error) {
	return nil, errors.New("node down")
}

func TestFetchBalancesPropagatesErrors(t *testing.T) {
	_, err := FetchBalances(context.Background(), failingReader{}, "0xme", testNetwork, testBrand)
	assert.EqualError(t, err, "node down")
}

func TestFakeClientBuySellRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := NewFakeClient()
	f.Fund("0xme", testNetwork.USDCCoinType, big.NewInt(10_000_000))

	tx, err := f.BuildBuy(ctx, BuyRequest{Sender: "0xme", Network: testNetwork, Brand: testBrand, Amount: "4"})
	require.NoError(t, err)
	digest, err := f.SignAndExecute(ctx, tx)
	require.NoError(t, err)
	assert.Len(t, digest, 64)

	st, err := f.TransactionStatus(ctx, digest)
	require.NoError(t, err)
	assert.True(t, st.Found)
	assert.True(t, st.Success)

	b, err := FetchBalances(ctx, f, "0xme", testNetwork, testBrand)
	require.NoError(t, err)
	assert.Equal(t, "6.00", b.USDC.Display)
	assert.Equal(t, "4.0000", b.Brand.Display)

	tx, err = f.BuildSell(ctx, SellRequest{Sender: "0xme", Network: testNetwork, Brand: testBrand, Amount: "1", Mode: config.RedeemInstant})
	require.NoError(t, err)
	_, err = f.SignAndExecute(ctx, tx)
	require.NoError(t, err)

	b, err = FetchBalances(ctx, f, "0xme", testNetwork, testBrand)
	require.NoError(t, err)
	assert.Equal(t, "7.00", b.USDC.Display)
	assert.Equal(t, "3.0000", b.Brand.Display)
}

func TestFakeClientDigestsAreUnique(t *testing.T) {
	ctx := context.Background()
	f := NewFakeClient()
	req := ClaimRequest{Sender: "0xme", Network: testNetwork, Brand: testBrand}

	tx1, err := f.BuildClaim(ctx, req)
	require.NoError(t, err)
	tx2, err := f.BuildClaim(ctx, req)
	require.NoError(t, err)

	d1, err := f.SignAndExecute(ctx, tx1)
	require.NoError(t, err)
	d2, err := f.SignAndExecute(ctx, tx2)
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)
}

func TestFakeClientFailures(t *testing.T) {
	ctx := context.Background()
	f := NewFakeClient()

	_, err := f.BuildBuy(ctx, BuyRequest{Sender: "0xme", Network: testNetwork, Brand: testBrand, Amount: "1"})
	assert.Equal(t, txerr.KindInsufficientBalance, txerr.KindOf(err))

	f.Fund("0xme", testNetwork.USDCCoinType, big.NewInt(1_000_000))
	tx, err := f.BuildBuy(ctx, BuyRequest{Sender: "0xme", Network: testNetwork, Brand: testBrand, Amount: "1"})
	require.NoError(t, err)

	f.FailSubmissions(errors.New("User rejected the request"))
	_, err = f.SignAndExecute(ctx, tx)
	assert.EqualError(t, err, "User rejected the request")

	f.FailSubmissions(nil)
	_, err = f.SignAndExecute(ctx, tx)
	require.NoError(t, err)

	// replaying the same debit after funds are spent fails on chain
	_, err = f.SignAndExecute(ctx, tx)
	assert.Equal(t, txerr.KindInsufficientBalance, txerr.KindOf(err))

	st, err := f.TransactionStatus(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, st.Found)
}

func TestFakeClientLowDecimalBrand(t *testing.T) {
	ctx := context.Background()
	f := NewFakeClient()
	f.Fund("0xme", testNetwork.USDCCoinType, big.NewInt(1_000_000))

	cents := testBrand
	cents.Decimals = 2

	// representable in USDC but not in the brand coin
	_, err := f.BuildBuy(ctx, BuyRequest{Sender: "0xme", Network: testNetwork, Brand: cents, Amount: "0.001"})
	assert.Equal(t, txerr.KindInvalidAmount, txerr.KindOf(err))

	tx, err := f.BuildBuy(ctx, BuyRequest{Sender: "0xme", Network: testNetwork, Brand: cents, Amount: "0.25"})
	require.NoError(t, err)
	_, err = f.SignAndExecute(ctx, tx)
	require.NoError(t, err)

	b, err := FetchBalances(ctx, f, "0xme", testNetwork, cents)
	require.NoError(t, err)
	assert.Equal(t, "0.75", b.USDC.Display)
	assert.Equal(t, "25", b.Brand.Raw)
}

func TestFakeClientRejectsMalformedUnitsWithoutDebit(t *testing.T) {
	ctx := context.Background()
	f := NewFakeClient()
	f.Fund("0xme", testNetwork.USDCCoinType, big.NewInt(1_000_000))

	tx := UnsignedTx{Bytes: []byte(`{"nonce":1,"function":"mint","sender":"0xme",` +
		`"debitType":"` + testNetwork.USDCCoinType + `","debitUnits":"500000",` +
		`"creditType":"` + testBrand.CoinType + `","creditUnits":"<nil>"}`)}
	_, err := f.SignAndExecute(ctx, tx)
	require.Error(t, err)

	b, err := FetchBalances(ctx, f, "0xme", testNetwork, testBrand)
	require.NoError(t, err)
	assert.Equal(t, "1000000", b.USDC.Raw)
	assert.Equal(t, "0", b.Brand.Raw)
}
