package sui

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"github.com/shopspring/decimal"

	"stabletrade/internal/txerr"
)

// FakeClient emulates a node and wallet in memory. Digests are the hash of
// the transaction payload so tests can predict them. Executing a buy or
// sell moves funds between the sender's USDC and brand holdings.
type FakeClient struct {
	mu        sync.Mutex
	holdings  map[string]map[string]*big.Int
	executed  map[string]bool
	nonce     uint64
	submitErr error
}

type fakePayload struct {
	Nonce       uint64 `json:"nonce"`
	Function    string `json:"function"`
	Sender      string `json:"sender"`
	DebitType   string `json:"debitType,omitempty"`
	DebitUnits  string `json:"debitUnits,omitempty"`
	CreditType  string `json:"creditType,omitempty"`
	CreditUnits string `json:"creditUnits,omitempty"`
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		holdings: make(map[string]map[string]*big.Int),
		executed: make(map[string]bool),
	}
}

// Fund credits owner with units of coinType.
func (f *FakeClient) Fund(owner, coinType string, units *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adjust(owner, coinType, units)
}

// FailSubmissions makes every following SignAndExecute return err; nil restores success.
func (f *FakeClient) FailSubmissions(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitErr = err
}

func (f *FakeClient) Coins(_ context.Context, owner, coinType string) ([]Coin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	units := f.holdings[owner][coinType]
	if units == nil || units.Sign() == 0 {
		return nil, nil
	}
	return []Coin{{
		CoinType:     coinType,
		CoinObjectID: fakeHash(owner + coinType),
		Balance:      new(big.Int).Set(units),
	}}, nil
}

func (f *FakeClient) BuildBuy(ctx context.Context, req BuyRequest) (UnsignedTx, error) {
	if err := checkBrand(req.Brand); err != nil {
		return UnsignedTx{}, err
	}
	usdc, err := ToBaseUnits(req.Amount, orDecimals(req.Network.USDCDecimals, 6))
	if err != nil {
		return UnsignedTx{}, err
	}
	if err := f.requireFunds(ctx, req.Sender, req.Network.USDCCoinType, usdc, "USDC"); err != nil {
		return UnsignedTx{}, err
	}
	brandUnits, err := ToBaseUnits(req.Amount, orDecimals(req.Brand.Decimals, 9))
	if err != nil {
		return UnsignedTx{}, err
	}
	return f.payload(fakePayload{
		Function:    "mint",
		Sender:      req.Sender,
		DebitType:   req.Network.USDCCoinType,
		DebitUnits:  usdc.String(),
		CreditType:  req.Brand.CoinType,
		CreditUnits: brandUnits.String(),
	})
}

func (f *FakeClient) BuildSell(ctx context.Context, req SellRequest) (UnsignedTx, error) {
	if err := checkBrand(req.Brand); err != nil {
		return UnsignedTx{}, err
	}
	fn, err := redeemFunction(req.Brand, req.Mode)
	if err != nil {
		return UnsignedTx{}, err
	}
	brandUnits, err := ToBaseUnits(req.Amount, orDecimals(req.Brand.Decimals, 9))
	if err != nil {
		return UnsignedTx{}, err
	}
	if err := f.requireFunds(ctx, req.Sender, req.Brand.CoinType, brandUnits, "virtual asset"); err != nil {
		return UnsignedTx{}, err
	}
	d, _ := decimal.NewFromString(req.Amount)
	usdc := d.Shift(orDecimals(req.Network.USDCDecimals, 6)).Truncate(0).BigInt()
	return f.payload(fakePayload{
		Function:    fn,
		Sender:      req.Sender,
		DebitType:   req.Brand.CoinType,
		DebitUnits:  brandUnits.String(),
		CreditType:  req.Network.USDCCoinType,
		CreditUnits: usdc.String(),
	})
}

func (f *FakeClient) BuildClaim(_ context.Context, req ClaimRequest) (UnsignedTx, error) {
	if err := checkBrand(req.Brand); err != nil {
		return UnsignedTx{}, err
	}
	if req.Brand.ClaimFunction == "" {
		return UnsignedTx{}, txerr.New(txerr.KindClaimUnsupported, "claim is not supported for %s", req.Brand.DisplayName)
	}
	return f.payload(fakePayload{Function: req.Brand.ClaimFunction, Sender: req.Sender})
}

func (f *FakeClient) SignAndExecute(_ context.Context, tx UnsignedTx) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	var p fakePayload
	if err := json.Unmarshal(tx.Bytes, &p); err != nil {
		return "", fmt.Errorf("decode fake transaction: %w", err)
	}
	debit, err := parseUnits(p.DebitType, p.DebitUnits)
	if err != nil {
		return "", err
	}
	credit, err := parseUnits(p.CreditType, p.CreditUnits)
	if err != nil {
		return "", err
	}
	if debit != nil {
		have := f.holdings[p.Sender][p.DebitType]
		if have == nil || have.Cmp(debit) < 0 {
			return "", txerr.New(txerr.KindInsufficientBalance, "InsufficientCoinBalance in command 0")
		}
		f.adjust(p.Sender, p.DebitType, new(big.Int).Neg(debit))
	}
	if credit != nil {
		f.adjust(p.Sender, p.CreditType, credit)
	}
	digest := fakeHash(string(tx.Bytes))
	f.executed[digest] = true
	return digest, nil
}

func (f *FakeClient) TransactionStatus(_ context.Context, digest string) (TxStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.executed[digest] {
		return TxStatus{Digest: digest}, nil
	}
	return TxStatus{Digest: digest, Found: true, Success: true}, nil
}

func (f *FakeClient) Ping(context.Context) error {
	return nil
}

func (f *FakeClient) requireFunds(ctx context.Context, owner, coinType string, need *big.Int, label string) error {
	coins, err := f.Coins(ctx, owner, coinType)
	if err != nil {
		return err
	}
	if len(coins) == 0 {
		return txerr.New(txerr.KindInsufficientBalance, "No %s coins found in wallet", label)
	}
	if total := SumCoins(coins); total.Cmp(need) < 0 {
		return txerr.New(txerr.KindInsufficientBalance, "Insufficient %s balance: have %s, need %s", label, total, need)
	}
	return nil
}

func (f *FakeClient) payload(p fakePayload) (UnsignedTx, error) {
	f.mu.Lock()
	f.nonce++
	p.Nonce = f.nonce
	f.mu.Unlock()
	raw, err := json.Marshal(p)
	if err != nil {
		return UnsignedTx{}, err
	}
	return UnsignedTx{Bytes: raw}, nil
}

// adjust must be called with f.mu held.
func (f *FakeClient) adjust(owner, coinType string, delta *big.Int) {
	byType, ok := f.holdings[owner]
	if !ok {
		byType = make(map[string]*big.Int)
		f.holdings[owner] = byType
	}
	cur, ok := byType[coinType]
	if !ok {
		cur = new(big.Int)
		byType[coinType] = cur
	}
	cur.Add(cur, delta)
}

// parseUnits returns nil for a leg the transaction does not have.
func parseUnits(coinType, units string) (*big.Int, error) {
	if coinType == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(units, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("decode fake transaction: invalid units %q for %s", units, coinType)
	}
	return v, nil
}

func orDecimals(d, fallback int32) int32 {
	if d == 0 {
		return fallback
	}
	return d
}

func fakeHash(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
