package sui

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"

	"stabletrade/internal/config"
	"stabletrade/internal/txerr"
)

// RPCClient talks JSON-RPC 2.0 to a Sui fullnode. Transaction bytes are
// always built by the node through its unsafe_* builder methods.
type RPCClient struct {
	rpc       *rpc.Client
	gasBudget uint64
}

type RPCClientConfig struct {
	URL       string
	GasBudget uint64
}

func NewRPCClient(ctx context.Context, cfg RPCClientConfig) (*RPCClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if cfg.GasBudget == 0 {
		return nil, fmt.Errorf("gas budget is required")
	}
	cli, err := rpc.DialContext(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return &RPCClient{rpc: cli, gasBudget: cfg.GasBudget}, nil
}

func (c *RPCClient) Close() {
	c.rpc.Close()
}

type coinPage struct {
	Data []struct {
		CoinType     string `json:"coinType"`
		CoinObjectID string `json:"coinObjectId"`
		Balance      string `json:"balance"`
	} `json:"data"`
	NextCursor  *string `json:"nextCursor"`
	HasNextPage bool    `json:"hasNextPage"`
}

type txBytesResponse struct {
	TxBytes string `json:"txBytes"`
}

type txBlockResponse struct {
	Digest  string `json:"digest"`
	Effects *struct {
		Status struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		} `json:"status"`
	} `json:"effects"`
}

const coinPageLimit = 50

// Coins lists every coin of coinType owned by owner, following pagination.
func (c *RPCClient) Coins(ctx context.Context, owner, coinType string) ([]Coin, error) {
	var (
		out    []Coin
		cursor *string
	)
	for {
		var page coinPage
		if err := c.rpc.CallContext(ctx, &page, "suix_getCoins", owner, coinType, cursor, coinPageLimit); err != nil {
			return nil, fmt.Errorf("get coins: %w", err)
		}
		for _, d := range page.Data {
			bal, ok := new(big.Int).SetString(d.Balance, 10)
			if !ok {
				return nil, fmt.Errorf("coin %s: invalid balance %q", d.CoinObjectID, d.Balance)
			}
			out = append(out, Coin{CoinType: d.CoinType, CoinObjectID: d.CoinObjectID, Balance: bal})
		}
		if !page.HasNextPage || page.NextCursor == nil {
			return out, nil
		}
		cursor = page.NextCursor
	}
}

func (c *RPCClient) BuildBuy(ctx context.Context, req BuyRequest) (UnsignedTx, error) {
	if err := checkBrand(req.Brand); err != nil {
		return UnsignedTx{}, err
	}
	amount, err := ToBaseUnits(req.Amount, orDecimals(req.Network.USDCDecimals, 6))
	if err != nil {
		return UnsignedTx{}, err
	}
	coins, err := c.fundingCoins(ctx, req.Sender, req.Network.USDCCoinType, amount, "USDC")
	if err != nil {
		return UnsignedTx{}, err
	}
	return c.moveCall(ctx, req.Sender, req.Brand, "mint", []any{coinIDs(coins), amount.String()})
}

func (c *RPCClient) BuildSell(ctx context.Context, req SellRequest) (UnsignedTx, error) {
	if err := checkBrand(req.Brand); err != nil {
		return UnsignedTx{}, err
	}
	fn, err := redeemFunction(req.Brand, req.Mode)
	if err != nil {
		return UnsignedTx{}, err
	}
	amount, err := ToBaseUnits(req.Amount, orDecimals(req.Brand.Decimals, 9))
	if err != nil {
		return UnsignedTx{}, err
	}
	coins, err := c.fundingCoins(ctx, req.Sender, req.Brand.CoinType, amount, "virtual asset")
	if err != nil {
		return UnsignedTx{}, err
	}
	return c.moveCall(ctx, req.Sender, req.Brand, fn, []any{coinIDs(coins), amount.String()})
}

func (c *RPCClient) BuildClaim(ctx context.Context, req ClaimRequest) (UnsignedTx, error) {
	if err := checkBrand(req.Brand); err != nil {
		return UnsignedTx{}, err
	}
	if req.Brand.ClaimFunction == "" {
		return UnsignedTx{}, txerr.New(txerr.KindClaimUnsupported, "claim is not supported for %s", req.Brand.DisplayName)
	}
	return c.moveCall(ctx, req.Sender, req.Brand, req.Brand.ClaimFunction, []any{})
}

func (c *RPCClient) fundingCoins(ctx context.Context, owner, coinType string, need *big.Int, label string) ([]Coin, error) {
	coins, err := c.Coins(ctx, owner, coinType)
	if err != nil {
		return nil, err
	}
	if len(coins) == 0 {
		return nil, txerr.New(txerr.KindInsufficientBalance, "No %s coins found in wallet", label)
	}
	if total := SumCoins(coins); total.Cmp(need) < 0 {
		return nil, txerr.New(txerr.KindInsufficientBalance, "Insufficient %s balance: have %s, need %s", label, total, need)
	}
	return coins, nil
}

func (c *RPCClient) moveCall(ctx context.Context, sender string, brand config.Brand, function string, args []any) (UnsignedTx, error) {
	var resp txBytesResponse
	err := c.rpc.CallContext(ctx, &resp, "unsafe_moveCall",
		sender,
		brand.PackageID(),
		brand.Module,
		function,
		[]string{},
		args,
		nil,
		strconv.FormatUint(c.gasBudget, 10),
	)
	if err != nil {
		return UnsignedTx{}, fmt.Errorf("build %s tx: %w", function, err)
	}
	raw, err := base64.StdEncoding.DecodeString(resp.TxBytes)
	if err != nil {
		return UnsignedTx{}, fmt.Errorf("decode tx bytes: %w", err)
	}
	return UnsignedTx{Bytes: raw}, nil
}

// ExecuteSigned submits signed transaction bytes and waits for local execution.
func (c *RPCClient) ExecuteSigned(ctx context.Context, txBytes []byte, signature string) (string, error) {
	var resp txBlockResponse
	err := c.rpc.CallContext(ctx, &resp, "sui_executeTransactionBlock",
		base64.StdEncoding.EncodeToString(txBytes),
		[]string{signature},
		map[string]bool{"showEffects": true},
		"WaitForLocalExecution",
	)
	if err != nil {
		return "", fmt.Errorf("execute transaction: %w", err)
	}
	if resp.Effects != nil && resp.Effects.Status.Status == "failure" {
		return "", effectsError(resp.Effects.Status.Error)
	}
	return resp.Digest, nil
}

func (c *RPCClient) TransactionStatus(ctx context.Context, digest string) (TxStatus, error) {
	var resp txBlockResponse
	err := c.rpc.CallContext(ctx, &resp, "sui_getTransactionBlock", digest, map[string]bool{"showEffects": true})
	if err != nil {
		if strings.Contains(err.Error(), "Could not find") {
			return TxStatus{Digest: digest}, nil
		}
		return TxStatus{}, fmt.Errorf("get transaction: %w", err)
	}
	st := TxStatus{Digest: digest, Found: true}
	if resp.Effects != nil {
		st.Success = resp.Effects.Status.Status == "success"
		st.Error = resp.Effects.Status.Error
	}
	return st, nil
}

func (c *RPCClient) Ping(ctx context.Context) error {
	var seq string
	return c.rpc.CallContext(ctx, &seq, "sui_getLatestCheckpointSequenceNumber")
}

func checkBrand(b config.Brand) error {
	if !b.IsConfigured() {
		return txerr.New(txerr.KindNotConfigured, "%s has no configured coin type", b.DisplayName)
	}
	if b.Module == "" {
		return txerr.New(txerr.KindNotConfigured, "%s has no configured Move module", b.DisplayName)
	}
	return nil
}

func redeemFunction(b config.Brand, mode config.RedeemMode) (string, error) {
	if !b.SupportsMode(mode) {
		return "", txerr.New(txerr.KindUnsupportedMode, "%s does not support %s redemption", b.DisplayName, mode)
	}
	if mode == config.RedeemTPlus1 {
		return "redeem_t_plus_1", nil
	}
	return "redeem_instant", nil
}

// effectsError types the execution failure reported in transaction effects.
func effectsError(msg string) error {
	switch {
	case strings.HasPrefix(msg, "InsufficientGas"):
		return txerr.New(txerr.KindInsufficientGas, "%s", msg)
	case strings.HasPrefix(msg, "InsufficientCoinBalance"):
		return txerr.New(txerr.KindInsufficientBalance, "%s", msg)
	default:
		return txerr.New(txerr.Classify(msg).Kind, "%s", msg)
	}
}

func coinIDs(coins []Coin) []string {
	ids := make([]string, len(coins))
	for i, c := range coins {
		ids[i] = c.CoinObjectID
	}
	return ids
}
