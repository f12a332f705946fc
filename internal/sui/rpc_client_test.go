package sui

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stabletrade/internal/config"
	"stabletrade/internal/txerr"
)

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type handlerFunc func(params []json.RawMessage) (any, *rpcError)

// fakeNode is a minimal JSON-RPC 2.0 endpoint that records calls.
type fakeNode struct {
	mu       sync.Mutex
	handlers map[string]handlerFunc
	calls    map[string][][]json.RawMessage
}

func newFakeNode(t *testing.T, handlers map[string]handlerFunc) (*fakeNode, *RPCClient) {
	t.Helper()
	n := &fakeNode{handlers: handlers, calls: make(map[string][][]json.RawMessage)}
	srv := httptest.NewServer(http.HandlerFunc(n.serve))
	t.Cleanup(srv.Close)

	cli, err := NewRPCClient(context.Background(), RPCClientConfig{URL: srv.URL, GasBudget: 1000})
	require.NoError(t, err)
	t.Cleanup(cli.Close)
	return n, cli
}

func (n *fakeNode) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage   `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	n.mu.Lock()
	n.calls[req.Method] = append(n.calls[req.Method], req.Params)
	h := n.handlers[req.Method]
	n.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if h == nil {
		resp["error"] = rpcError{Code: -32601, Message: "method not found"}
	} else if result, rerr := h(req.Params); rerr != nil {
		resp["error"] = rerr
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *fakeNode) callsTo(method string) [][]json.RawMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

var testBrand = config.Brand{
	Key:                  "gold",
	DisplayName:          "Gold",
	CoinType:             "0xabc::gold::GOLD",
	Decimals:             9,
	SupportedRedeemModes: []config.RedeemMode{config.RedeemInstant, config.RedeemTPlus1},
	Module:               "gold",
	ClaimFunction:        "claim",
}

var testNetwork = config.Network{Key: "testnet", USDCCoinType: "0xusdc::coin::COIN", USDCDecimals: 6}

func coinsHandler(pages ...map[string]any) handlerFunc {
	i := 0
	var mu sync.Mutex
	return func([]json.RawMessage) (any, *rpcError) {
		mu.Lock()
		defer mu.Unlock()
		p := pages[i%len(pages)]
		i++
		return p, nil
	}
}

func moveCallHandler(txBytes []byte) handlerFunc {
	return func([]json.RawMessage) (any, *rpcError) {
		return map[string]any{"txBytes": base64.StdEncoding.EncodeToString(txBytes)}, nil
	}
}

func TestRPCClientBuildBuy(t *testing.T) {
	node, cli := newFakeNode(t, map[string]handlerFunc{
		"suix_getCoins": coinsHandler(
			map[string]any{
				"data":        []map[string]string{{"coinType": testNetwork.USDCCoinType, "coinObjectId": "0xc1", "balance": "1500000"}},
				"nextCursor":  "0xc1",
				"hasNextPage": true,
			},
			map[string]any{
				"data":        []map[string]string{{"coinType": testNetwork.USDCCoinType, "coinObjectId": "0xc2", "balance": "1000000"}},
				"nextCursor":  nil,
				"hasNextPage": false,
			},
		),
		"unsafe_moveCall": moveCallHandler([]byte{1, 2, 3}),
	})

	tx, err := cli.BuildBuy(context.Background(), BuyRequest{
		Sender: "0xme", Network: testNetwork, Brand: testBrand, Amount: "2.5",
	})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, tx.Bytes)

	assert.Len(t, node.callsTo("suix_getCoins"), 2)
	calls := node.callsTo("unsafe_moveCall")
	require.Len(t, calls, 1)
	params := calls[0]
	assert.JSONEq(t, `"0xme"`, string(params[0]))
	assert.JSONEq(t, `"0xabc"`, string(params[1]))
	assert.JSONEq(t, `"gold"`, string(params[2]))
	assert.JSONEq(t, `"mint"`, string(params[3]))
	assert.JSONEq(t, `[["0xc1","0xc2"],"2500000"]`, string(params[5]))
	assert.JSONEq(t, `null`, string(params[6]))
	assert.JSONEq(t, `"1000"`, string(params[7]))
}

func TestRPCClientBuildBuyWithoutCoins(t *testing.T) {
	node, cli := newFakeNode(t, map[string]handlerFunc{
		"suix_getCoins": coinsHandler(map[string]any{"data": []any{}, "hasNextPage": false}),
	})

	_, err := cli.BuildBuy(context.Background(), BuyRequest{
		Sender: "0xme", Network: testNetwork, Brand: testBrand, Amount: "1",
	})
	require.Error(t, err)
	assert.Equal(t, txerr.KindInsufficientBalance, txerr.KindOf(err))
	assert.Contains(t, err.Error(), "No USDC coins found in wallet")
	assert.Empty(t, node.callsTo("unsafe_moveCall"))
}

func TestRPCClientBuildSellModes(t *testing.T) {
	node, cli := newFakeNode(t, map[string]handlerFunc{
		"suix_getCoins": coinsHandler(map[string]any{
			"data":        []map[string]string{{"coinType": testBrand.CoinType, "coinObjectId": "0xb1", "balance": "5000000000"}},
			"hasNextPage": false,
		}),
		"unsafe_moveCall": moveCallHandler([]byte{9}),
	})

	_, err := cli.BuildSell(context.Background(), SellRequest{
		Sender: "0xme", Network: testNetwork, Brand: testBrand, Amount: "1.5", Mode: config.RedeemTPlus1,
	})
	require.NoError(t, err)
	params := node.callsTo("unsafe_moveCall")[0]
	assert.JSONEq(t, `"redeem_t_plus_1"`, string(params[3]))
	assert.JSONEq(t, `[["0xb1"],"1500000000"]`, string(params[5]))

	instantOnly := testBrand
	instantOnly.SupportedRedeemModes = []config.RedeemMode{config.RedeemInstant}
	_, err = cli.BuildSell(context.Background(), SellRequest{
		Sender: "0xme", Network: testNetwork, Brand: instantOnly, Amount: "1", Mode: config.RedeemTPlus1,
	})
	assert.Equal(t, txerr.KindUnsupportedMode, txerr.KindOf(err))
}

func TestRPCClientBuildSellOverBalance(t *testing.T) {
	_, cli := newFakeNode(t, map[string]handlerFunc{
		"suix_getCoins": coinsHandler(map[string]any{
			"data":        []map[string]string{{"coinType": testBrand.CoinType, "coinObjectId": "0xb1", "balance": "10"}},
			"hasNextPage": false,
		}),
	})
	_, err := cli.BuildSell(context.Background(), SellRequest{
		Sender: "0xme", Network: testNetwork, Brand: testBrand, Amount: "1", Mode: config.RedeemInstant,
	})
	assert.Equal(t, txerr.KindInsufficientBalance, txerr.KindOf(err))
}

func TestRPCClientBuildClaim(t *testing.T) {
	node, cli := newFakeNode(t, map[string]handlerFunc{
		"unsafe_moveCall": moveCallHandler([]byte{7}),
	})

	_, err := cli.BuildClaim(context.Background(), ClaimRequest{Sender: "0xme", Network: testNetwork, Brand: testBrand})
	require.NoError(t, err)
	assert.JSONEq(t, `"claim"`, string(node.callsTo("unsafe_moveCall")[0][3]))

	noClaim := testBrand
	noClaim.ClaimFunction = ""
	_, err = cli.BuildClaim(context.Background(), ClaimRequest{Sender: "0xme", Network: testNetwork, Brand: noClaim})
	assert.Equal(t, txerr.KindClaimUnsupported, txerr.KindOf(err))

	unconfigured := config.DefaultBrands()[0]
	_, err = cli.BuildClaim(context.Background(), ClaimRequest{Sender: "0xme", Network: testNetwork, Brand: unconfigured})
	assert.Equal(t, txerr.KindNotConfigured, txerr.KindOf(err))
}

func TestRPCClientBuildErrorIsUntyped(t *testing.T) {
	_, cli := newFakeNode(t, map[string]handlerFunc{
		"unsafe_moveCall": func([]json.RawMessage) (any, *rpcError) {
			return nil, &rpcError{Code: -32000, Message: "Cannot find gas coin for signer address"}
		},
	})
	_, err := cli.BuildClaim(context.Background(), ClaimRequest{Sender: "0xme", Network: testNetwork, Brand: testBrand})
	require.Error(t, err)
	assert.Equal(t, txerr.Kind(""), txerr.KindOf(err))
	assert.Equal(t, txerr.KindInsufficientGas, txerr.ClassifyError(err).Kind)
}

func TestWalletSignAndExecute(t *testing.T) {
	seed := "0x" + "01" + "02030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20"
	node, cli := newFakeNode(t, map[string]handlerFunc{
		"sui_executeTransactionBlock": func([]json.RawMessage) (any, *rpcError) {
			return map[string]any{"digest": "Dgst1", "effects": map[string]any{"status": map[string]string{"status": "success"}}}, nil
		},
	})
	w, err := NewWallet(cli, seed)
	require.NoError(t, err)
	assert.Len(t, w.Address(), 66)

	digest, err := w.SignAndExecute(context.Background(), UnsignedTx{Bytes: []byte{0xAA, 0xBB}})
	require.NoError(t, err)
	assert.Equal(t, "Dgst1", digest)

	params := node.callsTo("sui_executeTransactionBlock")[0]
	assert.JSONEq(t, `"`+base64.StdEncoding.EncodeToString([]byte{0xAA, 0xBB})+`"`, string(params[0]))
	var sigs []string
	require.NoError(t, json.Unmarshal(params[1], &sigs))
	require.Len(t, sigs, 1)
	assert.Equal(t, w.Sign([]byte{0xAA, 0xBB}), sigs[0])
	assert.JSONEq(t, `"WaitForLocalExecution"`, string(params[3]))
}

func TestWalletSignatureVerifies(t *testing.T) {
	w, err := NewWallet(nil, "1f1e1d1c1b1a191817161514131211100f0e0d0c0b0a09080706050403020100")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(w.Sign([]byte("tx")))
	require.NoError(t, err)
	require.Len(t, raw, 1+ed25519.SignatureSize+ed25519.PublicKeySize)
	assert.Equal(t, ed25519Flag, raw[0])

	sig := raw[1 : 1+ed25519.SignatureSize]
	pub := ed25519.PublicKey(raw[1+ed25519.SignatureSize:])
	assert.Equal(t, DeriveAddress(pub), w.Address())

	_, err = NewWallet(nil, "abcd")
	assert.Error(t, err)
	_, err = NewWallet(nil, "zz")
	assert.Error(t, err)

	// signature covers the intent-prefixed digest, not the raw bytes
	assert.False(t, ed25519.Verify(pub, []byte("tx"), sig))
}

func TestExecuteSignedEffectsFailure(t *testing.T) {
	cases := []struct {
		msg  string
		want txerr.Kind
	}{
		{"InsufficientGas", txerr.KindInsufficientGas},
		{"InsufficientCoinBalance in cmd 0", txerr.KindInsufficientBalance},
		{"MoveAbort(MoveLocation { module: gold }, 104) in command 0", txerr.KindMoveAbort},
		{"MoveAbort(err_insufficient_deposit)", txerr.KindInsufficientDeposit},
	}
	for _, tc := range cases {
		msg, want := tc.msg, tc.want
		t.Run(msg, func(t *testing.T) {
			_, cli := newFakeNode(t, map[string]handlerFunc{
				"sui_executeTransactionBlock": func([]json.RawMessage) (any, *rpcError) {
					return map[string]any{"digest": "D", "effects": map[string]any{"status": map[string]string{"status": "failure", "error": msg}}}, nil
				},
			})
			_, err := cli.ExecuteSigned(context.Background(), []byte{1}, "sig")
			require.Error(t, err)
			assert.Equal(t, want, txerr.KindOf(err))
			assert.Equal(t, msg, err.Error())
		})
	}
}

func TestTransactionStatus(t *testing.T) {
	_, cli := newFakeNode(t, map[string]handlerFunc{
		"sui_getTransactionBlock": func(params []json.RawMessage) (any, *rpcError) {
			var digest string
			_ = json.Unmarshal(params[0], &digest)
			if digest == "missing" {
				return nil, &rpcError{Code: -32602, Message: "Could not find the referenced transaction"}
			}
			return map[string]any{"digest": digest, "effects": map[string]any{"status": map[string]string{"status": "success"}}}, nil
		},
		"sui_getLatestCheckpointSequenceNumber": func([]json.RawMessage) (any, *rpcError) {
			return "1234", nil
		},
	})

	st, err := cli.TransactionStatus(context.Background(), "D1")
	require.NoError(t, err)
	assert.True(t, st.Found)
	assert.True(t, st.Success)

	st, err = cli.TransactionStatus(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, st.Found)

	assert.NoError(t, cli.Ping(context.Background()))
}
