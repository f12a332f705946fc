// Package sui is the boundary to the chain: transaction building through
// the fullnode, balance and status queries, and signing/submission.
package sui

import (
	"context"
	"math/big"

	"stabletrade/internal/config"
)

// UnsignedTx is a node-built transaction awaiting a signature.
type UnsignedTx struct {
	// Bytes is the BCS-encoded TransactionData as returned by the node.
	Bytes []byte
}

// Coin is one owned coin object.
type Coin struct {
	CoinType     string
	CoinObjectID string
	Balance      *big.Int
}

// TxStatus is the execution outcome of a submitted transaction.
type TxStatus struct {
	Digest  string
	Found   bool
	Success bool
	Error   string
}

type BuyRequest struct {
	Sender  string
	Network config.Network
	Brand   config.Brand
	// Amount is a decimal string in USDC units.
	Amount string
}

type SellRequest struct {
	Sender  string
	Network config.Network
	Brand   config.Brand
	// Amount is a decimal string in brand units.
	Amount string
	Mode   config.RedeemMode
}

type ClaimRequest struct {
	Sender  string
	Network config.Network
	Brand   config.Brand
}

// Builder produces unsigned transactions for the marketplace actions.
type Builder interface {
	BuildBuy(ctx context.Context, req BuyRequest) (UnsignedTx, error)
	BuildSell(ctx context.Context, req SellRequest) (UnsignedTx, error)
	BuildClaim(ctx context.Context, req ClaimRequest) (UnsignedTx, error)
}

// Submitter signs and executes a built transaction, returning its digest.
type Submitter interface {
	SignAndExecute(ctx context.Context, tx UnsignedTx) (string, error)
}

// CoinReader lists the coins an owner holds of one type.
type CoinReader interface {
	Coins(ctx context.Context, owner, coinType string) ([]Coin, error)
}

// StatusReader looks up a submitted transaction.
type StatusReader interface {
	TransactionStatus(ctx context.Context, digest string) (TxStatus, error)
}

// Client is everything the server needs from one network.
type Client interface {
	Builder
	CoinReader
	StatusReader
	Ping(ctx context.Context) error
}
