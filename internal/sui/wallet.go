package sui

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const ed25519Flag byte = 0x00

// transactionIntent is the intent prefix for TransactionData: scope 0,
// version 0, app id 0.
var transactionIntent = []byte{0, 0, 0}

// Executor submits signed bytes. *RPCClient implements it.
type Executor interface {
	ExecuteSigned(ctx context.Context, txBytes []byte, signature string) (string, error)
}

// Wallet is a local ed25519 keypair that signs node-built transactions and
// submits them.
type Wallet struct {
	key     ed25519.PrivateKey
	node    Executor
	address string
}

// NewWallet loads a 32-byte hex ed25519 seed.
func NewWallet(node Executor, seedHex string) (*Wallet, error) {
	seed, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(seedHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("parse private key: want %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	key := ed25519.NewKeyFromSeed(seed)
	pub := key.Public().(ed25519.PublicKey)
	return &Wallet{key: key, node: node, address: DeriveAddress(pub)}, nil
}

// Address returns the 0x-prefixed account address of the key.
func (w *Wallet) Address() string {
	return w.address
}

// Sign returns the serialized signature (flag || sig || pubkey, base64)
// over blake2b-256(intent || txBytes).
func (w *Wallet) Sign(txBytes []byte) string {
	msg := make([]byte, 0, len(transactionIntent)+len(txBytes))
	msg = append(msg, transactionIntent...)
	msg = append(msg, txBytes...)
	digest := blake2b.Sum256(msg)

	sig := ed25519.Sign(w.key, digest[:])
	pub := w.key.Public().(ed25519.PublicKey)

	out := make([]byte, 0, 1+len(sig)+len(pub))
	out = append(out, ed25519Flag)
	out = append(out, sig...)
	out = append(out, pub...)
	return base64.StdEncoding.EncodeToString(out)
}

func (w *Wallet) SignAndExecute(ctx context.Context, tx UnsignedTx) (string, error) {
	if len(tx.Bytes) == 0 {
		return "", fmt.Errorf("empty transaction")
	}
	return w.node.ExecuteSigned(ctx, tx.Bytes, w.Sign(tx.Bytes))
}

// DeriveAddress hashes flag || pubkey with blake2b-256.
func DeriveAddress(pub ed25519.PublicKey) string {
	buf := make([]byte, 0, 1+len(pub))
	buf = append(buf, ed25519Flag)
	buf = append(buf, pub...)
	sum := blake2b.Sum256(buf)
	return "0x" + hex.EncodeToString(sum[:])
}
