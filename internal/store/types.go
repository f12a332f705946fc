package store

import (
	"time"

	"github.com/google/uuid"
)

// Action is the kind of write a history record describes.
type Action string

const (
	ActionBuy   Action = "buy"
	ActionSell  Action = "sell"
	ActionClaim Action = "claim"
	ActionMint  Action = "mint"
	ActionBurn  Action = "burn"
)

// Status is the terminal outcome of a transaction.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Record is one history entry. Records are never mutated once appended.
type Record struct {
	ID       string `json:"id"`
	Digest   string `json:"digest,omitempty"`
	Time     int64  `json:"time"`
	Network  string `json:"network"`
	BrandKey string `json:"brandKey"`
	Action   Action `json:"action"`
	Status   Status `json:"status"`
	Amount   string `json:"amount,omitempty"`
	Error    string `json:"error,omitempty"`
	// ErrorKind is the typed failure category when one was known.
	ErrorKind string `json:"errorKind,omitempty"`
}

// PendingOrder is a delayed redemption awaiting settlement.
type PendingOrder struct {
	Digest        string `json:"digest"`
	Time          int64  `json:"time"`
	Network       string `json:"network"`
	BrandKey      string `json:"brandKey"`
	Amount        string `json:"amount"`
	BrandCoinType string `json:"brandCoinType"`
}

// SubmittedAt returns the order's submission time.
func (p PendingOrder) SubmittedAt() time.Time {
	return time.UnixMilli(p.Time)
}

// RecordParams carries the fields a caller supplies for a new record.
type RecordParams struct {
	Digest   string
	Network  string
	BrandKey string
	Action   Action
	Amount   string
}

// NewSuccessRecord builds a success entry stamped with now.
func NewSuccessRecord(p RecordParams, now time.Time) Record {
	return Record{
		ID:       uuid.NewString(),
		Digest:   p.Digest,
		Time:     now.UnixMilli(),
		Network:  p.Network,
		BrandKey: p.BrandKey,
		Action:   p.Action,
		Status:   StatusSuccess,
		Amount:   p.Amount,
	}
}

// NewErrorRecord builds a failure entry. Failed records carry no digest.
func NewErrorRecord(p RecordParams, errMsg, kind string, now time.Time) Record {
	return Record{
		ID:        uuid.NewString(),
		Time:      now.UnixMilli(),
		Network:   p.Network,
		BrandKey:  p.BrandKey,
		Action:    p.Action,
		Status:    StatusError,
		Amount:    p.Amount,
		Error:     errMsg,
		ErrorKind: kind,
	}
}
