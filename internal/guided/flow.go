// Package guided derives the buy → sell → claim onboarding progress from
// wallet balance and transaction history.
package guided

import (
	"github.com/shopspring/decimal"

	"stabletrade/internal/store"
)

type StepKey string

const (
	StepBuy   StepKey = "buy"
	StepSell  StepKey = "sell"
	StepClaim StepKey = "claim"
)

type StepStatus string

const (
	StatusDone    StepStatus = "done"
	StatusCurrent StepStatus = "current"
	StatusPending StepStatus = "pending"
	StatusLocked  StepStatus = "locked"
)

// Step is one entry of the progress model.
type Step struct {
	Key      StepKey    `json:"key"`
	Title    string     `json:"title"`
	Subtitle string     `json:"subtitle"`
	Status   StepStatus `json:"status"`
	// Reason explains the unmet precondition of a pending or locked step.
	Reason string `json:"disabledReason,omitempty"`
}

// Derive computes the three steps. It is pure and total.
func Derive(fundingBalance decimal.Decimal, history []store.Record) []Step {
	hasBought := succeeded(history, store.ActionBuy)
	hasSold := succeeded(history, store.ActionSell)
	hasClaimed := succeeded(history, store.ActionClaim)

	buy := StatusPending
	switch {
	case hasBought:
		buy = StatusDone
	case fundingBalance.IsPositive():
		buy = StatusCurrent
	}

	sell := StatusLocked
	switch {
	case hasSold:
		sell = StatusDone
	case hasBought:
		sell = StatusCurrent
	}

	claim := StatusLocked
	switch {
	case hasClaimed:
		claim = StatusDone
	case hasSold:
		claim = StatusCurrent
	}

	return []Step{
		{
			Key:      StepBuy,
			Title:    "Buy",
			Subtitle: "Purchase virtual goods with USDC",
			Status:   buy,
			Reason:   reason(buy, "Fund your wallet with USDC to start"),
		},
		{
			Key:      StepSell,
			Title:    "Sell",
			Subtitle: "Sell virtual goods back to USDC",
			Status:   sell,
			Reason:   reason(sell, "Complete Buy first"),
		},
		{
			Key:      StepClaim,
			Title:    "Claim",
			Subtitle: "Claim trading rewards",
			Status:   claim,
			Reason:   reason(claim, "Complete Sell first"),
		},
	}
}

// CurrentStep returns the first step marked current, defaulting to buy.
func CurrentStep(steps []Step) StepKey {
	for _, s := range steps {
		if s.Status == StatusCurrent {
			return s.Key
		}
	}
	return StepBuy
}

// CanGoTo reports whether key may be opened. Locked and unknown steps may not.
func CanGoTo(steps []Step, key StepKey) bool {
	for _, s := range steps {
		if s.Key == key {
			return s.Status != StatusLocked
		}
	}
	return false
}

func succeeded(history []store.Record, action store.Action) bool {
	for _, h := range history {
		if h.Action == action && h.Status == store.StatusSuccess {
			return true
		}
	}
	return false
}

func reason(status StepStatus, msg string) string {
	if status == StatusLocked || status == StatusPending {
		return msg
	}
	return ""
}
