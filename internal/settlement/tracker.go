// Package settlement reports whether delayed redemptions have settled.
package settlement

import (
	"context"
	"time"

	"go.uber.org/zap"

	"stabletrade/internal/store"
	"stabletrade/internal/sui"
)

// DefaultThreshold is how long a delayed redemption is assumed pending
// after its submission landed.
const DefaultThreshold = time.Minute

// Source tells whether the chain confirmed the submission or could not be
// asked.
type Source string

const (
	SourceChain     Source = "chain"
	SourceHeuristic Source = "heuristic"
)

// Status is the settlement view of one pending order. Confirmed means the
// redemption request executed on chain; settlement itself happens in a
// later cycle and is only estimated by elapsed time.
type Status struct {
	Digest    string        `json:"digest"`
	Confirmed bool          `json:"confirmed"`
	Complete  bool          `json:"complete"`
	Failed    bool          `json:"failed,omitempty"`
	Error     string        `json:"error,omitempty"`
	Source    Source        `json:"source"`
	Elapsed   time.Duration `json:"-"`
	ElapsedMs int64         `json:"elapsedMs"`
}

// Tracker never removes orders; callers decide what to do with the view.
type Tracker struct {
	reader    sui.StatusReader
	threshold time.Duration
	logger    *zap.Logger
}

func NewTracker(reader sui.StatusReader, threshold time.Duration, logger *zap.Logger) *Tracker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{reader: reader, threshold: threshold, logger: logger}
}

// Status checks the submission on chain when possible. A failed submission
// never completes. Otherwise completion is estimated from elapsed time,
// since a successful request is not yet a settlement.
func (t *Tracker) Status(ctx context.Context, order store.PendingOrder, now time.Time) Status {
	elapsed := now.Sub(order.SubmittedAt())
	if elapsed < 0 {
		elapsed = 0
	}
	st := Status{Digest: order.Digest, Source: SourceHeuristic, Elapsed: elapsed, ElapsedMs: elapsed.Milliseconds()}

	if t.reader != nil {
		res, err := t.reader.TransactionStatus(ctx, order.Digest)
		switch {
		case err != nil:
			t.logger.Debug("settlement status query failed", zap.String("digest", order.Digest), zap.Error(err))
		case res.Found && !res.Success:
			st.Source = SourceChain
			st.Failed = true
			st.Error = res.Error
			return st
		default:
			st.Source = SourceChain
			st.Confirmed = res.Found
		}
	}

	st.Complete = elapsed >= t.threshold
	return st
}
