package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stabletrade/internal/config"
	"stabletrade/internal/store"
	"stabletrade/internal/sui"
	"stabletrade/internal/txerr"
	"stabletrade/internal/txflow"
)

const executeTimeout = 2 * time.Minute

type txRequest struct {
	Amount string `json:"amount"`
	Mode   string `json:"mode"`
}

type txResponse struct {
	Action      store.Action          `json:"action"`
	Network     string                `json:"network"`
	Brand       string                `json:"brand"`
	Execution   txflow.Snapshot       `json:"execution"`
	Digest      string                `json:"digest,omitempty"`
	ExplorerURL string                `json:"explorerUrl,omitempty"`
	Pending     bool                  `json:"pending,omitempty"`
	Error       *txerr.Classification `json:"error,omitempty"`
}

// txIntent is a validated request for one action on the current selection.
type txIntent struct {
	action  store.Action
	network config.Network
	brand   config.Brand
	amount  string
	mode    config.RedeemMode
}

func (t txIntent) recordParams(digest string) store.RecordParams {
	return store.RecordParams{
		Digest:   digest,
		Network:  t.network.Key,
		BrandKey: t.brand.Key,
		Action:   t.action,
		Amount:   t.displayAmount(),
	}
}

func (t txIntent) displayAmount() string {
	switch t.action {
	case store.ActionBuy:
		return t.amount + " USDC"
	case store.ActionSell:
		return t.amount + " " + t.brand.DisplayName
	}
	return ""
}

func (t txIntent) build(sess *session) txflow.BuildFunc {
	sender := sess.chain.Sender
	client := sess.chain.Client
	return func(ctx context.Context) (sui.UnsignedTx, error) {
		switch t.action {
		case store.ActionBuy:
			return client.BuildBuy(ctx, sui.BuyRequest{Sender: sender, Network: t.network, Brand: t.brand, Amount: t.amount})
		case store.ActionSell:
			return client.BuildSell(ctx, sui.SellRequest{Sender: sender, Network: t.network, Brand: t.brand, Amount: t.amount, Mode: t.mode})
		default:
			return client.BuildClaim(ctx, sui.ClaimRequest{Sender: sender, Network: t.network, Brand: t.brand})
		}
	}
}

func parseAction(r *http.Request) (store.Action, bool) {
	action := store.Action(r.PathValue("action"))
	return action, slices.Contains(txActions, action)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	action, ok := parseAction(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown action")
		return
	}

	var payload txRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json payload")
		return
	}

	intent, err := s.newIntent(action, payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// A signed transaction may land after the client goes away, so the run
	// and its history record outlive the request.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), executeTimeout)
	defer cancel()
	sess, err := s.sessions.get(ctx, intent.network)
	if err != nil {
		s.logger.Error("open chain session", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	exec := sess.executors[action]

	digest, err := exec.Execute(ctx, intent.build(sess))
	resp := txResponse{
		Action:  action,
		Network: intent.network.Key,
		Brand:   intent.brand.Key,
	}

	switch {
	case errors.Is(err, txflow.ErrInProgress), errors.Is(err, txflow.ErrSuperseded):
		reason := "superseded"
		if errors.Is(err, txflow.ErrInProgress) {
			reason = string(txerr.KindInProgress)
		}
		s.metrics.incRejected(string(action), reason)
		cls := txerr.ClassifyError(err)
		resp.Execution = exec.Snapshot()
		resp.Error = &cls
		writeJSON(w, http.StatusConflict, resp)
		return

	case err != nil:
		cls := txerr.ClassifyError(err)
		s.recordFailure(ctx, intent, err, cls)
		resp.Execution = exec.Snapshot()
		resp.Error = &cls
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}

	resp.Pending = s.recordSuccess(ctx, intent, digest)
	resp.Execution = exec.Snapshot()
	resp.Digest = digest
	resp.ExplorerURL = intent.network.ExplorerLink(digest)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) newIntent(action store.Action, req txRequest) (txIntent, error) {
	n, b, err := s.resolve()
	if err != nil {
		return txIntent{}, err
	}
	intent := txIntent{action: action, network: n, brand: b, amount: req.Amount}

	if action == store.ActionBuy || action == store.ActionSell {
		amt, err := decimal.NewFromString(req.Amount)
		if err != nil || !amt.IsPositive() {
			return txIntent{}, errors.New("amount must be a positive decimal")
		}
	}
	if action == store.ActionSell {
		mode, err := config.ParseRedeemMode(req.Mode)
		if err != nil {
			return txIntent{}, err
		}
		intent.mode = mode
	}
	return intent, nil
}

// recordSuccess appends history and, for delayed redemptions, a pending
// order. It reports whether a pending order was added.
func (s *Server) recordSuccess(ctx context.Context, intent txIntent, digest string) bool {
	s.metrics.incTransaction(string(intent.action), string(store.StatusSuccess), "none")
	s.logger.Info("transaction executed",
		zap.String("action", string(intent.action)),
		zap.String("network", intent.network.Key),
		zap.String("brand", intent.brand.Key),
		zap.String("digest", digest),
	)

	if err := s.history.Append(ctx, store.NewSuccessRecord(intent.recordParams(digest), s.now())); err != nil {
		s.logger.Error("append history", zap.Error(err))
	}

	pending := false
	if intent.action == store.ActionSell && intent.mode == config.RedeemTPlus1 {
		order := store.PendingOrder{
			Digest:        digest,
			Time:          s.now().UnixMilli(),
			Network:       intent.network.Key,
			BrandKey:      intent.brand.Key,
			Amount:        intent.displayAmount(),
			BrandCoinType: intent.brand.CoinType,
		}
		if err := s.pending.Add(ctx, order); err != nil {
			s.logger.Error("add pending order", zap.Error(err))
		} else {
			pending = true
		}
	}
	s.refreshGauges(ctx)
	return pending
}

func (s *Server) recordFailure(ctx context.Context, intent txIntent, err error, cls txerr.Classification) {
	s.metrics.incTransaction(string(intent.action), string(store.StatusError), string(cls.Kind))
	s.logger.Warn("transaction failed",
		zap.String("action", string(intent.action)),
		zap.String("network", intent.network.Key),
		zap.String("brand", intent.brand.Key),
		zap.String("kind", string(cls.Kind)),
		zap.Error(err),
	)

	msg := err.Error()
	if msg == "" {
		msg = "Unknown error"
	}
	rec := store.NewErrorRecord(intent.recordParams(""), msg, string(cls.Kind), s.now())
	if err := s.history.Append(ctx, rec); err != nil {
		s.logger.Error("append history", zap.Error(err))
	}
	s.refreshGauges(ctx)
}

func (s *Server) handleTxState(w http.ResponseWriter, r *http.Request) {
	exec, ok := s.executorFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, exec.Snapshot())
}

func (s *Server) handleTxReset(w http.ResponseWriter, r *http.Request) {
	exec, ok := s.executorFor(w, r)
	if !ok {
		return
	}
	exec.Reset()
	writeJSON(w, http.StatusOK, exec.Snapshot())
}

func (s *Server) executorFor(w http.ResponseWriter, r *http.Request) (*txflow.Executor, bool) {
	action, ok := parseAction(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown action")
		return nil, false
	}
	n, _, err := s.resolve()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	sess, err := s.sessions.get(r.Context(), n)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return nil, false
	}
	return sess.executors[action], true
}

// decodeJSON accepts an empty body as the zero value.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
