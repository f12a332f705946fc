package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stabletrade/internal/config"
	"stabletrade/internal/guided"
	"stabletrade/internal/settlement"
	"stabletrade/internal/store"
	"stabletrade/internal/sui"
	"stabletrade/internal/txerr"
)

type historyItem struct {
	store.Record
	ExplorerURL    string                `json:"explorerUrl,omitempty"`
	Classification *txerr.Classification `json:"classification,omitempty"`
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.history.List(r.Context())
	if err != nil {
		s.logger.Error("list history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}

	q := r.URL.Query()
	network, brand, action := q.Get("network"), q.Get("brand"), q.Get("action")

	items := make([]historyItem, 0, len(records))
	for _, rec := range records {
		if (network != "" && rec.Network != network) ||
			(brand != "" && rec.BrandKey != brand) ||
			(action != "" && string(rec.Action) != action) {
			continue
		}
		item := historyItem{Record: rec}
		if rec.Digest != "" {
			if n, err := config.LookupNetwork(rec.Network); err == nil {
				item.ExplorerURL = n.ExplorerLink(rec.Digest)
			}
		}
		if rec.Status == store.StatusError {
			cls := txerr.ClassifyResult(txerr.Kind(rec.ErrorKind), rec.Error)
			item.Classification = &cls
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.history.Clear(r.Context()); err != nil {
		s.logger.Error("clear history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to clear history")
		return
	}
	s.refreshGauges(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

type pendingItem struct {
	store.PendingOrder
	Settlement settlement.Status `json:"settlement"`
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orders, err := s.pending.List(ctx)
	if err != nil {
		s.logger.Error("list pending orders", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read pending orders")
		return
	}

	now := s.now()
	trackers := make(map[string]*settlement.Tracker)
	items := make([]pendingItem, 0, len(orders))
	for _, o := range orders {
		tr, ok := trackers[o.Network]
		if !ok {
			tr = s.trackerFor(ctx, o.Network)
			trackers[o.Network] = tr
		}
		items = append(items, pendingItem{PendingOrder: o, Settlement: tr.Status(ctx, o, now)})
	}
	writeJSON(w, http.StatusOK, items)
}

// trackerFor falls back to a chain-less tracker when the network cannot be
// reached, so the elapsed-time view still works.
func (s *Server) trackerFor(ctx context.Context, networkKey string) *settlement.Tracker {
	if n, err := config.LookupNetwork(networkKey); err == nil {
		if sess, err := s.sessions.get(ctx, n); err == nil {
			return sess.tracker
		}
	}
	return settlement.NewTracker(nil, s.cfg.Settlement.Threshold, s.logger)
}

func (s *Server) handleRemovePending(w http.ResponseWriter, r *http.Request) {
	if err := s.pending.Remove(r.Context(), r.PathValue("digest")); err != nil {
		s.logger.Error("remove pending order", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to remove pending order")
		return
	}
	s.refreshGauges(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

type balancesResponse struct {
	Address  string       `json:"address"`
	Network  string       `json:"network"`
	Brand    string       `json:"brand"`
	Balances sui.Balances `json:"balances"`
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	resp, err := s.balances(r.Context())
	if err != nil {
		s.logger.Warn("fetch balances", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) balances(ctx context.Context) (balancesResponse, error) {
	n, b, err := s.resolve()
	if err != nil {
		return balancesResponse{}, err
	}
	sess, err := s.sessions.get(ctx, n)
	if err != nil {
		return balancesResponse{}, err
	}
	bal, err := sui.FetchBalances(ctx, sess.chain.Client, sess.chain.Sender, n, b)
	if err != nil {
		return balancesResponse{}, err
	}
	return balancesResponse{Address: sess.chain.Sender, Network: n.Key, Brand: b.Key, Balances: bal}, nil
}

type guidedResponse struct {
	Steps   []guided.Step  `json:"steps"`
	Current guided.StepKey `json:"current"`
}

func (s *Server) handleGuidedFlow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	funding := decimal.Zero
	if bal, err := s.balances(ctx); err != nil {
		s.logger.Warn("guided flow balance unavailable", zap.Error(err))
	} else {
		funding = bal.Balances.USDC.Amount
	}

	history, err := s.history.List(ctx)
	if err != nil {
		s.logger.Error("list history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}

	steps := guided.Derive(funding, history)
	writeJSON(w, http.StatusOK, guidedResponse{Steps: steps, Current: guided.CurrentStep(steps)})
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.products.List(r.Context())
	if err != nil {
		s.logger.Error("list products", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read products")
		return
	}
	if r.URL.Query().Get("listed") == "true" {
		listed := products[:0:0]
		for _, p := range products {
			if p.IsListed {
				listed = append(listed, p)
			}
		}
		products = listed
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var params store.CreateProductParams
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json payload")
		return
	}

	ctx := r.Context()
	creator := ""
	if n, _, err := s.resolve(); err == nil {
		if sess, err := s.sessions.get(ctx, n); err == nil {
			creator = sess.chain.Sender
		}
	}

	p, err := s.products.Add(ctx, creator, params)
	if err != nil {
		s.writeProductError(w, err)
		return
	}
	s.refreshGauges(ctx)
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var upd store.ProductUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json payload")
		return
	}
	p, err := s.products.Update(r.Context(), r.PathValue("id"), upd)
	if err != nil {
		s.writeProductError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.products.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeProductError(w, err)
		return
	}
	s.refreshGauges(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeProductError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrProductNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidProduct):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("product store", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update products")
	}
}

func (s *Server) handleGetSelection(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.currentSelection())
}

// handlePutSelection switches network and/or brand. Empty fields keep the
// current value.
func (s *Server) handlePutSelection(w http.ResponseWriter, r *http.Request) {
	var req Selection
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json payload")
		return
	}

	s.selMu.Lock()
	next := s.selection
	if req.Network != "" {
		next.Network = req.Network
	}
	if req.Brand != "" {
		next.Brand = req.Brand
	}
	if _, err := config.LookupNetwork(next.Network); err != nil {
		s.selMu.Unlock()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := config.LookupBrand(s.cfg.Brands, next.Brand); err != nil {
		s.selMu.Unlock()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.selection = next
	s.selMu.Unlock()

	s.logger.Info("selection changed", zap.String("network", next.Network), zap.String("brand", next.Brand))
	writeJSON(w, http.StatusOK, next)
}

type brandInfo struct {
	config.Brand
	Configured bool `json:"configured"`
}

type configResponse struct {
	Networks                   []config.Network `json:"networks"`
	Brands                     []brandInfo      `json:"brands"`
	Selection                  Selection        `json:"selection"`
	SettlementThresholdSeconds int              `json:"settlementThresholdSeconds"`
	ProductTags                []string         `json:"productTags"`
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	brands := make([]brandInfo, 0, len(s.cfg.Brands))
	for _, b := range s.cfg.Brands {
		brands = append(brands, brandInfo{Brand: b, Configured: b.IsConfigured()})
	}
	writeJSON(w, http.StatusOK, configResponse{
		Networks:                   config.Networks(),
		Brands:                     brands,
		Selection:                  s.currentSelection(),
		SettlementThresholdSeconds: int(s.cfg.Settlement.Threshold / time.Second),
		ProductTags:                store.ProductTags,
	})
}

// refreshGauges re-reads list sizes after a mutation.
func (s *Server) refreshGauges(ctx context.Context) {
	if records, err := s.history.List(ctx); err == nil {
		s.metrics.setHistory(len(records))
	}
	if orders, err := s.pending.List(ctx); err == nil {
		s.metrics.setPending(len(orders))
	}
	if products, err := s.products.List(ctx); err == nil {
		s.metrics.setProducts(len(products))
	}
}
