package server

import (
	"context"
	"net/http"
	"time"
)

type rpcHealth struct {
	Network   string  `json:"network"`
	Connected bool    `json:"connected"`
	LatencyMs float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

type storeHealth struct {
	Backend   string `json:"backend"`
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

type healthResponse struct {
	Status        string      `json:"status"`
	RPC           rpcHealth   `json:"rpc"`
	Store         storeHealth `json:"store"`
	HistoryDepth  int         `json:"history_depth"`
	PendingOrders int         `json:"pending_orders"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	overallHealthy := true

	rpcInfo := s.checkRPC(ctx)
	if !rpcInfo.Connected {
		overallHealthy = false
	}

	dbInfo := storeHealth{Backend: s.cfg.Store.Backend, Connected: true}
	if s.dbHealthFn != nil {
		dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.dbHealthFn(dbCtx); err != nil {
			dbInfo.Connected = false
			dbInfo.Error = err.Error()
			overallHealthy = false
		}
	}

	resp := healthResponse{Status: "healthy", RPC: rpcInfo, Store: dbInfo}
	if records, err := s.history.List(ctx); err == nil {
		resp.HistoryDepth = len(records)
	}
	if orders, err := s.pending.List(ctx); err == nil {
		resp.PendingOrders = len(orders)
	}

	status := http.StatusOK
	if !overallHealthy {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) checkRPC(ctx context.Context) rpcHealth {
	n, _, err := s.resolve()
	if err != nil {
		return rpcHealth{Error: err.Error()}
	}
	info := rpcHealth{Network: n.Key}

	start := time.Now()
	rpcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	sess, err := s.sessions.get(rpcCtx, n)
	if err == nil {
		err = sess.chain.Client.Ping(rpcCtx)
	}
	if err != nil {
		info.Error = err.Error()
		return info
	}
	info.Connected = true
	info.LatencyMs = float64(time.Since(start).Microseconds()) / 1000.0
	return info
}
