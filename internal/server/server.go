package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"stabletrade/internal/config"
	"stabletrade/internal/hmacauth"
	"stabletrade/internal/kv"
	"stabletrade/internal/store"
)

type Server struct {
	cfg        *config.AppConfig
	logger     *zap.Logger
	hmac       *hmacauth.Verifier
	httpServer *http.Server
	metrics    *metricsRegistry
	sessions   *sessionPool

	history  *store.HistoryStore
	pending  *store.PendingStore
	products *store.ProductStore

	dbHealthFn func(context.Context) error
	now        func() time.Time

	selMu     sync.RWMutex
	selection Selection
}

// Selection is the active network and brand. It lives only in memory.
type Selection struct {
	Network string `json:"network"`
	Brand   string `json:"brand"`
}

func NewServer(cfg *config.AppConfig, chains ChainFactory, backend kv.Backend, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := newMetricsRegistry()

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		sessions:  newSessionPool(chains, metrics, logger, cfg.Settlement.Threshold),
		history:   store.NewHistoryStore(backend),
		pending:   store.NewPendingStore(backend),
		products:  store.NewProductStore(backend),
		now:       time.Now,
		selection: Selection{Network: cfg.Network, Brand: cfg.Brand},
	}
	s.hmac = &hmacauth.Verifier{
		Secret:  cfg.Service.HMACSecret,
		MaxSkew: cfg.Service.HMACClockSkew,
		OnReject: func(r *http.Request, err error) {
			logger.Warn("request signature rejected",
				zap.String("path", r.URL.Path),
				zap.String("request_id", r.Header.Get(requestIDHeader)),
				zap.Error(err),
			)
		},
	}

	if checker, ok := backend.(kv.Pinger); ok {
		s.dbHealthFn = checker.Ping
	}

	s.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Service.HTTPPort),
		Handler:           requestIDMiddleware(s.routes()),
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	signed := func(h http.HandlerFunc) http.Handler { return s.hmac.Middleware(h) }

	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/tx/{action}", signed(s.handleExecute))
	mux.HandleFunc("GET /api/v1/tx/{action}", s.handleTxState)
	mux.Handle("POST /api/v1/tx/{action}/reset", signed(s.handleTxReset))

	mux.HandleFunc("GET /api/v1/history", s.handleListHistory)
	mux.Handle("DELETE /api/v1/history", signed(s.handleClearHistory))
	mux.HandleFunc("GET /api/v1/pending", s.handleListPending)
	mux.Handle("DELETE /api/v1/pending/{digest}", signed(s.handleRemovePending))

	mux.HandleFunc("GET /api/v1/balances", s.handleBalances)
	mux.HandleFunc("GET /api/v1/guided-flow", s.handleGuidedFlow)

	mux.HandleFunc("GET /api/v1/products", s.handleListProducts)
	mux.Handle("POST /api/v1/products", signed(s.handleCreateProduct))
	mux.Handle("PATCH /api/v1/products/{id}", signed(s.handleUpdateProduct))
	mux.Handle("DELETE /api/v1/products/{id}", signed(s.handleDeleteProduct))

	mux.HandleFunc("GET /api/v1/selection", s.handleGetSelection)
	mux.Handle("PUT /api/v1/selection", signed(s.handlePutSelection))
	mux.HandleFunc("GET /api/v1/config", s.handleConfig)

	mux.Handle("GET /api/v1/metrics", s.metrics.handler())
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	return mux
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.logger.Info("API listening", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.sessions.close()
	return err
}

func (s *Server) currentSelection() Selection {
	s.selMu.RLock()
	defer s.selMu.RUnlock()
	return s.selection
}

// resolve maps the current selection to its static table entries.
func (s *Server) resolve() (config.Network, config.Brand, error) {
	sel := s.currentSelection()
	n, err := config.LookupNetwork(sel.Network)
	if err != nil {
		return config.Network{}, config.Brand{}, err
	}
	b, err := config.LookupBrand(s.cfg.Brands, sel.Brand)
	if err != nil {
		return config.Network{}, config.Brand{}, err
	}
	return n, b, nil
}

const requestIDHeader = "X-Request-Id"

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(requestIDHeader) == "" {
			r.Header.Set(requestIDHeader, uuid.NewString())
		}
		w.Header().Set(requestIDHeader, r.Header.Get(requestIDHeader))
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
