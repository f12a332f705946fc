package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"stabletrade/internal/config"
	"stabletrade/internal/settlement"
	"stabletrade/internal/store"
	"stabletrade/internal/sui"
	"stabletrade/internal/txflow"
)

// Chain is the set of collaborators for one network.
type Chain struct {
	Client    sui.Client
	Submitter sui.Submitter
	// Sender is the account address transactions are built for.
	Sender string
	// Close releases the connection, if any.
	Close func()
}

// ChainFactory dials the collaborators for network n.
type ChainFactory func(ctx context.Context, n config.Network) (Chain, error)

var txActions = []store.Action{store.ActionBuy, store.ActionSell, store.ActionClaim}

// session holds one network's chain plus an executor per action.
type session struct {
	network   config.Network
	chain     Chain
	executors map[store.Action]*txflow.Executor
	tracker   *settlement.Tracker
}

type sessionPool struct {
	factory   ChainFactory
	metrics   *metricsRegistry
	logger    *zap.Logger
	threshold time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

func newSessionPool(factory ChainFactory, metrics *metricsRegistry, logger *zap.Logger, threshold time.Duration) *sessionPool {
	return &sessionPool{
		factory:   factory,
		metrics:   metrics,
		logger:    logger,
		threshold: threshold,
		sessions:  make(map[string]*session),
	}
}

// get returns the session for n, dialing it on first use.
func (p *sessionPool) get(ctx context.Context, n config.Network) (*session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.sessions[n.Key]; ok {
		return s, nil
	}

	chain, err := p.factory(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", n.Key, err)
	}
	s := &session{
		network:   n,
		chain:     chain,
		executors: make(map[store.Action]*txflow.Executor, len(txActions)),
		tracker:   settlement.NewTracker(chain.Client, p.threshold, p.logger),
	}
	for _, action := range txActions {
		s.executors[action] = txflow.NewExecutor(chain.Submitter,
			p.metrics.observer(string(action)),
			logObserver(p.logger, n.Key, string(action)),
		)
	}
	p.sessions[n.Key] = s
	p.logger.Info("chain session opened", zap.String("network", n.Key), zap.String("sender", chain.Sender))
	return s, nil
}

func (p *sessionPool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, s := range p.sessions {
		if s.chain.Close != nil {
			s.chain.Close()
		}
		delete(p.sessions, key)
	}
}

func logObserver(logger *zap.Logger, network, action string) txflow.Observer {
	return txflow.ObserverFunc(func(from, to txflow.State) {
		logger.Debug("executor transition",
			zap.String("network", network),
			zap.String("action", action),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
	})
}
