package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fystack/deposit-indexer/internal/recorder"
	"github.com/fystack/deposit-indexer/internal/rpc/ethereum"
	"github.com/fystack/deposit-indexer/internal/rpc/solana"
	"github.com/fystack/deposit-indexer/internal/tracker"
	"github.com/fystack/deposit-indexer/internal/watcher"
	"github.com/fystack/deposit-indexer/internal/watchlist"
	"github.com/fystack/deposit-indexer/internal/worker"
	"github.com/fystack/deposit-indexer/pkg/common/config"
	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/fystack/deposit-indexer/pkg/common/logger"
	"github.com/fystack/deposit-indexer/pkg/metrics"
)

type RunCmd struct {
	Chains []string `help:"Only run these chains (default: all configured)." name:"chain" sep:","`
}

func (c *RunCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	selected, err := c.selected(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg, metrics.NewMetrics(nil))
	defer a.close()
	if err := a.openLedger(ctx); err != nil {
		return err
	}
	if err := a.openRedis(ctx); err != nil {
		return err
	}
	if err := a.openKV(); err != nil {
		return err
	}
	if err := a.openEmitter(ctx); err != nil {
		return err
	}

	provider := watchlist.NewProvider(a.store, cfg.Services.Watchlist)
	if err := provider.Load(ctx); err != nil {
		return fmt.Errorf("initial watch-list load: %w", err)
	}

	manager := worker.NewManager(ctx)
	manager.Add(worker.TaskFunc("watchlist-refresher", provider.Run))

	rec := recorder.New(a.store, a.emitter, a.metrics)
	for _, chain := range a.chains() {
		if !selected[chain.Chain] {
			continue
		}
		tasks, err := a.chainTasks(ctx, chain, provider, rec)
		if err != nil {
			// other chains keep running
			logger.Error("Chain setup failed, skipping", "chain", chain.Name, "err", err)
			continue
		}
		manager.Add(tasks...)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Services.Port),
		Handler:           NewIndexerHTTPHandler(version, provider, a.store).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "err", err)
		}
	}()
	manager.OnStop("http server", func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	manager.Start()
	logger.Info("Indexer is running... Press Ctrl+C to stop")
	<-ctx.Done()

	logger.Info("Shutting down indexer...")
	manager.Stop()
	logger.Info("Indexer stopped")
	return nil
}

func (c *RunCmd) selected(cfg *config.Config) (map[enum.Chain]bool, error) {
	out := make(map[enum.Chain]bool)
	if len(c.Chains) == 0 {
		for _, id := range enum.AllChains {
			out[id] = true
		}
		return out, nil
	}
	for _, name := range c.Chains {
		id, err := enum.ParseChain(name)
		if err != nil {
			return nil, err
		}
		if _, ok := cfg.Chains.Get(id); !ok {
			return nil, fmt.Errorf("chain %s is not configured", id)
		}
		out[id] = true
	}
	return out, nil
}

// chainTasks builds the watcher, tracker and rescanner for one chain, each
// with its own RPC handles.
func (a *app) chainTasks(ctx context.Context, chain config.ChainConfig, wl watchlist.Reader, rec recorder.Recorder) ([]worker.Task, error) {
	cur, err := a.cursorStore()
	if err != nil {
		return nil, err
	}
	failures := a.failureQueue()
	wdeps := watcher.Deps{
		Config:   chain,
		Recorder: rec,
		Cursor:   cur,
		Failures: failures,
		Metrics:  a.metrics,
	}
	tdeps := tracker.Deps{
		Config:  chain,
		Store:   a.store,
		Emitter: a.emitter,
		Metrics: a.metrics,
	}

	var (
		scanner   worker.Scanner
		processor watcher.BlockProcessor
		trk       worker.Task
	)
	switch chain.Chain {
	case enum.ChainEthereum:
		client, err := ethereum.Dial(ctx, chain)
		if err != nil {
			return nil, err
		}
		a.onClose("ethereum client", func() error { client.Close(); return nil })
		w := watcher.NewEthereumWatcher(client, wdeps)
		scanner, processor = w, w
		trk = tracker.NewEthereumTracker(client, tdeps)

	case enum.ChainSolana:
		client, err := a.solanaClient(chain)
		if err != nil {
			return nil, err
		}
		poller := tracker.NewSignaturePoller(client, chain.PollAttempts, chain.PollDelay)
		st := tracker.NewSolanaTracker(client, poller, tdeps)
		w := watcher.NewSolanaWatcher(client, watcher.SubscribeRootsAt(solana.WSEndpoint(chain)), st, wdeps)
		scanner, processor, trk = w, w, st

	case enum.ChainBitcoin:
		client, err := a.bitcoinClient(chain)
		if err != nil {
			return nil, err
		}
		scanner = watcher.NewBitcoinWatcher(client, wdeps)
		trk = tracker.NewBitcoinTracker(client, tdeps)

	default:
		return nil, fmt.Errorf("unsupported chain %s", chain.Chain)
	}

	tasks := []worker.Task{worker.ScanTask(scanner, wl), trk}
	// bitcoin never skips a block, so it has nothing to rescan
	if processor != nil {
		r := watcher.NewRescanner(chain, processor, failures, a.cfg.Services.FailureQueue.RescanInterval, a.metrics)
		tasks = append(tasks, worker.ScanTask(r, wl))
	}
	logger.Info("Chain configured", "chain", chain.Name, "tasks", len(tasks), "confirmations", chain.Confirmations)
	return tasks, nil
}
