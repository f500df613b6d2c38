package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fystack/deposit-indexer/internal/keys"
	"github.com/fystack/deposit-indexer/internal/rpc/ethereum"
	"github.com/fystack/deposit-indexer/internal/sweeper"
	"github.com/fystack/deposit-indexer/internal/tracker"
	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/fystack/deposit-indexer/pkg/common/logger"
	"github.com/fystack/deposit-indexer/pkg/common/utils"
)

type SweepCmd struct {
	Chain   string   `help:"Chain to sweep (ethereum, solana, bitcoin)." required:"" name:"chain"`
	Indexes []uint32 `help:"Derivation index; repeat or comma-separate for several." required:"" name:"index" sep:","`
}

func (c *SweepCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	id, err := enum.ParseChain(c.Chain)
	if err != nil {
		return err
	}
	chain, ok := cfg.Chains.Get(id)
	if !ok {
		return fmt.Errorf("chain %s is not configured", id)
	}
	target, ok := cfg.Sweeper.Target(id)
	if !ok {
		return fmt.Errorf("no sweeper target configured for %s", id)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg, nil)
	defer a.close()

	deriver, err := a.deriver()
	if err != nil {
		return err
	}
	params, err := a.bitcoinParams()
	if err != nil {
		return err
	}
	if err := keys.ValidateAddress(id, target.ColdAddress, params); err != nil {
		return fmt.Errorf("cold address: %w", err)
	}
	if err := a.openEmitter(ctx); err != nil {
		return err
	}

	deps := sweeper.Deps{
		Config:  chain,
		Target:  target,
		Keys:    deriver,
		Emitter: a.emitter,
		Metrics: a.metrics,
	}
	var s sweeper.Sweeper
	switch id {
	case enum.ChainSolana:
		client, err := a.solanaClient(chain)
		if err != nil {
			return err
		}
		poller := tracker.NewSignaturePoller(client, chain.PollAttempts, chain.PollDelay)
		s, err = sweeper.NewSolanaSweeper(client, poller, deps)
		if err != nil {
			return err
		}
	case enum.ChainEthereum:
		client, err := ethereum.Dial(ctx, chain)
		if err != nil {
			return err
		}
		a.onClose("ethereum client", func() error { client.Close(); return nil })
		s, err = sweeper.NewEthereumSweeper(client, deps)
		if err != nil {
			return err
		}
	case enum.ChainBitcoin:
		client, err := a.bitcoinClient(chain)
		if err != nil {
			return err
		}
		s, err = sweeper.NewBitcoinSweeper(client, params, deps)
		if err != nil {
			return err
		}
	}

	swept := 0
	for _, index := range c.Indexes {
		res, err := s.Sweep(ctx, index)
		if err != nil {
			return err
		}
		if res.Empty() {
			logger.Info("Nothing swept", "chain", id, "index", index)
			continue
		}
		swept++
		fmt.Printf("%s\t%d\t%s\t%s %s\t%v\n", id, index, res.From,
			utils.FromSmallestUnit(res.Amount, id.Decimals()), id.Currency(), res.TxHashes)
	}
	logger.Info("Sweep finished", "chain", id, "requested", len(c.Indexes), "swept", swept)
	return nil
}
