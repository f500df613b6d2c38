// Package sweeper moves deposit balances from derived hot addresses to the
// configured cold address, leaving a per-chain reserve behind.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/fystack/deposit-indexer/internal/keys"
	"github.com/fystack/deposit-indexer/pkg/common/config"
	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/fystack/deposit-indexer/pkg/common/logger"
	"github.com/fystack/deposit-indexer/pkg/events"
	"github.com/fystack/deposit-indexer/pkg/metrics"
	"github.com/shopspring/decimal"
)

// SweepResult is empty when nothing was broadcast or the broadcast did not
// reach finality.
type SweepResult struct {
	Chain    enum.Chain
	Index    uint32
	From     string
	To       string
	Amount   *big.Int
	TxHashes []string
}

func (r SweepResult) Empty() bool { return len(r.TxHashes) == 0 }

// Sweeper returns an error only for derivation or configuration problems.
// Chain failures are logged and yield an empty result.
type Sweeper interface {
	Chain() enum.Chain
	Sweep(ctx context.Context, index uint32) (SweepResult, error)
}

type KeyDeriver interface {
	Derive(chain enum.Chain, index uint32) (*keys.Keypair, error)
}

type Deps struct {
	Config  config.ChainConfig
	Target  config.SweepTarget
	Keys    KeyDeriver
	Emitter events.Emitter
	Metrics *metrics.Metrics
	// ConfirmTimeout bounds the wait for finality; zero means the chain
	// default.
	ConfirmTimeout time.Duration
}

// Plan returns balance - reserve - fee when balance covers both strictly.
func Plan(balance, reserve, fee *big.Int) (*big.Int, bool) {
	if balance == nil || reserve == nil || fee == nil {
		return nil, false
	}
	if reserve.Sign() < 0 || fee.Sign() < 0 {
		return nil, false
	}
	floor := new(big.Int).Add(reserve, fee)
	if balance.Cmp(floor) <= 0 {
		return nil, false
	}
	return floor.Sub(balance, floor), true
}

type base struct {
	deps    Deps
	reserve *big.Int
	log     *slog.Logger
}

func newBase(deps Deps, defaultTimeout time.Duration) (base, error) {
	if deps.Keys == nil {
		return base{}, fmt.Errorf("%s sweeper: no key deriver", deps.Config.Name)
	}
	if deps.Target.ColdAddress == "" {
		return base{}, fmt.Errorf("%s sweeper: no cold address", deps.Config.Name)
	}
	reserve := big.NewInt(0)
	if deps.Target.Reserve != "" {
		d, err := decimal.NewFromString(deps.Target.Reserve)
		if err != nil || d.IsNegative() || !d.Equal(d.Truncate(0)) {
			return base{}, fmt.Errorf("%s sweeper: invalid reserve %q", deps.Config.Name, deps.Target.Reserve)
		}
		reserve = d.BigInt()
	}
	if deps.Emitter == nil {
		deps.Emitter = events.Noop()
	}
	if deps.ConfirmTimeout <= 0 {
		deps.ConfirmTimeout = defaultTimeout
	}
	return base{
		deps:    deps,
		reserve: reserve,
		log:     logger.With("component", "sweeper", "chain", deps.Config.Name),
	}, nil
}

func (b *base) Chain() enum.Chain { return b.deps.Config.Chain }

func (b *base) derive(index uint32) (*keys.Keypair, error) {
	kp, err := b.deps.Keys.Derive(b.deps.Config.Chain, index)
	if err != nil {
		return nil, fmt.Errorf("derive %s index %d: %w", b.deps.Config.Chain, index, err)
	}
	return kp, nil
}

func (b *base) skip(kp *keys.Keypair, reason string, args ...any) (SweepResult, error) {
	b.deps.Metrics.Sweep(b.deps.Config.Name, metrics.SweepSkipped)
	b.log.Info("Sweep skipped: "+reason, append([]any{"index", kp.Index, "address", kp.Address}, args...)...)
	return SweepResult{}, nil
}

func (b *base) fail(kp *keys.Keypair, msg string, err error, args ...any) (SweepResult, error) {
	b.deps.Metrics.Sweep(b.deps.Config.Name, metrics.SweepFailed)
	b.log.Error(msg, append([]any{"index", kp.Index, "address", kp.Address, "err", err}, args...)...)
	return SweepResult{}, nil
}

func (b *base) done(ctx context.Context, kp *keys.Keypair, amount *big.Int, hashes ...string) (SweepResult, error) {
	res := SweepResult{
		Chain:    b.deps.Config.Chain,
		Index:    kp.Index,
		From:     kp.Address,
		To:       b.deps.Target.ColdAddress,
		Amount:   amount,
		TxHashes: hashes,
	}
	b.deps.Metrics.Sweep(b.deps.Config.Name, metrics.SweepExecuted)
	b.log.Info("Sweep completed",
		"index", kp.Index, "from", kp.Address, "to", res.To, "amount", amount.String(), "txs", hashes)

	err := b.deps.Emitter.EmitSweep(ctx, events.SweepEvent{
		Type:     events.SweepCompleted,
		Chain:    res.Chain,
		Index:    res.Index,
		From:     res.From,
		To:       res.To,
		TxHashes: hashes,
		Amount:   amount.String(),
	})
	if err != nil {
		b.log.Warn("Failed to emit sweep event", "index", kp.Index, "err", err)
	}
	return res, nil
}

// wait calls check every interval until it reports done, returns an error,
// or the confirm timeout passes.
func (b *base) wait(ctx context.Context, interval time.Duration, check func(context.Context) (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, b.deps.ConfirmTimeout)
	defer cancel()
	for {
		ok, err := check(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
