package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/fystack/deposit-indexer/internal/cursor"
	"github.com/fystack/deposit-indexer/internal/failqueue"
	"github.com/fystack/deposit-indexer/internal/keys"
	"github.com/fystack/deposit-indexer/internal/ledger"
	"github.com/fystack/deposit-indexer/internal/rpc"
	"github.com/fystack/deposit-indexer/internal/rpc/bitcoin"
	"github.com/fystack/deposit-indexer/internal/rpc/solana"
	"github.com/fystack/deposit-indexer/pkg/common/config"
	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/fystack/deposit-indexer/pkg/common/logger"
	"github.com/fystack/deposit-indexer/pkg/events"
	"github.com/fystack/deposit-indexer/pkg/infra"
	"github.com/fystack/deposit-indexer/pkg/kvstore"
	"github.com/fystack/deposit-indexer/pkg/metrics"
	"github.com/fystack/deposit-indexer/pkg/ratelimiter"
	"github.com/fystack/deposit-indexer/pkg/store/blockstore"
	"gorm.io/gorm"
)

type closeFunc struct {
	name string
	fn   func() error
}

// app holds the process-wide resources built once and injected into every
// component.
type app struct {
	cfg      *config.Config
	metrics  *metrics.Metrics
	limiters *ratelimiter.Registry

	db      *gorm.DB
	store   ledger.Store
	emitter events.Emitter
	redis   infra.RedisClient
	blocks  blockstore.Store

	closers []closeFunc
}

func newApp(cfg *config.Config, m *metrics.Metrics) *app {
	return &app{
		cfg:      cfg,
		metrics:  m,
		limiters: ratelimiter.NewRegistry(),
		emitter:  events.Noop(),
	}
}

func (a *app) onClose(name string, fn func() error) {
	a.closers = append(a.closers, closeFunc{name: name, fn: fn})
}

// close releases resources in reverse order of creation.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].fn(); err != nil {
			logger.Error("Failed to close "+a.closers[i].name, "err", err)
		}
	}
	a.closers = nil
}

func (a *app) openLedger(ctx context.Context) error {
	db, err := infra.NewDBConnection(ctx, a.cfg.Services.Database, a.cfg.Environment)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	a.db = db
	a.store = ledger.NewGormStore(db)
	a.onClose("database", func() error { return infra.CloseDB(db) })
	return nil
}

func (a *app) openEmitter(ctx context.Context) error {
	nc := a.cfg.Services.Nats
	if nc.URL == "" {
		logger.Warn("NATS not configured, deposit events are disabled")
		return nil
	}
	conn, err := infra.GetNATSConnection(nc, a.cfg.Environment)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	stream := strings.ToUpper(strings.ReplaceAll(nc.SubjectPrefix, ".", "_"))
	pub, err := infra.NewJetStreamPublisher(ctx, conn, stream, []string{events.SubjectWildcard(nc.SubjectPrefix)})
	if err != nil {
		conn.Close()
		return err
	}
	a.emitter = events.NewEmitter(pub, nc.SubjectPrefix)
	a.onClose("emitter", func() error { a.emitter.Close(); return nil })
	return nil
}

func (a *app) openRedis(ctx context.Context) error {
	if a.cfg.Services.Redis.URL == "" {
		return nil
	}
	client, err := infra.NewRedisClient(ctx, a.cfg.Services.Redis)
	if err != nil {
		return err
	}
	a.redis = client
	a.onClose("redis", client.Close)
	return nil
}

func (a *app) openKV() error {
	if a.cfg.Services.KVS.Type == "" {
		return nil
	}
	kv, err := kvstore.NewFromConfig(a.cfg.Services.KVS)
	if err != nil {
		return fmt.Errorf("open kvstore: %w", err)
	}
	a.blocks = blockstore.NewBlockStore(kv)
	a.onClose("kvstore", a.blocks.Close)
	return nil
}

func (a *app) cursorStore() (cursor.Store, error) {
	switch a.cfg.Services.Cursor.Backend {
	case enum.CursorBackendKV:
		if a.blocks == nil {
			return nil, fmt.Errorf("cursor backend kv requires services.kvstore.type")
		}
		return cursor.NewKVStore(a.blocks), nil
	default:
		return cursor.NewLedgerStore(a.db), nil
	}
}

func (a *app) failureQueue() failqueue.Queue {
	switch {
	case a.redis != nil:
		return failqueue.NewRedisQueue(a.redis)
	case a.blocks != nil:
		return failqueue.NewKVQueue(a.blocks)
	default:
		return failqueue.NewLedgerQueue(a.db)
	}
}

func (a *app) bitcoinClient(chain config.ChainConfig) (*bitcoin.Client, error) {
	f, err := rpc.NewFailoverFromConfig[bitcoin.BitcoinAPI](chain, a.limiters, a.metrics, bitcoin.NewAPI)
	if err != nil {
		return nil, err
	}
	return bitcoin.NewClient(f), nil
}

func (a *app) solanaClient(chain config.ChainConfig) (*solana.Client, error) {
	f, err := rpc.NewFailoverFromConfig[solana.SolanaAPI](chain, a.limiters, a.metrics, solana.NewAPI)
	if err != nil {
		return nil, err
	}
	return solana.NewClient(f), nil
}

// deriver reads the master mnemonic from the environment. The mnemonic is
// never logged.
func (a *app) deriver() (*keys.Deriver, error) {
	sw := a.cfg.Sweeper
	mnemonic := strings.TrimSpace(os.Getenv(sw.MnemonicEnv))
	if mnemonic == "" {
		return nil, fmt.Errorf("environment variable %s is not set", sw.MnemonicEnv)
	}
	var passphrase string
	if sw.PassphraseEnv != "" {
		passphrase = os.Getenv(sw.PassphraseEnv)
	}
	params, err := a.bitcoinParams()
	if err != nil {
		return nil, err
	}
	return keys.NewDeriver(mnemonic, passphrase, params)
}

func (a *app) bitcoinParams() (*chaincfg.Params, error) {
	chain, ok := a.cfg.Chains.Get(enum.ChainBitcoin)
	if !ok {
		return keys.BitcoinParams("")
	}
	return keys.BitcoinParams(chain.Network)
}

// chains returns the configured chains in a stable order.
func (a *app) chains() []config.ChainConfig {
	var out []config.ChainConfig
	for _, id := range enum.AllChains {
		if c, ok := a.cfg.Chains.Get(id); ok {
			out = append(out, c)
		}
	}
	return out
}
