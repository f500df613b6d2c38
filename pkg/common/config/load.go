package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fystack/deposit-indexer/pkg/common/constant"
	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/imdario/mergo"
)

var validate = validator.New()

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes raw YAML and runs the same pipeline as Load.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Chains.ApplyDefaults(cfg.Defaults); err != nil {
		return nil, err
	}
	if err := cfg.Chains.FinalizeNodes(); err != nil {
		return nil, err
	}
	cfg.Services.applyDefaults()
	cfg.Sweeper.applyDefaults()

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("struct validation failed: %w", err)
	}

	for name, chain := range cfg.Chains {
		if err := validate.Struct(chain); err != nil {
			return nil, fmt.Errorf("chain %s validation failed: %w", name, err)
		}
	}
	for name := range cfg.Sweeper.Targets {
		if _, ok := cfg.Chains[name]; !ok {
			return nil, fmt.Errorf("sweeper target %s has no chain configured", name)
		}
	}

	return &cfg, nil
}

// ApplyDefaults fills each chain from the shared defaults block and
// resolves the chain identity from its key.
func (c Chains) ApplyDefaults(d Defaults) error {
	base := ChainConfig{
		PollInterval:    d.PollInterval,
		TrackerInterval: d.TrackerInterval,
		MaxBackfill:     d.MaxBackfill,
		Client:          d.Client,
		Throttle:        d.Throttle,
	}

	for name, chain := range c {
		id, err := enum.ParseChain(name)
		if err != nil {
			return err
		}
		if err := mergo.Merge(&chain, base); err != nil {
			return fmt.Errorf("merge defaults for %s: %w", name, err)
		}
		chain.Name = strings.ToLower(name)
		chain.Chain = id

		if chain.PollInterval == 0 {
			chain.PollInterval = constant.DefaultPollInterval
		}
		if chain.TrackerInterval == 0 {
			chain.TrackerInterval = constant.DefaultTrackerInterval
		}
		if chain.MaxBackfill == 0 {
			chain.MaxBackfill = constant.DefaultMaxBackfill
		}
		if chain.Network == "" {
			chain.Network = "mainnet"
		}

		switch id {
		case enum.ChainEthereum:
			if chain.Confirmations == 0 {
				chain.Confirmations = constant.DefaultEthereumConfirmations
			}
		case enum.ChainBitcoin:
			if chain.Confirmations == 0 {
				chain.Confirmations = constant.DefaultBitcoinConfirmations
			}
		case enum.ChainSolana:
			if chain.Confirmations == 0 {
				chain.Confirmations = constant.SolanaFinalizedConfirmations
			}
			if chain.PollAttempts == 0 {
				chain.PollAttempts = constant.DefaultSolanaPollAttempts
			}
			if chain.PollDelay == 0 {
				chain.PollDelay = constant.DefaultSolanaPollDelay
			}
		}
		c[name] = chain
	}
	return nil
}

// Get returns the chain configured for id.
func (c Chains) Get(id enum.Chain) (ChainConfig, bool) {
	for _, chain := range c {
		if chain.Chain == id {
			return chain, true
		}
	}
	return ChainConfig{}, false
}

func (s *Services) applyDefaults() {
	if s.Database.MaxOpenConns == 0 {
		s.Database.MaxOpenConns = 20
	}
	if s.Database.MaxIdleConns == 0 {
		s.Database.MaxIdleConns = 5
	}
	if s.Database.ConnMaxLifetime == 0 {
		s.Database.ConnMaxLifetime = time.Hour
	}
	s.Database.URL = substituteEnvVars(s.Database.URL)
	s.Redis.Password = substituteEnvVars(s.Redis.Password)
	s.Nats.Password = substituteEnvVars(s.Nats.Password)
	s.KVS.Consul.Token = substituteEnvVars(s.KVS.Consul.Token)
	if s.Cursor.Backend == "" {
		s.Cursor.Backend = enum.CursorBackendLedger
	}
	if s.Watchlist.RefreshInterval == 0 {
		s.Watchlist.RefreshInterval = constant.DefaultRefreshInterval
	}
	if s.Watchlist.ExpectedItems == 0 {
		s.Watchlist.ExpectedItems = 100_000
	}
	if s.Watchlist.FalsePositiveRate == 0 {
		s.Watchlist.FalsePositiveRate = 0.001
	}
	if s.Nats.SubjectPrefix == "" {
		s.Nats.SubjectPrefix = "deposits"
	}
}

func (s *Sweeper) applyDefaults() {
	if s.MnemonicEnv == "" {
		s.MnemonicEnv = constant.DefaultMnemonicEnv
	}
	for name, t := range s.Targets {
		t.ColdAddress = substituteEnvVars(t.ColdAddress)
		if t.Reserve == "" {
			t.Reserve = "0"
			if id, err := enum.ParseChain(name); err == nil && id == enum.ChainSolana {
				t.Reserve = strconv.Itoa(constant.DefaultSolanaReserveLamports)
			}
		}
		s.Targets[name] = t
	}
}

// Target returns the sweep destination configured for id.
func (s Sweeper) Target(id enum.Chain) (SweepTarget, bool) {
	for name, t := range s.Targets {
		if parsed, err := enum.ParseChain(name); err == nil && parsed == id {
			return t, true
		}
	}
	return SweepTarget{}, false
}
