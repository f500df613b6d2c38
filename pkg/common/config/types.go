package config

import (
	"time"

	"github.com/fystack/deposit-indexer/pkg/common/enum"
)

type Config struct {
	Environment string   `yaml:"environment" validate:"required,oneof=production development"`
	Version     string   `yaml:"version"`
	Defaults    Defaults `yaml:"defaults"`
	Chains      Chains   `yaml:"chains"      validate:"required,min=1"`
	Services    Services `yaml:"services"    validate:"required"`
	Sweeper     Sweeper  `yaml:"sweeper"`
}

type Defaults struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	TrackerInterval time.Duration `yaml:"tracker_interval"`
	MaxBackfill     int           `yaml:"max_backfill"`
	Client          ClientConfig  `yaml:"client"`
	Throttle        Throttle      `yaml:"throttle"`
}

type Chains map[string]ChainConfig

type ChainConfig struct {
	Name  string     `yaml:"-"`
	Chain enum.Chain `yaml:"-"`

	// Network selects address encoding params: mainnet, testnet or regtest.
	Network         string        `yaml:"network"          validate:"omitempty,oneof=mainnet testnet regtest devnet"`
	Nodes           []Node        `yaml:"nodes"            validate:"required,min=1,dive"`
	WSURL           string        `yaml:"ws_url"           validate:"omitempty,url"`
	StartBlock      uint64        `yaml:"start_block"`
	FromLatest      bool          `yaml:"from_latest"`
	Confirmations   uint64        `yaml:"confirmations"`
	PollInterval    time.Duration `yaml:"poll_interval"    validate:"required"`
	TrackerInterval time.Duration `yaml:"tracker_interval" validate:"required"`
	MaxBackfill     int           `yaml:"max_backfill"     validate:"min=0"`
	PollAttempts    int           `yaml:"poll_attempts"    validate:"min=0"`
	PollDelay       time.Duration `yaml:"poll_delay"`
	Client          ClientConfig  `yaml:"client"`
	Throttle        Throttle      `yaml:"throttle"`
}

type ClientConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries" validate:"min=0"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

type Throttle struct {
	RPS         int `yaml:"rps"`
	Burst       int `yaml:"burst"`
	Concurrency int `yaml:"concurrency"`
}

type Sweeper struct {
	MnemonicEnv   string                 `yaml:"mnemonic_env"`
	PassphraseEnv string                 `yaml:"passphrase_env"`
	Targets       map[string]SweepTarget `yaml:"targets" validate:"dive"`
}

type SweepTarget struct {
	ColdAddress string `yaml:"cold_address" validate:"required"`
	// Reserve is kept on the hot address, in the chain's smallest unit.
	Reserve string `yaml:"reserve" validate:"omitempty,numeric"`
}
