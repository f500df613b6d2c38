package config

import (
	"time"

	"github.com/fystack/deposit-indexer/pkg/common/enum"
)

type Services struct {
	Port         int                `yaml:"port"          validate:"required,min=1,max=65535"`
	Database     DatabaseConfig     `yaml:"database"      validate:"required"`
	Redis        RedisConfig        `yaml:"redis"`
	Nats         NatsConfig         `yaml:"nats"`
	KVS          KVSConfig          `yaml:"kvstore"`
	Cursor       CursorConfig       `yaml:"cursor"`
	Watchlist    WatchlistConfig    `yaml:"watchlist"`
	FailureQueue FailureQueueConfig `yaml:"failure_queue"`
}

type DatabaseConfig struct {
	URL             string        `yaml:"url"               validate:"required"`
	MaxOpenConns    int           `yaml:"max_open_conns"    validate:"min=0"`
	MaxIdleConns    int           `yaml:"max_idle_conns"    validate:"min=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig accepts a bare host:port or a redis:// URL.
type RedisConfig struct {
	URL      string    `yaml:"url"`
	Password string    `yaml:"password"`
	TLS      TLSConfig `yaml:"tls"`
}

type NatsConfig struct {
	URL           string    `yaml:"url"`
	SubjectPrefix string    `yaml:"subject_prefix"`
	Username      string    `yaml:"username"`
	Password      string    `yaml:"password"`
	TLS           TLSConfig `yaml:"tls"`
}

// TLSConfig enables mutual TLS when a client certificate is set.
type TLSConfig struct {
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"    validate:"required_with=ClientCert"`
	CACert     string `yaml:"ca_cert"`
}

func (t TLSConfig) Enabled() bool { return t.ClientCert != "" }

type KVSConfig struct {
	Type   enum.KVStoreType `yaml:"type"   validate:"omitempty,oneof=badger consul"`
	Consul ConsulConfig     `yaml:"consul"`
	Badger BadgerConfig     `yaml:"badger"`
}

type ConsulConfig struct {
	Scheme   string         `yaml:"scheme"`
	Address  string         `yaml:"address"`
	Folder   string         `yaml:"folder"`
	Token    string         `yaml:"token"`
	HttpAuth HttpAuthConfig `yaml:"http_auth"`
}

type HttpAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type BadgerConfig struct {
	Directory string `yaml:"directory"`
	Prefix    string `yaml:"prefix"`
}

type CursorConfig struct {
	Backend enum.CursorBackend `yaml:"backend" validate:"oneof=ledger kv"`
}

type WatchlistConfig struct {
	RefreshInterval   time.Duration `yaml:"refresh_interval"`
	ExpectedItems     uint          `yaml:"expected_items"`
	FalsePositiveRate float64       `yaml:"false_positive_rate" validate:"gt=0,lt=1"`
}

// FailureQueueConfig tunes the rescanner. The queue itself is always on:
// redis when configured, else the KV store, else the ledger table.
type FailureQueueConfig struct {
	RescanInterval time.Duration `yaml:"rescan_interval"`
}
