package main

import (
	"log/slog"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fystack/deposit-indexer/pkg/common/config"
	"github.com/fystack/deposit-indexer/pkg/common/constant"
	"github.com/fystack/deposit-indexer/pkg/common/logger"
)

var version = "dev"

// Globals are flags shared by every subcommand.
type Globals struct {
	Config string `help:"Path to config file." default:"configs/config.yaml" name:"config"`
	Debug  bool   `help:"Enable debug logs." name:"debug"`
}

type CLI struct {
	Globals

	Run     RunCmd     `cmd:"" default:"1" help:"Run watchers, trackers and the HTTP endpoint."`
	Sweep   SweepCmd   `cmd:"" help:"Sweep deposit addresses to the cold address."`
	Derive  DeriveCmd  `cmd:"" help:"Print the deposit address for an index."`
	Migrate MigrateCmd `cmd:"" help:"Create or update ledger tables."`
	Events  EventsCmd  `cmd:"" help:"Print published deposit and sweep events."`
}

// load reads the config file and initializes logging.
func (g *Globals) load() (*config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if g.Debug {
		level = slog.LevelDebug
	}
	logger.Init(&logger.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
		JSON:       cfg.Environment == constant.EnvProduction,
	})
	logger.Info("Config loaded", "environment", cfg.Environment, "chains", len(cfg.Chains))
	return cfg, nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("indexer"),
		kong.Description("Multi-chain deposit indexer and sweeper."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
