package main

import (
	"context"
	"time"

	"github.com/fystack/deposit-indexer/internal/ledger"
	"github.com/fystack/deposit-indexer/pkg/common/logger"
)

type MigrateCmd struct {
	Timeout time.Duration `help:"Migration timeout." default:"2m" name:"timeout"`
}

func (c *MigrateCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	a := newApp(cfg, nil)
	defer a.close()
	if err := a.openLedger(ctx); err != nil {
		return err
	}
	if err := ledger.Migrate(ctx, a.db); err != nil {
		return err
	}
	logger.Info("Ledger tables migrated")
	return nil
}
