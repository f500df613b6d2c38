package main

import (
	"fmt"

	"github.com/fystack/deposit-indexer/pkg/common/enum"
)

// DeriveCmd prints addresses only; key material never leaves the process.
type DeriveCmd struct {
	Chain   string   `help:"Chain (ethereum, solana, bitcoin)." required:"" name:"chain"`
	Indexes []uint32 `help:"Derivation index; repeat or comma-separate for several." required:"" name:"index" sep:","`
}

func (c *DeriveCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	id, err := enum.ParseChain(c.Chain)
	if err != nil {
		return err
	}

	a := newApp(cfg, nil)
	deriver, err := a.deriver()
	if err != nil {
		return err
	}
	for _, index := range c.Indexes {
		kp, err := deriver.Derive(id, index)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%d\t%s\t%s\n", id, index, kp.Path, kp.Address)
	}
	return nil
}
