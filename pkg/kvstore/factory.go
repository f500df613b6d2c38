package kvstore

import (
	"fmt"

	"github.com/fystack/deposit-indexer/pkg/common/config"
	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/fystack/deposit-indexer/pkg/infra"
)

// NewFromConfig opens the backend selected by services.kvstore.type.
func NewFromConfig(cfg config.KVSConfig) (infra.KVStore, error) {
	switch cfg.Type {
	case enum.KVStoreTypeBadger:
		return NewBadgerStore(cfg.Badger.Directory, cfg.Badger.Prefix)
	case enum.KVStoreTypeConsul:
		return NewConsulStore(cfg.Consul)
	}
	return nil, fmt.Errorf("unsupported kvstore type: %q", cfg.Type)
}
