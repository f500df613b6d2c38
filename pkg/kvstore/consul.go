package kvstore

import (
	"fmt"
	"time"

	"github.com/fystack/deposit-indexer/pkg/common/config"
	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/fystack/deposit-indexer/pkg/infra"
	"github.com/hashicorp/consul/api"
)

// ConsulStore keeps keys under an optional folder of the Consul KV tree.
// Updates use check-and-set on the key's ModifyIndex.
type ConsulStore struct {
	kv     *api.KV
	folder string
}

func NewConsulStore(cfg config.ConsulConfig) (*ConsulStore, error) {
	c := api.DefaultConfig()
	c.Scheme = cfg.Scheme
	if c.Scheme == "" {
		c.Scheme = "http"
	}
	c.Address = cfg.Address
	if c.Address == "" {
		c.Address = "127.0.0.1:8500"
	}
	c.WaitTime = 10 * time.Second
	c.Token = cfg.Token
	if cfg.HttpAuth.Username != "" {
		c.HttpAuth = &api.HttpBasicAuth{
			Username: cfg.HttpAuth.Username,
			Password: cfg.HttpAuth.Password,
		}
	}

	client, err := api.NewClient(c)
	if err != nil {
		return nil, err
	}
	if _, err := client.Status().Leader(); err != nil {
		return nil, fmt.Errorf("connect consul %s: %w", c.Address, err)
	}
	return &ConsulStore{kv: client.KV(), folder: cfg.Folder}, nil
}

func (c *ConsulStore) Backend() string { return string(enum.KVStoreTypeConsul) }

func (c *ConsulStore) key(k string) (string, error) {
	if k == "" {
		return "", ErrKeyEmpty
	}
	return joinKey(c.folder, k), nil
}

func (c *ConsulStore) Get(k string) ([]byte, error) {
	key, err := c.key(k)
	if err != nil {
		return nil, err
	}
	pair, _, err := c.kv.Get(key, nil)
	if err != nil {
		return nil, err
	}
	if pair == nil {
		return nil, ErrKeyNotFound
	}
	return pair.Value, nil
}

func (c *ConsulStore) Put(k string, value []byte) error {
	key, err := c.key(k)
	if err != nil {
		return err
	}
	_, err = c.kv.Put(&api.KVPair{Key: key, Value: value}, nil)
	return err
}

func (c *ConsulStore) Update(k string, fn infra.UpdateFunc) error {
	key, err := c.key(k)
	if err != nil {
		return err
	}
	for range maxUpdateAttempts {
		pair, _, err := c.kv.Get(key, nil)
		if err != nil {
			return err
		}
		var (
			cur   []byte
			index uint64
		)
		if pair != nil {
			cur, index = pair.Value, pair.ModifyIndex
		}
		next, err := fn(cur)
		if err != nil {
			return err
		}

		// index 0 creates only if the key is still absent
		var ok bool
		switch {
		case next != nil:
			ok, _, err = c.kv.CAS(&api.KVPair{Key: key, Value: next, ModifyIndex: index}, nil)
		case pair != nil:
			ok, _, err = c.kv.DeleteCAS(&api.KVPair{Key: key, ModifyIndex: index}, nil)
		default:
			return nil
		}
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return ErrConflict
}

// Delete is a no-op for missing keys.
func (c *ConsulStore) Delete(k string) error {
	key, err := c.key(k)
	if err != nil {
		return err
	}
	_, err = c.kv.Delete(key, nil)
	return err
}

func (c *ConsulStore) Close() error {
	return nil
}
