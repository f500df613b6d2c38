package infra

import (
	"testing"

	"github.com/fystack/deposit-indexer/pkg/common/config"
	"github.com/fystack/deposit-indexer/pkg/common/constant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisOptions(t *testing.T) {
	opts, err := redisOptions(config.RedisConfig{URL: "localhost:6379", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Nil(t, opts.TLSConfig)

	opts, err = redisOptions(config.RedisConfig{URL: "redis://:urlpw@cache:6380/2"})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "urlpw", opts.Password)
	assert.Equal(t, 2, opts.DB)

	_, err = redisOptions(config.RedisConfig{
		URL: "localhost:6379",
		TLS: config.TLSConfig{ClientCert: "/nonexistent/client.crt", ClientKey: "/nonexistent/client.key"},
	})
	assert.ErrorContains(t, err, "redis tls")
}

func TestNatsOptions(t *testing.T) {
	_, err := natsOptions(config.NatsConfig{URL: "nats://localhost:4222"}, constant.EnvDevelopment)
	assert.NoError(t, err)

	_, err = natsOptions(config.NatsConfig{URL: "nats://localhost:4222"}, constant.EnvProduction)
	assert.ErrorContains(t, err, "requires services.nats.tls")
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/indexer")
	assert.Equal(t, "/home/indexer/certs/ca.pem", expandHome("~/certs/ca.pem"))
	assert.Equal(t, "./certs/ca.pem", expandHome("./certs/ca.pem"))
}
