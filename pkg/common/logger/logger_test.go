package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactAttr(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{ReplaceAttr: RedactAttr}))

	l.Info("loaded deriver", "mnemonic", "abandon abandon about", "Seed", "deadbeef", "chain", "solana")

	out := buf.String()
	assert.NotContains(t, out, "abandon")
	assert.NotContains(t, out, "deadbeef")
	assert.Contains(t, out, "chain=solana")
	assert.Contains(t, out, "mnemonic="+redacted)
}

func TestWithBeforeInit(t *testing.T) {
	assert.NotPanics(t, func() {
		With("chain", "bitcoin").Info("no init yet")
	})
}

func TestNewHandler_JSONRedacts(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(newHandler(&Options{Writer: &buf, JSON: true, Level: slog.LevelDebug}))

	l.Debug("sweep signed", "private_key", "5Kb8kLf9zgWQnogidDA76Mz", "address", "bc1qxyz")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, redacted, line["private_key"])
	assert.Equal(t, "bc1qxyz", line["address"])
	assert.Equal(t, "sweep signed", line["msg"])
}
