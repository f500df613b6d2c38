package infra

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fystack/deposit-indexer/pkg/common/config"
)

// clientTLS builds a mutual TLS config. An empty CA path trusts the system pool.
func clientTLS(cfg config.TLSConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(expandHome(cfg.ClientCert), expandHome(cfg.ClientKey))
	if err != nil {
		return nil, fmt.Errorf("load client certificate: %w", err)
	}
	out := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if cfg.CACert == "" {
		return out, nil
	}

	pem, err := os.ReadFile(expandHome(cfg.CACert))
	if err != nil {
		return nil, fmt.Errorf("read CA cert: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", cfg.CACert)
	}
	out.RootCAs = pool
	return out, nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
