package infra

import (
	"errors"
	"fmt"
	"time"

	"github.com/fystack/deposit-indexer/pkg/common/config"
	"github.com/fystack/deposit-indexer/pkg/common/constant"
	"github.com/fystack/deposit-indexer/pkg/common/logger"
	"github.com/nats-io/nats.go"
)

const natsClientName = "deposit-indexer"

func natsOptions(cfg config.NatsConfig, environment string) ([]nats.Option, error) {
	opts := []nats.Option{
		nats.Name(natsClientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("Disconnected from NATS", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Info("NATS connection closed")
		}),
		nats.ErrorHandler(natsErrHandler),
	}
	if cfg.Username != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}

	if cfg.TLS.Enabled() {
		tlsCfg, err := clientTLS(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("nats tls: %w", err)
		}
		opts = append(opts, nats.Secure(tlsCfg))
	} else if environment == constant.EnvProduction {
		return nil, errors.New("nats requires services.nats.tls in production")
	}
	return opts, nil
}

// GetNATSConnection dials NATS. Production connections require mTLS.
func GetNATSConnection(cfg config.NatsConfig, environment string) (*nats.Conn, error) {
	opts, err := natsOptions(cfg, environment)
	if err != nil {
		return nil, err
	}
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	return nats.Connect(url, opts...)
}

func natsErrHandler(_ *nats.Conn, sub *nats.Subscription, natsErr error) {
	if !errors.Is(natsErr, nats.ErrSlowConsumer) || sub == nil {
		logger.Error("NATS error", "err", natsErr)
		return
	}
	pending, _, err := sub.Pending()
	if err != nil {
		logger.Error("NATS slow consumer", "subject", sub.Subject, "err", err)
		return
	}
	logger.Error("NATS slow consumer", "subject", sub.Subject, "pending", pending)
}
