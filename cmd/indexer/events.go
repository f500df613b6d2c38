package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/fystack/deposit-indexer/pkg/common/logger"
	"github.com/fystack/deposit-indexer/pkg/events"
	"github.com/fystack/deposit-indexer/pkg/infra"
	"github.com/nats-io/nats.go"
)

// EventsCmd prints deposit and sweep events as they are published.
type EventsCmd struct {
	Subject string `help:"Subject to subscribe to. Defaults to every event under the configured prefix." name:"subject"`
}

func (c *EventsCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	if cfg.Services.Nats.URL == "" {
		return fmt.Errorf("services.nats.url is not configured")
	}

	nc, err := infra.GetNATSConnection(cfg.Services.Nats, cfg.Environment)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer nc.Close()

	subject := c.Subject
	if subject == "" {
		subject = events.SubjectWildcard(cfg.Services.Nats.SubjectPrefix)
	}

	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		fmt.Printf("[%s] %s\n", msg.Subject, string(msg.Data))
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	defer sub.Unsubscribe()
	logger.Info("Subscribed", "subject", subject)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	return nil
}
