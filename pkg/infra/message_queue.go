package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/fystack/deposit-indexer/pkg/common/logger"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	MaxMsgSize   = 64 * 1024
	streamMaxAge = 7 * 24 * time.Hour
	dedupWindow  = 2 * time.Hour
)

// Publisher pushes serialized events to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, message []byte, options *PublishOptions) error
	Close()
}

type PublishOptions struct {
	// IdempotentKey is sent as Nats-Msg-Id so the stream drops replays.
	IdempotentKey string
}

type jetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	stream string
}

// NewJetStreamPublisher ensures the stream exists and returns a publisher bound to it.
func NewJetStreamPublisher(ctx context.Context, nc *nats.Conn, streamName string, subjectWildCards []string) (Publisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	if stream, err := js.Stream(ctx, streamName); err == nil {
		if info, err := stream.Info(ctx); err == nil {
			logger.Info("Stream found", "name", info.Config.Name, "subjects", info.Config.Subjects, "msgs", info.State.Msgs)
		}
	} else {
		logger.Warn("Stream not found, creating new stream", "stream", streamName)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        streamName,
		Description: "Stream for " + streamName,
		Subjects:    subjectWildCards,
		MaxMsgSize:  int32(MaxMsgSize),
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      streamMaxAge,
		Duplicates:  dedupWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("create stream %s: %w", streamName, err)
	}
	logger.Info("JetStream publisher ready", "stream", streamName)

	return &jetStreamPublisher{nc: nc, js: js, stream: streamName}, nil
}

func (p *jetStreamPublisher) Publish(ctx context.Context, subject string, message []byte, options *PublishOptions) error {
	header := nats.Header{}
	if options != nil && options.IdempotentKey != "" {
		header.Add(jetstream.MsgIDHeader, options.IdempotentKey)
	}

	ack, err := p.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    message,
		Header:  header,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	if ack.Duplicate {
		logger.Debug("Duplicate message dropped by stream", "subject", subject)
	}
	return nil
}

func (p *jetStreamPublisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
