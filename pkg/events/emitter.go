package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fystack/deposit-indexer/pkg/infra"
)

type Emitter interface {
	EmitDeposit(ctx context.Context, event DepositEvent) error
	EmitSweep(ctx context.Context, event SweepEvent) error
	Close()
}

type emitter struct {
	publisher     infra.Publisher
	subjectPrefix string
}

// NewEmitter publishes to "<prefix>.<event type>".
func NewEmitter(publisher infra.Publisher, subjectPrefix string) Emitter {
	return &emitter{publisher: publisher, subjectPrefix: strings.TrimSuffix(subjectPrefix, ".")}
}

// SubjectWildcard is the stream subject filter covering every event type.
func SubjectWildcard(subjectPrefix string) string {
	return strings.TrimSuffix(subjectPrefix, ".") + ".>"
}

func (e *emitter) subject(t EventType) string {
	return e.subjectPrefix + "." + string(t)
}

func (e *emitter) EmitDeposit(ctx context.Context, event DepositEvent) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UTC().Unix()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	// one message per (hash, transition); unrecorded transfers per destination
	key := event.TxHash + ":" + string(event.Type)
	if event.Type == DepositUnrecorded {
		key += ":" + event.DepositAddress
	}
	return e.publisher.Publish(ctx, e.subject(event.Type), data, &infra.PublishOptions{IdempotentKey: key})
}

func (e *emitter) EmitSweep(ctx context.Context, event SweepEvent) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UTC().Unix()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s:%d:%s", event.Chain, event.Index, strings.Join(event.TxHashes, ","))
	return e.publisher.Publish(ctx, e.subject(event.Type), data, &infra.PublishOptions{IdempotentKey: key})
}

func (e *emitter) Close() {
	if e.publisher != nil {
		e.publisher.Close()
	}
}

type noopEmitter struct{}

// Noop is used when no NATS url is configured.
func Noop() Emitter { return noopEmitter{} }

func (noopEmitter) EmitDeposit(context.Context, DepositEvent) error { return nil }
func (noopEmitter) EmitSweep(context.Context, SweepEvent) error     { return nil }
func (noopEmitter) Close()                                          {}
