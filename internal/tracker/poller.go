package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/fystack/deposit-indexer/internal/rpc/solana"
	"github.com/fystack/deposit-indexer/pkg/common/constant"
)

// Outcome is the state of a signature poll.
type Outcome int

const (
	// Polling means no terminal answer yet.
	Polling Outcome = iota
	Finalized
	Failed
	// Exhausted means the attempt budget ran out before finality. The row
	// stays pending for a later pass.
	Exhausted
)

func (o Outcome) String() string {
	switch o {
	case Polling:
		return "polling"
	case Finalized:
		return "finalized"
	case Failed:
		return "failed"
	case Exhausted:
		return "exhausted"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Observation is one status read mapped to confirmations.
type Observation struct {
	Outcome       Outcome
	Confirmations uint64
	Seen          bool
}

// Observe maps a signature status to the next state. A nil status means the
// node has not seen the signature yet.
func Observe(st *solana.SignatureStatus) Observation {
	if st == nil {
		return Observation{Outcome: Polling}
	}
	if st.Err != nil {
		return Observation{Outcome: Failed, Confirmations: confirmationsFor(st.ConfirmationStatus), Seen: true}
	}
	switch st.ConfirmationStatus {
	case solana.CommitmentFinalized:
		return Observation{Outcome: Finalized, Confirmations: constant.SolanaFinalizedConfirmations, Seen: true}
	case solana.CommitmentConfirmed:
		return Observation{Outcome: Polling, Confirmations: constant.SolanaConfirmedConfirmations, Seen: true}
	default:
		return Observation{Outcome: Polling, Confirmations: constant.SolanaProcessedConfirmations, Seen: true}
	}
}

func confirmationsFor(status string) uint64 {
	switch status {
	case solana.CommitmentFinalized:
		return constant.SolanaFinalizedConfirmations
	case solana.CommitmentConfirmed:
		return constant.SolanaConfirmedConfirmations
	case solana.CommitmentProcessed:
		return constant.SolanaProcessedConfirmations
	}
	return 0
}

type SignatureStatusSource interface {
	GetSignatureStatuses(ctx context.Context, signatures ...string) ([]*solana.SignatureStatus, error)
}

// SignaturePoller polls one signature up to Attempts times with Delay in
// between, reporting every non-terminal observation.
type SignaturePoller struct {
	client   SignatureStatusSource
	attempts int
	delay    time.Duration
}

func NewSignaturePoller(client SignatureStatusSource, attempts int, delay time.Duration) *SignaturePoller {
	if attempts <= 0 {
		attempts = constant.DefaultSolanaPollAttempts
	}
	if delay <= 0 {
		delay = constant.DefaultSolanaPollDelay
	}
	return &SignaturePoller{client: client, attempts: attempts, delay: delay}
}

// PollResult is the terminal state of Poll.
type PollResult struct {
	Outcome       Outcome
	Confirmations uint64
	Attempts      int
	// LastErr is the most recent RPC error, if any attempt failed.
	LastErr error
}

// Poll returns Finalized, Failed or Exhausted. onProgress, when set, sees each
// new non-terminal confirmation count. It only returns an error when ctx ends.
func (p *SignaturePoller) Poll(ctx context.Context, sig string, onProgress func(confirmations uint64)) (PollResult, error) {
	var res PollResult
	for res.Attempts < p.attempts {
		res.Attempts++

		statuses, err := p.client.GetSignatureStatuses(ctx, sig)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.LastErr = err
		} else {
			var st *solana.SignatureStatus
			if len(statuses) > 0 {
				st = statuses[0]
			}
			obs := Observe(st)
			if obs.Confirmations > res.Confirmations {
				res.Confirmations = obs.Confirmations
				if obs.Outcome == Polling && onProgress != nil {
					onProgress(res.Confirmations)
				}
			}
			if obs.Outcome != Polling {
				res.Outcome = obs.Outcome
				return res, nil
			}
		}

		if res.Attempts < p.attempts {
			t := time.NewTimer(p.delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return res, ctx.Err()
			case <-t.C:
			}
		}
	}
	res.Outcome = Exhausted
	return res, nil
}
