package sweeper

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"math/big"

	solrpc "github.com/fystack/deposit-indexer/internal/rpc/solana"
	"github.com/fystack/deposit-indexer/internal/tracker"
	"github.com/fystack/deposit-indexer/pkg/common/constant"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

type SolanaSource interface {
	GetBalance(ctx context.Context, address string) (uint64, error)
	GetLatestBlockhash(ctx context.Context) (*solrpc.LatestBlockhash, error)
	GetFeeForMessage(ctx context.Context, messageBase64 string) (*uint64, error)
	SendTransaction(ctx context.Context, txBase64 string) (string, error)
}

type SignaturePoller interface {
	Poll(ctx context.Context, sig string, onProgress func(confirmations uint64)) (tracker.PollResult, error)
}

type SolanaSweeper struct {
	base
	client SolanaSource
	poller SignaturePoller
	cold   solanago.PublicKey
}

func NewSolanaSweeper(client SolanaSource, poller SignaturePoller, deps Deps) (*SolanaSweeper, error) {
	b, err := newBase(deps, 0)
	if err != nil {
		return nil, err
	}
	cold, err := solanago.PublicKeyFromBase58(deps.Target.ColdAddress)
	if err != nil {
		return nil, fmt.Errorf("solana cold address: %w", err)
	}
	return &SolanaSweeper{base: b, client: client, poller: poller, cold: cold}, nil
}

func (s *SolanaSweeper) Sweep(ctx context.Context, index uint32) (SweepResult, error) {
	kp, err := s.derive(index)
	if err != nil {
		return SweepResult{}, err
	}
	from := solanago.PublicKeyFromBytes(kp.Ed25519().Public().(ed25519.PublicKey))

	lamports, err := s.client.GetBalance(ctx, kp.Address)
	if err != nil {
		return s.fail(kp, "Failed to read balance", err)
	}
	balance := new(big.Int).SetUint64(lamports)
	if balance.Cmp(s.reserve) <= 0 {
		return s.skip(kp, "balance within reserve", "balance", lamports, "reserve", s.reserve.String())
	}

	bh, err := s.client.GetLatestBlockhash(ctx)
	if err != nil {
		return s.fail(kp, "Failed to fetch blockhash", err)
	}
	blockhash, err := solanago.HashFromBase58(bh.Blockhash)
	if err != nil {
		return s.fail(kp, "Invalid blockhash", err, "blockhash", bh.Blockhash)
	}

	fee := s.fee(ctx, from, blockhash, lamports)
	amount, ok := Plan(balance, s.reserve, new(big.Int).SetUint64(fee))
	if !ok {
		return s.skip(kp, "balance does not cover reserve and fee",
			"balance", lamports, "reserve", s.reserve.String(), "fee", fee)
	}

	tx, err := s.transfer(from, blockhash, amount.Uint64())
	if err != nil {
		return s.fail(kp, "Failed to build transfer", err)
	}
	priv := solanago.PrivateKey(kp.Ed25519())
	if _, err := tx.Sign(func(key solanago.PublicKey) *solanago.PrivateKey {
		if key.Equals(from) {
			return &priv
		}
		return nil
	}); err != nil {
		return s.fail(kp, "Failed to sign transfer", err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return s.fail(kp, "Failed to encode transfer", err)
	}

	sig, err := s.client.SendTransaction(ctx, base64.StdEncoding.EncodeToString(raw))
	if err != nil {
		return s.fail(kp, "Failed to send transfer", err, "amount", amount.String())
	}
	s.log.Info("Sweep broadcast", "index", index, "signature", sig, "amount", amount.String())

	res, err := s.poller.Poll(ctx, sig, nil)
	if err != nil {
		return s.fail(kp, "Stopped waiting for sweep", err, "signature", sig)
	}
	switch res.Outcome {
	case tracker.Finalized:
		return s.done(ctx, kp, amount, sig)
	case tracker.Failed:
		return s.fail(kp, "Sweep transaction failed on chain", res.LastErr, "signature", sig)
	default:
		s.log.Warn("Sweep not finalized within attempt budget",
			"index", index, "signature", sig, "attempts", res.Attempts, "confirmations", res.Confirmations)
		return s.fail(kp, "Sweep unconfirmed", res.LastErr, "signature", sig)
	}
}

// fee doubles the network fee of the transfer message, falling back to the
// default signature price when the node cannot quote it.
func (s *SolanaSweeper) fee(ctx context.Context, from solanago.PublicKey, blockhash solanago.Hash, lamports uint64) uint64 {
	perMessage := uint64(constant.DefaultLamportsPerSignature)

	tx, err := s.transfer(from, blockhash, lamports)
	if err == nil {
		var msg []byte
		if msg, err = tx.Message.MarshalBinary(); err == nil {
			var quoted *uint64
			quoted, err = s.client.GetFeeForMessage(ctx, base64.StdEncoding.EncodeToString(msg))
			if err == nil && quoted != nil && *quoted > 0 {
				perMessage = *quoted
			}
		}
	}
	if err != nil {
		s.log.Warn("Fee quote failed, using default", "err", err, "lamports_per_signature", perMessage)
	}
	return perMessage * 2
}

func (s *SolanaSweeper) transfer(from solanago.PublicKey, blockhash solanago.Hash, lamports uint64) (*solanago.Transaction, error) {
	return solanago.NewTransaction(
		[]solanago.Instruction{system.NewTransferInstruction(lamports, from, s.cold).Build()},
		blockhash,
		solanago.TransactionPayer(from),
	)
}
