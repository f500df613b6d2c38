package sweeper

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/fystack/deposit-indexer/internal/rpc/bitcoin"
	"github.com/fystack/deposit-indexer/pkg/common/constant"
)

// P2PKH size estimate in vbytes: version, locktime and counts, then
// per-input and per-output sizes with a compressed key signature.
const (
	p2pkhOverhead  = 10
	p2pkhInputSize = 148
	p2pkhOutSize   = 34

	feeConfTarget = 6
)

type BitcoinSource interface {
	ScanTxOutSet(ctx context.Context, address string) (*bitcoin.ScanResult, error)
	EstimateSmartFee(ctx context.Context, confTarget int) (*bitcoin.FeeEstimate, error)
	SendRawTransaction(ctx context.Context, rawHex string) (string, error)
	GetRawTransaction(ctx context.Context, txid string) (*bitcoin.Transaction, error)
}

// BitcoinSweeper spends every UTXO of a P2PKH deposit address in one tx.
// A non-zero reserve is returned to the deposit address as change.
type BitcoinSweeper struct {
	base
	client  BitcoinSource
	params  *chaincfg.Params
	coldPKS []byte
}

func NewBitcoinSweeper(client BitcoinSource, params *chaincfg.Params, deps Deps) (*BitcoinSweeper, error) {
	b, err := newBase(deps, 2*time.Hour)
	if err != nil {
		return nil, err
	}
	if params == nil {
		params = &chaincfg.MainNetParams
	}
	cold, err := btcutil.DecodeAddress(deps.Target.ColdAddress, params)
	if err != nil {
		return nil, fmt.Errorf("bitcoin cold address: %w", err)
	}
	pks, err := txscript.PayToAddrScript(cold)
	if err != nil {
		return nil, fmt.Errorf("bitcoin cold address script: %w", err)
	}
	return &BitcoinSweeper{base: b, client: client, params: params, coldPKS: pks}, nil
}

func (s *BitcoinSweeper) Sweep(ctx context.Context, index uint32) (SweepResult, error) {
	kp, err := s.derive(index)
	if err != nil {
		return SweepResult{}, err
	}
	own, err := btcutil.DecodeAddress(kp.Address, s.params)
	if err != nil {
		return SweepResult{}, fmt.Errorf("decode derived address: %w", err)
	}
	ownPKS, err := txscript.PayToAddrScript(own)
	if err != nil {
		return SweepResult{}, err
	}

	scan, err := s.client.ScanTxOutSet(ctx, kp.Address)
	if err != nil {
		return s.fail(kp, "Failed to scan utxo set", err)
	}
	balance := new(big.Int)
	for _, u := range scan.Unspents {
		sats, err := bitcoin.ToSatoshis(u.Amount)
		if err != nil {
			return s.fail(kp, "Invalid utxo amount", err, "txid", u.TxID)
		}
		balance.Add(balance, sats)
	}
	if balance.Cmp(s.reserve) <= 0 {
		return s.skip(kp, "balance within reserve",
			"balance", balance.String(), "reserve", s.reserve.String(), "utxos", len(scan.Unspents))
	}

	rate := int64(constant.DefaultBitcoinFeeRate)
	if est, err := s.client.EstimateSmartFee(ctx, feeConfTarget); err != nil {
		s.log.Warn("Fee estimate failed, using default", "err", err, "sat_per_vbyte", rate)
	} else if r := est.SatPerVByte(); r > 0 {
		rate = r
	}
	outputs := 1
	if s.reserve.Sign() > 0 {
		outputs = 2
	}
	vsize := int64(p2pkhOverhead + p2pkhInputSize*len(scan.Unspents) + p2pkhOutSize*outputs)
	fee := big.NewInt(vsize * rate)

	amount, ok := Plan(balance, s.reserve, fee)
	if !ok {
		return s.skip(kp, "balance does not cover reserve and fee",
			"balance", balance.String(), "reserve", s.reserve.String(), "fee", fee.String())
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	for _, u := range scan.Unspents {
		hash, err := chainhash.NewHashFromStr(u.TxID)
		if err != nil {
			return s.fail(kp, "Invalid utxo txid", err, "txid", u.TxID)
		}
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(hash, u.Vout), nil, nil))
	}
	tx.AddTxOut(wire.NewTxOut(amount.Int64(), s.coldPKS))
	if s.reserve.Sign() > 0 {
		tx.AddTxOut(wire.NewTxOut(s.reserve.Int64(), ownPKS))
	}

	for i := range tx.TxIn {
		sigScript, err := txscript.SignatureScript(tx, i, ownPKS, txscript.SigHashAll, kp.BTCEC(), true)
		if err != nil {
			return s.fail(kp, "Failed to sign input", err, "input", i)
		}
		tx.TxIn[i].SignatureScript = sigScript
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return s.fail(kp, "Failed to encode transaction", err)
	}
	txid, err := s.client.SendRawTransaction(ctx, hex.EncodeToString(buf.Bytes()))
	if err != nil {
		return s.fail(kp, "Failed to send transaction", err, "amount", amount.String())
	}
	s.log.Info("Sweep broadcast", "index", index, "txid", txid, "amount", amount.String(), "inputs", len(tx.TxIn))

	if err := s.wait(ctx, s.deps.Config.PollInterval, func(ctx context.Context) (bool, error) {
		t, err := s.client.GetRawTransaction(ctx, txid)
		if err != nil {
			s.log.Debug("Transaction lookup failed", "txid", txid, "err", err)
			return false, nil
		}
		return blockDepth(t.Confirmations) >= s.deps.Config.Confirmations, nil
	}); err != nil {
		return s.fail(kp, "Sweep not confirmed", err, "txid", txid)
	}
	return s.done(ctx, kp, amount, txid)
}

// blockDepth converts bitcoind's confirmation count, 1 in the tip block, into
// blocks mined on top, the measure the tracker applies to deposits.
func blockDepth(confirmations uint64) uint64 {
	if confirmations == 0 {
		return 0
	}
	return confirmations - 1
}
