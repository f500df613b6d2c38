package sweeper

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/fystack/deposit-indexer/internal/rpc/ethereum"
	"github.com/fystack/deposit-indexer/pkg/common/constant"
)

type EthereumSource interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

var errReverted = errors.New("transaction reverted")

// EthereumSweeper sends one legacy value transfer per sweep.
type EthereumSweeper struct {
	base
	client EthereumSource
	cold   common.Address
}

func NewEthereumSweeper(client EthereumSource, deps Deps) (*EthereumSweeper, error) {
	b, err := newBase(deps, 15*time.Minute)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(deps.Target.ColdAddress) {
		return nil, fmt.Errorf("ethereum cold address %q is not a hex address", deps.Target.ColdAddress)
	}
	return &EthereumSweeper{base: b, client: client, cold: common.HexToAddress(deps.Target.ColdAddress)}, nil
}

func (s *EthereumSweeper) Sweep(ctx context.Context, index uint32) (SweepResult, error) {
	kp, err := s.derive(index)
	if err != nil {
		return SweepResult{}, err
	}
	from := common.HexToAddress(kp.Address)

	balance, err := s.client.BalanceAt(ctx, from, nil)
	if err != nil {
		return s.fail(kp, "Failed to read balance", err)
	}
	if balance.Cmp(s.reserve) <= 0 {
		return s.skip(kp, "balance within reserve", "balance", balance.String(), "reserve", s.reserve.String())
	}

	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return s.fail(kp, "Failed to fetch gas price", err)
	}
	fee := new(big.Int).Mul(gasPrice, big.NewInt(constant.EthereumTransferGas))
	amount, ok := Plan(balance, s.reserve, fee)
	if !ok {
		return s.skip(kp, "balance does not cover reserve and fee",
			"balance", balance.String(), "reserve", s.reserve.String(), "fee", fee.String())
	}

	chainID, err := s.client.ChainID(ctx)
	if err != nil {
		return s.fail(kp, "Failed to fetch chain id", err)
	}
	nonce, err := s.client.PendingNonceAt(ctx, from)
	if err != nil {
		return s.fail(kp, "Failed to fetch nonce", err)
	}

	tx, err := types.SignTx(types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &s.cold,
		Value:    amount,
		Gas:      constant.EthereumTransferGas,
		GasPrice: gasPrice,
	}), types.LatestSignerForChainID(chainID), kp.ECDSA())
	if err != nil {
		return s.fail(kp, "Failed to sign transfer", err)
	}
	if err := s.client.SendTransaction(ctx, tx); err != nil {
		return s.fail(kp, "Failed to send transfer", err, "amount", amount.String())
	}
	hash := tx.Hash()
	s.log.Info("Sweep broadcast", "index", index, "tx", hash.Hex(), "amount", amount.String(), "nonce", nonce)

	if err := s.wait(ctx, s.deps.Config.PollInterval, func(ctx context.Context) (bool, error) {
		return s.confirmed(ctx, hash)
	}); err != nil {
		return s.fail(kp, "Sweep not confirmed", err, "tx", hash.Hex())
	}
	return s.done(ctx, kp, amount, hash.Hex())
}

// confirmed reports whether the receipt is successful and deep enough.
func (s *EthereumSweeper) confirmed(ctx context.Context, hash common.Hash) (bool, error) {
	receipt, err := s.client.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		s.log.Debug("Receipt lookup failed", "tx", hash.Hex(), "err", err)
		return false, nil
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return false, errReverted
	}
	head, err := s.client.BlockNumber(ctx)
	if err != nil {
		return false, nil
	}
	ref := receipt.BlockNumber.Uint64()
	return head >= ref && head-ref >= s.deps.Config.Confirmations, nil
}
