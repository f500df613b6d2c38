package constant

import "time"

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	DefaultMnemonicEnv = "MASTER_MNEMONIC"

	DefaultEthereumConfirmations = 12
	DefaultBitcoinConfirmations  = 6

	// Solana commitment levels expressed as confirmation counts.
	SolanaProcessedConfirmations = 1
	SolanaConfirmedConfirmations = 8
	SolanaFinalizedConfirmations = 32

	DefaultSolanaPollAttempts = 10
	DefaultSolanaPollDelay    = 2 * time.Second

	// 0.005 SOL left behind on every swept address.
	DefaultSolanaReserveLamports = 5_000_000
	DefaultLamportsPerSignature  = 5_000

	EthereumTransferGas = 21_000

	DefaultBitcoinFeeRate = 10 // sat/vB when estimatesmartfee has no answer

	DefaultMaxBackfill      = 128
	DefaultPollInterval     = 10 * time.Second
	DefaultRefreshInterval  = 30 * time.Second
	DefaultTrackerInterval  = 15 * time.Second
	DefaultPendingBatchSize = 500
)
