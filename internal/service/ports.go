package service

import (
	"context"

	"github.com/stellar/go/xdr"

	"github.com/jask/sorodeposit/internal/stellar"
	"github.com/jask/sorodeposit/internal/wallet"
)

// WalletGateway grants access, reveals the address and signs envelopes.
type WalletGateway interface {
	RequestAccess(ctx context.Context) (bool, error)
	GetAddress(ctx context.Context) (wallet.AddressResult, error)
	SignTransaction(ctx context.Context, envelopeXDR string, opts wallet.SignOptions) (wallet.SignResult, error)
}

// AccountLoader reads account records (Horizon).
type AccountLoader interface {
	LoadAccount(ctx context.Context, address string) (stellar.Account, error)
}

// ContractRPC is the Soroban RPC surface the flows use.
type ContractRPC interface {
	GetAccount(ctx context.Context, address string) (int64, error)
	PrepareTransaction(ctx context.Context, inv stellar.Invocation) (string, error)
	Call(ctx context.Context, inv stellar.Invocation) (xdr.ScVal, bool, error)
	SendTransaction(ctx context.Context, envelopeXDR string) (stellar.SendResult, error)
	GetTransaction(ctx context.Context, hash string) (stellar.TransactionStatus, error)
	GetNetwork(ctx context.Context) (stellar.NetworkInfo, error)
}
