package service

import (
	"errors"
	"fmt"
)

var (
	ErrAccessDenied        = errors.New("wallet access denied")
	ErrWalletLocked        = errors.New("wallet is locked")
	ErrNotConnected        = errors.New("wallet not connected")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient contract balance")
	ErrWithdrawDisabled    = errors.New("withdraw is disabled")
	ErrUserRejected        = errors.New("transaction rejected by user")
	ErrRejectedByNetwork   = errors.New("transaction rejected by network")
	ErrTransactionFailed   = errors.New("transaction failed on network")
	ErrTimeout             = errors.New("transaction confirmation timed out")
	ErrGatewayUnreachable  = errors.New("network unreachable")
	ErrAccountNotFound     = errors.New("account not funded")
	ErrNetworkMismatch     = errors.New("network passphrase mismatch")
)

// Operation names carried by OperationError.
const (
	OpConnect      = "connect"
	OpDeposit      = "deposit"
	OpWithdraw     = "withdraw"
	OpCheckNetwork = "check_network"
)

// OperationError records which flow failed and in which phase.
type OperationError struct {
	Operation string
	Phase     Phase
	Err       error
}

func (e OperationError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Operation, e.Phase, e.Err)
}

func (e OperationError) Unwrap() error {
	return e.Err
}

func wrapOp(operation string, phase Phase, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{Operation: operation, Phase: phase, Err: err}
}

// UserMessage turns any flow error into one short line for the status bar.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrAccessDenied):
		return "Please approve the connection in your wallet"
	case errors.Is(err, ErrWalletLocked):
		return "Wallet is locked. Please unlock your wallet"
	case errors.Is(err, ErrNotConnected):
		return "Please connect your wallet first"
	case errors.Is(err, ErrInvalidAmount):
		return "Please enter a valid amount"
	case errors.Is(err, ErrInsufficientBalance):
		return "Insufficient contract balance"
	case errors.Is(err, ErrWithdrawDisabled):
		return "Withdraw is disabled"
	case errors.Is(err, ErrUserRejected):
		return "Transaction rejected"
	case errors.Is(err, ErrRejectedByNetwork):
		return "Transaction rejected by network"
	case errors.Is(err, ErrTransactionFailed):
		return "Transaction failed on network"
	case errors.Is(err, ErrTimeout):
		return "Transaction timeout"
	case errors.Is(err, ErrAccountNotFound):
		return "Account not funded"
	case errors.Is(err, ErrGatewayUnreachable):
		return "Network unreachable, please try again"
	case errors.Is(err, ErrNetworkMismatch):
		return "RPC server is on a different network than configured"
	}

	var opErr OperationError
	if errors.As(err, &opErr) {
		if opErr.Err != nil && opErr.Err.Error() != "" {
			return opErr.Err.Error()
		}
		if opErr.Operation == OpConnect {
			return "Failed to connect wallet"
		}
		return "Transaction failed"
	}
	return err.Error()
}
