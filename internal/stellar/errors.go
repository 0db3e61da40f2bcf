package stellar

import (
	"errors"
	"fmt"
)

var (
	// ErrAccountNotFound means the ledger has no entry for the account,
	// which on a test network usually means it was never funded.
	ErrAccountNotFound = errors.New("account not found")
	// ErrTransport covers failures to reach or decode a gateway response.
	ErrTransport = errors.New("gateway unreachable")
)

// RPCError is an error object returned by the Soroban RPC server itself.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// SimulationError reports a simulation that ran but did not succeed, for
// example because the contract call trapped.
type SimulationError struct {
	Message string
}

func (e *SimulationError) Error() string {
	return "simulation failed: " + e.Message
}
