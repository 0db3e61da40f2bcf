package stellar

import (
	"fmt"

	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"
)

// DefaultTimeout bounds the validity window of every invocation envelope,
// in seconds.
const DefaultTimeout int64 = 30

// Invocation describes one contract call made from Source. It carries enough
// to rebuild the envelope after simulation.
type Invocation struct {
	Source   string
	Sequence int64
	Contract string
	Function string
	Args     []xdr.ScVal
	Timeout  int64
}

// NewInvocation builds a call of fn on contract with the source account's
// current sequence number.
func NewInvocation(source string, sequence int64, contract, fn string, args ...xdr.ScVal) Invocation {
	return Invocation{
		Source:   source,
		Sequence: sequence,
		Contract: contract,
		Function: fn,
		Args:     args,
		Timeout:  DefaultTimeout,
	}
}

func (inv Invocation) hostFunction() (xdr.HostFunction, error) {
	contract, err := scAddress(inv.Contract)
	if err != nil {
		return xdr.HostFunction{}, err
	}
	return xdr.HostFunction{
		Type: xdr.HostFunctionTypeHostFunctionTypeInvokeContract,
		InvokeContract: &xdr.InvokeContractArgs{
			ContractAddress: contract,
			FunctionName:    xdr.ScSymbol(inv.Function),
			Args:            inv.Args,
		},
	}, nil
}

// Transaction builds the unprepared envelope at the minimum base fee, ready
// for simulation.
func (inv Invocation) Transaction() (*txnbuild.Transaction, error) {
	return inv.build(txnbuild.MinBaseFee, nil, nil)
}

func (inv Invocation) build(fee int64, auth []xdr.SorobanAuthorizationEntry, data *xdr.SorobanTransactionData) (*txnbuild.Transaction, error) {
	fn, err := inv.hostFunction()
	if err != nil {
		return nil, err
	}
	op := &txnbuild.InvokeHostFunction{
		HostFunction:  fn,
		Auth:          auth,
		SourceAccount: inv.Source,
	}
	if data != nil {
		op.Ext = xdr.TransactionExt{V: 1, SorobanData: data}
	}
	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &txnbuild.SimpleAccount{AccountID: inv.Source, Sequence: inv.Sequence},
		IncrementSequenceNum: true,
		Operations:           []txnbuild.Operation{op},
		BaseFee:              fee,
		Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewTimeout(timeout)},
	})
	if err != nil {
		return nil, fmt.Errorf("build %s transaction: %w", inv.Function, err)
	}
	return tx, nil
}

// Prepared applies a successful simulation: resource data, auth entries and
// the resource fee on top of the inclusion fee.
func (inv Invocation) Prepared(sim SimulateResult) (*txnbuild.Transaction, error) {
	if sim.Error != "" {
		return nil, &SimulationError{Message: sim.Error}
	}
	if sim.TransactionData == "" {
		return nil, &SimulationError{Message: "missing transaction data"}
	}
	var data xdr.SorobanTransactionData
	if err := xdr.SafeUnmarshalBase64(sim.TransactionData, &data); err != nil {
		return nil, fmt.Errorf("decode transaction data: %w", err)
	}
	var auth []xdr.SorobanAuthorizationEntry
	if len(sim.Results) > 0 {
		for _, raw := range sim.Results[0].Auth {
			var entry xdr.SorobanAuthorizationEntry
			if err := xdr.SafeUnmarshalBase64(raw, &entry); err != nil {
				return nil, fmt.Errorf("decode auth entry: %w", err)
			}
			auth = append(auth, entry)
		}
	}
	return inv.build(txnbuild.MinBaseFee+sim.MinResourceFee, auth, &data)
}
