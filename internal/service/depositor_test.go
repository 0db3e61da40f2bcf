package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jask/sorodeposit/internal/poll"
	"github.com/jask/sorodeposit/internal/stellar"
	"github.com/jask/sorodeposit/internal/wallet"
)

const testContract = "CDFBALTD7L6ZX4VUJ5NVQNUXJNGAVLUIY7IUY52OME3QXLWQUVGHWOHV"

type fakeWallet struct {
	granted   bool
	accessErr error
	address   wallet.AddressResult
	addrErr   error
	signErr   error

	accessCalls int
	addrCalls   int
	signCalls   int
}

func (f *fakeWallet) RequestAccess(context.Context) (bool, error) {
	f.accessCalls++
	return f.granted, f.accessErr
}

func (f *fakeWallet) GetAddress(context.Context) (wallet.AddressResult, error) {
	f.addrCalls++
	return f.address, f.addrErr
}

func (f *fakeWallet) SignTransaction(_ context.Context, envelopeXDR string, opts wallet.SignOptions) (wallet.SignResult, error) {
	f.signCalls++
	if f.signErr != nil {
		return wallet.SignResult{}, f.signErr
	}
	if opts.NetworkPassphrase != network.TestNetworkPassphrase {
		return wallet.SignResult{}, fmt.Errorf("unexpected passphrase %q", opts.NetworkPassphrase)
	}
	return wallet.SignResult{SignedTxXDR: envelopeXDR}, nil
}

type fakeAccounts struct {
	account stellar.Account
	err     error
	calls   int
}

func (f *fakeAccounts) LoadAccount(context.Context, string) (stellar.Account, error) {
	f.calls++
	return f.account, f.err
}

type fakeRPC struct {
	seq        int64
	accountErr error
	prepareErr error
	callValue  *xdr.ScVal
	callErr    error
	send       stellar.SendResult
	sendErr    error
	statuses   []string
	passphrase string

	calls    int
	prepared []stellar.Invocation
	sent     []string
	polls    int
}

func (f *fakeRPC) GetAccount(context.Context, string) (int64, error) {
	f.calls++
	return f.seq, f.accountErr
}

func (f *fakeRPC) PrepareTransaction(_ context.Context, inv stellar.Invocation) (string, error) {
	f.calls++
	f.prepared = append(f.prepared, inv)
	if f.prepareErr != nil {
		return "", f.prepareErr
	}
	tx, err := inv.Transaction()
	if err != nil {
		return "", err
	}
	return tx.Base64()
}

func (f *fakeRPC) Call(context.Context, stellar.Invocation) (xdr.ScVal, bool, error) {
	f.calls++
	if f.callErr != nil {
		return xdr.ScVal{}, false, f.callErr
	}
	if f.callValue == nil {
		return xdr.ScVal{}, false, nil
	}
	return *f.callValue, true, nil
}

func (f *fakeRPC) SendTransaction(_ context.Context, envelopeXDR string) (stellar.SendResult, error) {
	f.calls++
	f.sent = append(f.sent, envelopeXDR)
	return f.send, f.sendErr
}

func (f *fakeRPC) GetTransaction(context.Context, string) (stellar.TransactionStatus, error) {
	f.calls++
	f.polls++
	status := stellar.TxNotFound
	if f.polls <= len(f.statuses) {
		status = f.statuses[f.polls-1]
	}
	return stellar.TransactionStatus{Status: status, Ledger: 77}, nil
}

func (f *fakeRPC) GetNetwork(context.Context) (stellar.NetworkInfo, error) {
	f.calls++
	return stellar.NetworkInfo{Passphrase: f.passphrase}, nil
}

type fakeClock struct {
	slept time.Duration
	naps  int
}

func (c *fakeClock) sleep(_ context.Context, d time.Duration) error {
	c.slept += d
	c.naps++
	return nil
}

type harness struct {
	wallet   *fakeWallet
	accounts *fakeAccounts
	rpc      *fakeRPC
	clock    *fakeClock
	dep      *Depositor
	address  string
	phases   []Phase
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		address:  keypair.MustRandom().Address(),
		accounts: &fakeAccounts{},
		rpc:      &fakeRPC{seq: 100, send: stellar.SendResult{Status: stellar.SendPending, Hash: "feedface"}},
		clock:    &fakeClock{},
	}
	h.wallet = &fakeWallet{granted: true, address: wallet.AddressResult{Address: h.address}}
	poller := poll.New(poll.Policy{Interval: time.Second, MaxAttempts: 20}, poll.WithSleeper(h.clock.sleep))
	h.dep = NewDepositor(h.wallet, h.accounts, h.rpc, poller, Settings{
		Contract:          testContract,
		NetworkPassphrase: network.TestNetworkPassphrase,
		Withdraw:          true,
	}, WithIDs(func() string { return "sub-1" }))
	return h
}

func (h *harness) submit(dir Direction, amt string, known Balance) (Receipt, error) {
	return h.dep.Submit(context.Background(), SubmitRequest{
		Direction:            dir,
		Amount:               amt,
		Address:              h.address,
		KnownContractBalance: known,
	}, func(p Phase) { h.phases = append(h.phases, p) })
}

func contractBalance(s string) Balance {
	d := decimal.RequireFromString(s)
	return knownBalance(d, s)
}

func TestSubmitRejectsBadAmountsBeforeAnyGatewayCall(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "abc", "0", "-5", "0.00000001", "1e"} {
		h := newHarness(t)
		_, err := h.submit(Deposit, raw, Balance{})
		require.ErrorIs(t, err, ErrInvalidAmount, raw)
		require.Equal(t, "Please enter a valid amount", UserMessage(err))
		require.Zero(t, h.rpc.calls)
		require.Zero(t, h.wallet.signCalls)
		require.Empty(t, h.phases)
	}
}

func TestSubmitWithdrawAboveContractBalance(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	_, err := h.submit(Withdraw, "10.5", contractBalance("10.0000000"))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Zero(t, h.rpc.calls)
	require.Empty(t, h.phases)

	_, err = h.submit(Withdraw, "1", Balance{State: BalanceError})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Zero(t, h.rpc.calls)
}

func TestSubmitRequiresConnection(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	_, err := h.dep.Submit(context.Background(), SubmitRequest{Direction: Deposit, Amount: "1"}, nil)
	require.ErrorIs(t, err, ErrNotConnected)
	require.Equal(t, "Please connect your wallet first", UserMessage(err))
	require.Zero(t, h.rpc.calls)
}

func TestSubmitWithdrawDisabled(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.dep.settings.Withdraw = false
	_, err := h.submit(Withdraw, "1", contractBalance("5"))
	require.ErrorIs(t, err, ErrWithdrawDisabled)
	require.Zero(t, h.rpc.calls)
}

func TestSubmitConfirmedOnThirdPoll(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.rpc.statuses = []string{stellar.TxNotFound, stellar.TxNotFound, stellar.TxSuccess}

	rec, err := h.submit(Deposit, "2.5", Balance{})
	require.NoError(t, err)
	require.Equal(t, "sub-1", rec.ID)
	require.Equal(t, "feedface", rec.Hash)
	require.Equal(t, 3, rec.Attempts)
	require.Equal(t, uint32(77), rec.Ledger)
	require.Equal(t, "Successfully deposited 2.5 XLM!", rec.Message())
	require.Equal(t, 3, h.rpc.polls)
	require.Equal(t, 3*time.Second, h.clock.slept)

	require.Equal(t, []Phase{
		PhaseBuilding,
		PhasePreparing,
		PhaseAwaitingSignature,
		PhaseSubmitting,
		PhaseAwaitingConfirmation,
		PhaseConfirmed,
	}, h.phases)

	require.Len(t, h.rpc.prepared, 1)
	inv := h.rpc.prepared[0]
	require.Equal(t, "deposit", inv.Function)
	require.Equal(t, testContract, inv.Contract)
	require.Equal(t, int64(100), inv.Sequence)
	require.Equal(t, stellar.DefaultTimeout, inv.Timeout)
	require.Len(t, inv.Args, 2)

	from, err := stellar.DecodeAddress(inv.Args[0])
	require.NoError(t, err)
	require.Equal(t, h.address, from)
	stroops, err := stellar.DecodeI128(inv.Args[1])
	require.NoError(t, err)
	require.Equal(t, int64(25_000_000), stroops.Int64())

	require.Len(t, h.rpc.sent, 1)
}

func TestSubmitWithdrawCallsWithdraw(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.rpc.statuses = []string{stellar.TxSuccess}

	rec, err := h.submit(Withdraw, "3", contractBalance("3.0000000"))
	require.NoError(t, err)
	require.Equal(t, "Successfully withdrew 3 XLM!", rec.Message())
	require.Equal(t, "withdraw", h.rpc.prepared[0].Function)
}

func TestSubmitTimesOutAfterTwentyPolls(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	_, err := h.submit(Deposit, "1", Balance{})
	require.ErrorIs(t, err, ErrTimeout)
	require.Equal(t, "Transaction timeout", UserMessage(err))
	require.Equal(t, 20, h.rpc.polls)
	require.Equal(t, 20, h.clock.naps)
	require.Equal(t, 20*time.Second, h.clock.slept)
	require.NotContains(t, h.phases, PhaseConfirmed)
	require.Equal(t, PhaseTimedOut, h.phases[len(h.phases)-1])

	var opErr OperationError
	require.ErrorAs(t, err, &opErr)
	require.Equal(t, OpDeposit, opErr.Operation)
	require.Equal(t, PhaseAwaitingConfirmation, opErr.Phase)
}

func TestSubmitFailedOnNetwork(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.rpc.statuses = []string{stellar.TxNotFound, stellar.TxFailed}

	_, err := h.submit(Deposit, "1", Balance{})
	require.ErrorIs(t, err, ErrTransactionFailed)
	require.Equal(t, 2, h.rpc.polls)
	require.Equal(t, PhaseFailed, h.phases[len(h.phases)-1])
}

func TestSubmitUserRejectsSignature(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.wallet.signErr = wallet.ErrRejected

	_, err := h.submit(Deposit, "1", Balance{})
	require.ErrorIs(t, err, ErrUserRejected)
	require.Equal(t, "Transaction rejected", UserMessage(err))
	require.Empty(t, h.rpc.sent)

	var opErr OperationError
	require.ErrorAs(t, err, &opErr)
	require.Equal(t, PhaseAwaitingSignature, opErr.Phase)
}

func TestSubmitSigningErrorVerbatim(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.wallet.signErr = errors.New("hardware wallet disconnected")

	_, err := h.submit(Deposit, "1", Balance{})
	require.Error(t, err)
	require.Equal(t, "hardware wallet disconnected", UserMessage(err))
}

func TestSubmitRejectedByNetwork(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.rpc.send = stellar.SendResult{Status: stellar.SendError, Hash: "feedface"}

	_, err := h.submit(Deposit, "1", Balance{})
	require.ErrorIs(t, err, ErrRejectedByNetwork)
	require.Zero(t, h.rpc.polls)
}

func TestSubmitGatewayUnreachable(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.rpc.prepareErr = fmt.Errorf("simulateTransaction: %w: dial tcp", stellar.ErrTransport)

	_, err := h.submit(Deposit, "1", Balance{})
	require.ErrorIs(t, err, ErrGatewayUnreachable)
	require.Equal(t, "Network unreachable, please try again", UserMessage(err))
	require.Zero(t, h.wallet.signCalls)
}

func TestSubmitUnfundedAccount(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.rpc.accountErr = stellar.ErrAccountNotFound

	_, err := h.submit(Deposit, "1", Balance{})
	require.ErrorIs(t, err, ErrAccountNotFound)
	require.Equal(t, []Phase{PhaseBuilding, PhaseFailed}, h.phases)
}

func TestConnect(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	addr, err := h.dep.Connect(context.Background())
	require.NoError(t, err)
	require.Equal(t, h.address, addr)
}

func TestConnectDeclinedFetchesNothing(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.wallet.granted = false

	_, err := h.dep.Connect(context.Background())
	require.ErrorIs(t, err, ErrAccessDenied)
	require.Zero(t, h.wallet.addrCalls)
	require.Zero(t, h.accounts.calls)
	require.Zero(t, h.rpc.calls)

	h.wallet.accessErr = wallet.ErrRejected
	_, err = h.dep.Connect(context.Background())
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestConnectLockedAndGatewayError(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.wallet.address = wallet.AddressResult{}
	_, err := h.dep.Connect(context.Background())
	require.ErrorIs(t, err, ErrWalletLocked)
	require.Equal(t, "Wallet is locked. Please unlock your wallet", UserMessage(err))

	h.wallet.address = wallet.AddressResult{Error: "keystore unreadable"}
	_, err = h.dep.Connect(context.Background())
	require.Error(t, err)
	require.Equal(t, "keystore unreadable", UserMessage(err))
}

func TestReconcileSwallowsFailures(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	addr, ok := h.dep.Reconcile(context.Background())
	require.True(t, ok)
	require.Equal(t, h.address, addr)
	require.Zero(t, h.wallet.accessCalls)

	h.wallet.addrErr = errors.New("boom")
	_, ok = h.dep.Reconcile(context.Background())
	require.False(t, ok)
}

func TestWalletBalance(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.accounts.account = stellar.Account{Balances: []stellar.Balance{
		{AssetType: "credit_alphanum4", AssetCode: "USDC", Balance: "5.0000000"},
		{AssetType: "native", Balance: "9999.9950000"},
	}}
	require.Equal(t, "10000.00", h.dep.WalletBalance(context.Background(), h.address).String())

	h.accounts.account = stellar.Account{}
	require.Equal(t, "0", h.dep.WalletBalance(context.Background(), h.address).String())

	h.accounts.err = fmt.Errorf("load: %w", stellar.ErrAccountNotFound)
	bal := h.dep.WalletBalance(context.Background(), h.address)
	require.Equal(t, BalanceNotFunded, bal.State)
	require.Equal(t, "0 (Not funded)", bal.String())

	h.accounts.err = fmt.Errorf("load: %w", stellar.ErrTransport)
	require.Equal(t, "Error", h.dep.WalletBalance(context.Background(), h.address).String())
}

func TestContractBalance(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	v, err := stellar.I128Val(decimal.NewFromInt(25_000_000).BigInt())
	require.NoError(t, err)
	h.rpc.callValue = &v

	bal := h.dep.ContractBalance(context.Background(), h.address)
	require.Equal(t, BalanceKnown, bal.State)
	require.Equal(t, "2.5000000", bal.String())
	require.True(t, bal.Amount.Equal(decimal.RequireFromString("2.5")))

	h.rpc.callValue = nil
	require.Equal(t, "0", h.dep.ContractBalance(context.Background(), h.address).String())

	h.rpc.callErr = &stellar.SimulationError{Message: "trapped"}
	require.Equal(t, "0", h.dep.ContractBalance(context.Background(), h.address).String())

	h.rpc.callErr = fmt.Errorf("simulateTransaction: %w", stellar.ErrTransport)
	require.Equal(t, "Error", h.dep.ContractBalance(context.Background(), h.address).String())
}

func TestTokenAddress(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	v, err := stellar.AddressVal(testContract)
	require.NoError(t, err)
	h.rpc.callValue = &v

	token, err := h.dep.TokenAddress(context.Background(), h.address)
	require.NoError(t, err)
	require.Equal(t, testContract, token)
}

func TestCheckNetwork(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.rpc.passphrase = network.TestNetworkPassphrase
	require.NoError(t, h.dep.CheckNetwork(context.Background()))

	h.rpc.passphrase = network.PublicNetworkPassphrase
	err := h.dep.CheckNetwork(context.Background())
	require.ErrorIs(t, err, ErrNetworkMismatch)
}

func TestPhases(t *testing.T) {
	t.Parallel()

	require.Equal(t, "awaiting_signature", PhaseAwaitingSignature.String())
	require.True(t, PhaseTimedOut.Terminal())
	require.False(t, PhaseSubmitting.Terminal())
	require.Empty(t, PhaseIdle.Step())
	require.Equal(t, "Waiting for confirmation...", PhaseAwaitingConfirmation.Step())
}

func TestWithLoggerRecordsFlowEvents(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	w := &fakeWallet{granted: true, address: wallet.AddressResult{Address: "GABC"}}
	dep := NewDepositor(w, &fakeAccounts{}, &fakeRPC{}, nil, Settings{}, WithLogger(zap.New(core).Sugar()))

	_, err := dep.Connect(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, logs.FilterMessage("wallet connected").Len())

	quiet := NewDepositor(w, &fakeAccounts{}, &fakeRPC{}, nil, Settings{}, WithLogger(nil))
	_, err = quiet.Connect(context.Background())
	require.NoError(t, err)
}
