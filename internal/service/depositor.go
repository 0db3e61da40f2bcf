package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"
	"go.uber.org/zap"

	"github.com/jask/sorodeposit/internal/amount"
	"github.com/jask/sorodeposit/internal/poll"
	"github.com/jask/sorodeposit/internal/stellar"
	"github.com/jask/sorodeposit/internal/wallet"
)

// Settings fixes the network and contract a Depositor works against.
type Settings struct {
	Contract          string
	NetworkPassphrase string
	Withdraw          bool
}

// SubmitRequest is one deposit or withdraw attempt. Amount is the raw input;
// KnownContractBalance is the last contract balance the user saw.
type SubmitRequest struct {
	Direction            Direction
	Amount               string
	Address              string
	KnownContractBalance Balance
}

// Receipt describes a confirmed submission.
type Receipt struct {
	ID        string
	Direction Direction
	Amount    decimal.Decimal
	Hash      string
	Ledger    uint32
	Attempts  int
}

// Message is the success line for a confirmed submission.
func (r Receipt) Message() string {
	return fmt.Sprintf("Successfully %s %s XLM!", r.Direction.pastTense(), r.Amount.String())
}

// Progress observes phase transitions of a submission.
type Progress func(Phase)

// Depositor runs the connect, balance and submit flows against the gateways.
type Depositor struct {
	wallet   WalletGateway
	accounts AccountLoader
	rpc      ContractRPC
	poller   *poll.Poller
	settings Settings
	logs     *zap.SugaredLogger
	newID    func() string
}

// Option configures a Depositor.
type Option func(*Depositor)

// WithLogger sets the logger for flow events. A nil logger keeps the no-op
// default.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(d *Depositor) {
		if logger != nil {
			d.logs = logger
		}
	}
}

// WithIDs replaces the submission id generator.
func WithIDs(newID func() string) Option {
	return func(d *Depositor) {
		d.newID = newID
	}
}

func NewDepositor(w WalletGateway, accounts AccountLoader, rpc ContractRPC, poller *poll.Poller, settings Settings, opts ...Option) *Depositor {
	d := &Depositor{
		wallet:   w,
		accounts: accounts,
		rpc:      rpc,
		poller:   poller,
		settings: settings,
		logs:     zap.NewNop().Sugar(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Depositor) Settings() Settings {
	return d.settings
}

// Connect asks the wallet for access and returns the connected address.
func (d *Depositor) Connect(ctx context.Context) (string, error) {
	granted, err := d.wallet.RequestAccess(ctx)
	if errors.Is(err, wallet.ErrRejected) {
		granted, err = false, nil
	}
	if err != nil {
		d.logs.Errorw("request access failed", "error", err)
		return "", wrapOp(OpConnect, PhaseIdle, err)
	}
	if !granted {
		return "", wrapOp(OpConnect, PhaseIdle, ErrAccessDenied)
	}

	res, err := d.wallet.GetAddress(ctx)
	if err != nil {
		d.logs.Errorw("get address failed", "error", err)
		return "", wrapOp(OpConnect, PhaseIdle, err)
	}
	if res.Error != "" {
		return "", wrapOp(OpConnect, PhaseIdle, errors.New(res.Error))
	}
	if res.Address == "" {
		return "", wrapOp(OpConnect, PhaseIdle, ErrWalletLocked)
	}
	d.logs.Infow("wallet connected", "address", res.Address)
	return res.Address, nil
}

// Reconcile silently looks for an already-authorised address. Every failure
// reads as "not connected".
func (d *Depositor) Reconcile(ctx context.Context) (string, bool) {
	res, err := d.wallet.GetAddress(ctx)
	if err != nil {
		d.logs.Debugw("reconcile skipped", "error", err)
		return "", false
	}
	if res.Error != "" || res.Address == "" {
		return "", false
	}
	return res.Address, true
}

// WalletBalance reads the native balance, formatted to 2 places.
func (d *Depositor) WalletBalance(ctx context.Context, address string) Balance {
	acct, err := d.accounts.LoadAccount(ctx, address)
	if errors.Is(err, stellar.ErrAccountNotFound) {
		return Balance{State: BalanceNotFunded}
	}
	if err != nil {
		d.logs.Errorw("load account failed", "address", address, "error", err)
		return Balance{State: BalanceError}
	}
	raw, ok := acct.NativeBalance()
	if !ok {
		return knownBalance(decimal.Zero, "0")
	}
	bal, err := amount.ParseBalance(raw)
	if err != nil {
		d.logs.Errorw("parse native balance failed", "address", address, "raw", raw, "error", err)
		return Balance{State: BalanceError}
	}
	return knownBalance(bal, amount.FormatWallet(bal))
}

// ContractBalance simulates get_balance(address), formatted to 7 places. A
// simulation that fails or returns nothing reads as zero.
func (d *Depositor) ContractBalance(ctx context.Context, address string) Balance {
	v, ok, err := d.readOnly(ctx, address, "get_balance", true)
	var simErr *stellar.SimulationError
	switch {
	case errors.Is(err, stellar.ErrAccountNotFound), errors.As(err, &simErr):
		d.logs.Debugw("contract balance unavailable", "address", address, "error", err)
		return knownBalance(decimal.Zero, "0")
	case err != nil:
		d.logs.Errorw("contract balance failed", "address", address, "error", err)
		return Balance{State: BalanceError}
	case !ok:
		return knownBalance(decimal.Zero, "0")
	}
	stroops, err := stellar.DecodeI128(v)
	if err != nil {
		d.logs.Errorw("decode contract balance failed", "address", address, "error", err)
		return knownBalance(decimal.Zero, "0")
	}
	bal := amount.FromStroops(stroops)
	return knownBalance(bal, amount.FormatContract(bal))
}

// TokenAddress reads the token the contract accepts via get_token.
func (d *Depositor) TokenAddress(ctx context.Context, address string) (string, error) {
	v, ok, err := d.readOnly(ctx, address, "get_token", false)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("get_token returned no value")
	}
	return stellar.DecodeAddress(v)
}

func (d *Depositor) readOnly(ctx context.Context, address, fn string, withAddress bool) (xdr.ScVal, bool, error) {
	seq, err := d.rpc.GetAccount(ctx, address)
	if err != nil {
		return xdr.ScVal{}, false, err
	}
	var args []xdr.ScVal
	if withAddress {
		who, err := stellar.AddressVal(address)
		if err != nil {
			return xdr.ScVal{}, false, err
		}
		args = append(args, who)
	}
	return d.rpc.Call(ctx, stellar.NewInvocation(address, seq, d.settings.Contract, fn, args...))
}

// CheckNetwork verifies the RPC server serves the configured network.
func (d *Depositor) CheckNetwork(ctx context.Context) error {
	info, err := d.rpc.GetNetwork(ctx)
	if err != nil {
		return wrapOp(OpCheckNetwork, PhaseIdle, gatewayErr(err))
	}
	if info.Passphrase != d.settings.NetworkPassphrase {
		d.logs.Errorw("network mismatch", "configured", d.settings.NetworkPassphrase, "rpc", info.Passphrase)
		return wrapOp(OpCheckNetwork, PhaseIdle, fmt.Errorf("%w: rpc serves %q", ErrNetworkMismatch, info.Passphrase))
	}
	return nil
}

// Validate applies the local guards of Submit: a positive amount, a
// connected address and, for withdraw, enough contract balance.
func (d *Depositor) Validate(req SubmitRequest) (decimal.Decimal, error) {
	op := req.Direction.String()
	amt, err := amount.ParsePositive(req.Amount)
	if err != nil {
		return decimal.Zero, wrapOp(op, PhaseIdle, fmt.Errorf("%w: %w", ErrInvalidAmount, err))
	}
	if req.Address == "" {
		return decimal.Zero, wrapOp(op, PhaseIdle, ErrNotConnected)
	}
	if req.Direction == Withdraw {
		if !d.settings.Withdraw {
			return decimal.Zero, wrapOp(op, PhaseIdle, ErrWithdrawDisabled)
		}
		if req.KnownContractBalance.State != BalanceKnown || amt.GreaterThan(req.KnownContractBalance.Amount) {
			return decimal.Zero, wrapOp(op, PhaseIdle, ErrInsufficientBalance)
		}
	}
	return amt, nil
}

// Submit runs one deposit or withdraw through to confirmation. progress sees
// every phase entered, ending with a terminal phase once the gateways are
// involved. Guards fail without calling any gateway.
func (d *Depositor) Submit(ctx context.Context, req SubmitRequest, progress Progress) (Receipt, error) {
	if progress == nil {
		progress = func(Phase) {}
	}
	op := req.Direction.String()

	amt, err := d.Validate(req)
	if err != nil {
		return Receipt{}, err
	}

	rec := Receipt{ID: d.newID(), Direction: req.Direction, Amount: amt}
	logs := d.logs.With("submission_id", rec.ID, "direction", op, "address", req.Address, "amount", amt.String())

	phase := PhaseIdle
	enter := func(p Phase) {
		phase = p
		logs.Infow("phase", "phase", p.String())
		progress(p)
	}
	fail := func(err error) (Receipt, error) {
		failed := phase
		terminal := PhaseFailed
		if errors.Is(err, ErrTimeout) {
			terminal = PhaseTimedOut
		}
		logs.Errorw("submission failed", "phase", failed.String(), "error", err)
		enter(terminal)
		return Receipt{}, wrapOp(op, failed, err)
	}

	enter(PhaseBuilding)
	seq, err := d.rpc.GetAccount(ctx, req.Address)
	if err != nil {
		if errors.Is(err, stellar.ErrAccountNotFound) {
			return fail(fmt.Errorf("%w: %w", ErrAccountNotFound, err))
		}
		return fail(gatewayErr(err))
	}
	who, err := stellar.AddressVal(req.Address)
	if err != nil {
		return fail(err)
	}
	stroops, err := stellar.I128Val(amount.ToStroops(amt))
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrInvalidAmount, err))
	}
	inv := stellar.NewInvocation(req.Address, seq, d.settings.Contract, op, who, stroops)

	enter(PhasePreparing)
	prepared, err := d.rpc.PrepareTransaction(ctx, inv)
	if err != nil {
		return fail(gatewayErr(err))
	}

	enter(PhaseAwaitingSignature)
	signed, err := d.wallet.SignTransaction(ctx, prepared, wallet.SignOptions{NetworkPassphrase: d.settings.NetworkPassphrase})
	if err != nil {
		if errors.Is(err, wallet.ErrRejected) {
			return fail(ErrUserRejected)
		}
		return fail(err)
	}

	enter(PhaseSubmitting)
	envelope, hash, err := d.reencode(signed.SignedTxXDR)
	if err != nil {
		return fail(err)
	}
	sent, err := d.rpc.SendTransaction(ctx, envelope)
	if err != nil {
		return fail(gatewayErr(err))
	}
	if sent.Status != stellar.SendPending {
		logs.Errorw("send rejected", "status", sent.Status, "error_result", sent.ErrorResultXDR)
		return fail(fmt.Errorf("%w: status %s", ErrRejectedByNetwork, sent.Status))
	}
	if sent.Hash != "" {
		hash = sent.Hash
	}
	rec.Hash = hash
	logs = logs.With("hash", hash)

	enter(PhaseAwaitingConfirmation)
	attempts, err := d.poller.Run(ctx, func(ctx context.Context, attempt int) (bool, error) {
		st, err := d.rpc.GetTransaction(ctx, hash)
		if errors.Is(err, stellar.ErrTransport) {
			logs.Warnw("status poll failed", "attempt", attempt, "error", err)
			return false, nil
		}
		if err != nil {
			return false, err
		}
		logs.Debugw("status poll", "attempt", attempt, "status", st.Status)
		switch st.Status {
		case stellar.TxSuccess:
			rec.Ledger = st.Ledger
			return true, nil
		case stellar.TxFailed:
			return false, ErrTransactionFailed
		default:
			return false, nil
		}
	})
	rec.Attempts = attempts
	if errors.Is(err, poll.ErrExhausted) {
		return fail(fmt.Errorf("%w after %d attempts", ErrTimeout, attempts))
	}
	if err != nil {
		return fail(err)
	}

	enter(PhaseConfirmed)
	logs.Infow("submission confirmed", "attempts", attempts, "ledger", rec.Ledger)
	return rec, nil
}

// reencode parses the signed envelope back into a transaction and encodes it
// again for submission, returning its hash.
func (d *Depositor) reencode(signedXDR string) (string, string, error) {
	gtx, err := txnbuild.TransactionFromXDR(signedXDR)
	if err != nil {
		return "", "", fmt.Errorf("parse signed envelope: %w", err)
	}
	tx, ok := gtx.Transaction()
	if !ok {
		return "", "", fmt.Errorf("signed envelope is a fee bump")
	}
	envelope, err := tx.Base64()
	if err != nil {
		return "", "", fmt.Errorf("encode signed envelope: %w", err)
	}
	hash, err := tx.HashHex(d.settings.NetworkPassphrase)
	if err != nil {
		return "", "", fmt.Errorf("hash signed envelope: %w", err)
	}
	return envelope, hash, nil
}

func gatewayErr(err error) error {
	if errors.Is(err, stellar.ErrTransport) {
		return fmt.Errorf("%w: %w", ErrGatewayUnreachable, err)
	}
	return err
}
