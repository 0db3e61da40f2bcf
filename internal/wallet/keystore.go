package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
	"go.uber.org/zap"

	"github.com/jask/sorodeposit/internal/secrets"
)

// Keystore is a Gateway backed by a seed held in the local secrets store.
type Keystore struct {
	store       *secrets.Store
	name        string
	app         string
	confirm     Confirmer
	autoApprove bool
	logs        *zap.SugaredLogger
}

type Option func(*Keystore)

// WithAutoApproveSign signs without asking the Confirmer. Access requests are
// still confirmed.
func WithAutoApproveSign(auto bool) Option {
	return func(k *Keystore) {
		k.autoApprove = auto
	}
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(k *Keystore) {
		k.logs = logger
	}
}

func NewKeystore(store *secrets.Store, name, app string, confirm Confirmer, opts ...Option) *Keystore {
	k := &Keystore{
		store:   store,
		name:    name,
		app:     app,
		confirm: confirm,
		logs:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func (k *Keystore) Name() string {
	return k.name
}

// RequestAccess returns true once the user has approved this app for the
// wallet. The approval is remembered in the keystore.
func (k *Keystore) RequestAccess(ctx context.Context) (bool, error) {
	approved, err := k.store.Approved(k.name)
	if err != nil {
		return false, fmt.Errorf("read approval: %w", err)
	}
	if approved {
		return true, nil
	}
	ok, err := k.confirm.ConfirmAccess(ctx, AccessRequest{Wallet: k.name, App: k.app})
	if err != nil {
		return false, err
	}
	if !ok {
		k.logs.Infow("access declined", "wallet", k.name)
		return false, nil
	}
	if err := k.store.SetApproved(k.name, true); err != nil {
		return false, fmt.Errorf("store approval: %w", err)
	}
	k.logs.Infow("access granted", "wallet", k.name)
	return true, nil
}

// GetAddress never prompts. A wallet without a seed or without an approval
// yields an empty result.
func (k *Keystore) GetAddress(ctx context.Context) (AddressResult, error) {
	if err := ctx.Err(); err != nil {
		return AddressResult{}, err
	}
	approved, err := k.store.Approved(k.name)
	if err != nil {
		return AddressResult{}, fmt.Errorf("read approval: %w", err)
	}
	if !approved {
		return AddressResult{}, nil
	}
	kp, err := k.keypair()
	if errors.Is(err, ErrLocked) {
		return AddressResult{}, nil
	}
	if err != nil {
		return AddressResult{Error: err.Error()}, nil
	}
	return AddressResult{Address: kp.Address()}, nil
}

// SignTransaction signs a plain (non fee-bump) envelope after the user
// confirms it. Declining yields ErrRejected.
func (k *Keystore) SignTransaction(ctx context.Context, envelopeXDR string, opts SignOptions) (SignResult, error) {
	if opts.NetworkPassphrase == "" {
		return SignResult{}, fmt.Errorf("network passphrase required")
	}
	approved, err := k.store.Approved(k.name)
	if err != nil {
		return SignResult{}, fmt.Errorf("read approval: %w", err)
	}
	if !approved {
		return SignResult{}, fmt.Errorf("app not approved for wallet %q: %w", k.name, ErrRejected)
	}
	kp, err := k.keypair()
	if err != nil {
		return SignResult{}, err
	}

	gtx, err := txnbuild.TransactionFromXDR(envelopeXDR)
	if err != nil {
		return SignResult{}, fmt.Errorf("parse envelope: %w", err)
	}
	tx, ok := gtx.Transaction()
	if !ok {
		return SignResult{}, fmt.Errorf("fee-bump envelopes are not supported")
	}
	hash, err := tx.HashHex(opts.NetworkPassphrase)
	if err != nil {
		return SignResult{}, fmt.Errorf("hash envelope: %w", err)
	}

	if !k.autoApprove {
		ok, err := k.confirm.ConfirmSign(ctx, SignRequest{
			Wallet:            k.name,
			Address:           kp.Address(),
			NetworkPassphrase: opts.NetworkPassphrase,
			Hash:              hash,
			Fee:               tx.MaxFee(),
			Operations:        Describe(tx),
		})
		if err != nil {
			return SignResult{}, err
		}
		if !ok {
			k.logs.Infow("signature declined", "wallet", k.name, "hash", hash)
			return SignResult{}, ErrRejected
		}
	}

	signed, err := tx.Sign(opts.NetworkPassphrase, kp)
	if err != nil {
		return SignResult{}, fmt.Errorf("sign: %w", err)
	}
	out, err := signed.Base64()
	if err != nil {
		return SignResult{}, fmt.Errorf("encode signed envelope: %w", err)
	}
	k.logs.Infow("transaction signed", "wallet", k.name, "hash", hash)
	return SignResult{SignedTxXDR: out, SignerAddress: kp.Address()}, nil
}

func (k *Keystore) keypair() (*keypair.Full, error) {
	seed, err := k.store.Seed(k.name)
	if errors.Is(err, secrets.ErrKeyNotFound) {
		return nil, fmt.Errorf("wallet %q: %w", k.name, ErrLocked)
	}
	if err != nil {
		return nil, err
	}
	kp, err := keypair.ParseFull(seed)
	if err != nil {
		return nil, fmt.Errorf("wallet %q holds an invalid seed: %w", k.name, err)
	}
	return kp, nil
}

// Describe renders one line per operation for a confirmation prompt.
func Describe(tx *txnbuild.Transaction) []string {
	ops := tx.Operations()
	lines := make([]string, 0, len(ops))
	for _, op := range ops {
		switch o := op.(type) {
		case *txnbuild.InvokeHostFunction:
			if ic := o.HostFunction.InvokeContract; ic != nil {
				lines = append(lines, fmt.Sprintf("invoke %s (%d args)", ic.FunctionName, len(ic.Args)))
				continue
			}
			lines = append(lines, "invoke host function")
		case *txnbuild.Payment:
			lines = append(lines, fmt.Sprintf("pay %s to %s", o.Amount, o.Destination))
		default:
			lines = append(lines, fmt.Sprintf("%T", op))
		}
	}
	return lines
}

// Import validates seed and stores it under name.
func Import(store *secrets.Store, name, seed string) (string, error) {
	kp, err := keypair.ParseFull(seed)
	if err != nil {
		return "", fmt.Errorf("invalid secret seed: %w", err)
	}
	if err := store.PutSeed(name, kp.Seed()); err != nil {
		return "", err
	}
	return kp.Address(), nil
}

// Address returns the public address stored under name without any approval
// check.
func Address(store *secrets.Store, name string) (string, error) {
	k := &Keystore{store: store, name: name}
	kp, err := k.keypair()
	if err != nil {
		return "", err
	}
	return kp.Address(), nil
}
