package wallet

import (
	"context"
	"errors"
)

var (
	// ErrRejected means the user declined an access or signing request.
	ErrRejected = errors.New("user rejected the request")
	// ErrLocked means no key is available to act with.
	ErrLocked = errors.New("wallet is locked")
)

// AddressResult mirrors a browser wallet's getAddress reply: an empty Address
// with an empty Error means the wallet is locked or has not granted access.
type AddressResult struct {
	Address string
	Error   string
}

type SignOptions struct {
	NetworkPassphrase string
}

type SignResult struct {
	SignedTxXDR   string
	SignerAddress string
}

// Gateway is the capability surface a wallet exposes to the app.
type Gateway interface {
	RequestAccess(ctx context.Context) (bool, error)
	GetAddress(ctx context.Context) (AddressResult, error)
	SignTransaction(ctx context.Context, envelopeXDR string, opts SignOptions) (SignResult, error)
}

// AccessRequest asks the user to let the app read the wallet's address.
type AccessRequest struct {
	Wallet string
	App    string
}

// SignRequest describes an envelope awaiting the user's approval.
type SignRequest struct {
	Wallet            string
	Address           string
	NetworkPassphrase string
	Hash              string
	Fee               int64
	Operations        []string
}

// Confirmer puts access and signing requests in front of the user.
type Confirmer interface {
	ConfirmAccess(ctx context.Context, req AccessRequest) (bool, error)
	ConfirmSign(ctx context.Context, req SignRequest) (bool, error)
}
