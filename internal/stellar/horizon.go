package stellar

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/stellar/go/clients/horizonclient"
)

// Balance is one line of an account's balance sheet.
type Balance struct {
	AssetType string
	AssetCode string
	Balance   string
}

// Account is the subset of a Horizon account record the client reads.
type Account struct {
	ID       string
	Balances []Balance
}

// NativeBalance returns the balance of the native asset, if the account
// holds a native entry.
func (a Account) NativeBalance() (string, bool) {
	for _, b := range a.Balances {
		if b.AssetType == "native" {
			return b.Balance, true
		}
	}
	return "", false
}

// Horizon reads account records from a Horizon server.
type Horizon struct {
	url  string
	http *http.Client
}

func NewHorizon(horizonURL string, httpClient *http.Client) *Horizon {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Horizon{url: horizonURL, http: httpClient}
}

// LoadAccount fetches the account record. An unknown account yields
// ErrAccountNotFound; any other failure wraps ErrTransport. The request is
// bound to ctx, so cancelling ctx aborts it in flight.
func (h *Horizon) LoadAccount(ctx context.Context, address string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	client := &horizonclient.Client{HorizonURL: h.url, HTTP: boundHTTP{ctx: ctx, client: h.http}}
	rec, err := client.AccountDetail(horizonclient.AccountRequest{AccountID: address})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Account{}, fmt.Errorf("load account %s: %w", address, ctxErr)
		}
		if horizonclient.IsNotFoundError(err) {
			return Account{}, fmt.Errorf("load account %s: %w", address, ErrAccountNotFound)
		}
		return Account{}, fmt.Errorf("load account %s: %w: %v", address, ErrTransport, err)
	}

	acct := Account{ID: rec.AccountID, Balances: make([]Balance, 0, len(rec.Balances))}
	for _, b := range rec.Balances {
		acct.Balances = append(acct.Balances, Balance{
			AssetType: b.Type,
			AssetCode: b.Code,
			Balance:   b.Balance,
		})
	}
	return acct, nil
}

// boundHTTP attaches ctx to every request horizonclient sends. The client
// itself takes no context.
type boundHTTP struct {
	ctx    context.Context
	client *http.Client
}

func (b boundHTTP) Do(req *http.Request) (*http.Response, error) {
	return b.client.Do(req.WithContext(b.ctx))
}

func (b boundHTTP) Get(u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(b.ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return b.client.Do(req)
}

func (b boundHTTP) PostForm(u string, data url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(b.ctx, http.MethodPost, u, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.client.Do(req)
}
