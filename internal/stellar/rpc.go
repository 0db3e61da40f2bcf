package stellar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/stellar/go/xdr"
)

// Transaction states reported by sendTransaction.
const (
	SendPending       = "PENDING"
	SendDuplicate     = "DUPLICATE"
	SendTryAgainLater = "TRY_AGAIN_LATER"
	SendError         = "ERROR"
)

// Transaction states reported by getTransaction.
const (
	TxSuccess  = "SUCCESS"
	TxNotFound = "NOT_FOUND"
	TxFailed   = "FAILED"
)

type SimulateHostFunctionResult struct {
	Auth []string `json:"auth"`
	XDR  string   `json:"xdr"`
}

type SimulateResult struct {
	TransactionData string                       `json:"transactionData"`
	MinResourceFee  int64                        `json:"minResourceFee,string"`
	Results         []SimulateHostFunctionResult `json:"results"`
	Error           string                       `json:"error"`
	LatestLedger    uint32                       `json:"latestLedger"`
}

// ReturnValue decodes the value returned by the simulated call. ok is false
// when the simulation produced no value.
func (r SimulateResult) ReturnValue() (v xdr.ScVal, ok bool, err error) {
	if len(r.Results) == 0 || r.Results[0].XDR == "" {
		return xdr.ScVal{}, false, nil
	}
	if err := xdr.SafeUnmarshalBase64(r.Results[0].XDR, &v); err != nil {
		return xdr.ScVal{}, false, fmt.Errorf("decode return value: %w", err)
	}
	return v, true, nil
}

type SendResult struct {
	Status         string `json:"status"`
	Hash           string `json:"hash"`
	ErrorResultXDR string `json:"errorResultXdr"`
	LatestLedger   uint32 `json:"latestLedger"`
}

type TransactionStatus struct {
	Status    string `json:"status"`
	Ledger    uint32 `json:"ledger"`
	ResultXDR string `json:"resultXdr"`
}

type NetworkInfo struct {
	Passphrase      string `json:"passphrase"`
	ProtocolVersion int    `json:"protocolVersion"`
	FriendbotURL    string `json:"friendbotUrl"`
}

type Health struct {
	Status       string `json:"status"`
	LatestLedger uint32 `json:"latestLedger"`
}

type ledgerEntry struct {
	Key                   string `json:"key"`
	XDR                   string `json:"xdr"`
	LastModifiedLedgerSeq uint32 `json:"lastModifiedLedgerSeq"`
}

type ledgerEntries struct {
	Entries      []ledgerEntry `json:"entries"`
	LatestLedger uint32        `json:"latestLedger"`
}

// RPCClient talks JSON-RPC 2.0 over HTTP to a Soroban RPC server. Every call
// opens its own jrpc2 client, so a failed request never poisons later ones.
type RPCClient struct {
	url  string
	http *http.Client
}

func NewRPCClient(url string, httpClient *http.Client) *RPCClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RPCClient{url: url, http: httpClient}
}

// Close drops idle connections held for the endpoint.
func (c *RPCClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// recorder sits under the jhttp channel and remembers failures that happen
// below JSON-RPC: dial and read errors, and non-2xx replies. jhttp reports
// those to the caller as ordinary *jrpc2.Error values.
type recorder struct {
	client *http.Client

	mu  sync.Mutex
	err error
}

func (r *recorder) Do(req *http.Request) (*http.Response, error) {
	rsp, err := r.client.Do(req)
	if err != nil {
		r.fail(err)
		return nil, err
	}
	if rsp.StatusCode < 200 || rsp.StatusCode > 299 {
		r.fail(fmt.Errorf("http status %s", rsp.Status))
	}
	return rsp, nil
}

func (r *recorder) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = err
	}
}

func (r *recorder) failure() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (c *RPCClient) call(ctx context.Context, method string, params, result any) error {
	rec := &recorder{client: c.http}
	cli := jrpc2.NewClient(jhttp.NewChannel(c.url, &jhttp.ChannelOptions{Client: rec}), nil)
	defer cli.Close()

	err := cli.CallResult(ctx, method, params, result)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", method, ctxErr)
	}
	if terr := rec.failure(); terr != nil {
		return fmt.Errorf("%s: %w: %v", method, ErrTransport, terr)
	}
	var rpcErr *jrpc2.Error
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("%s: %w", method, &RPCError{Code: int(rpcErr.Code), Message: rpcErr.Message})
	}
	return fmt.Errorf("%s: %w: %v", method, ErrTransport, err)
}

// GetAccount returns the account's current sequence number.
func (c *RPCClient) GetAccount(ctx context.Context, address string) (int64, error) {
	aid, err := xdr.AddressToAccountId(address)
	if err != nil {
		return 0, fmt.Errorf("account address %q: %w", address, err)
	}
	key, err := xdr.MarshalBase64(xdr.LedgerKey{
		Type:    xdr.LedgerEntryTypeAccount,
		Account: &xdr.LedgerKeyAccount{AccountId: aid},
	})
	if err != nil {
		return 0, err
	}

	var res ledgerEntries
	if err := c.call(ctx, "getLedgerEntries", map[string]any{"keys": []string{key}}, &res); err != nil {
		return 0, err
	}
	if len(res.Entries) == 0 {
		return 0, fmt.Errorf("get account %s: %w", address, ErrAccountNotFound)
	}
	var data xdr.LedgerEntryData
	if err := xdr.SafeUnmarshalBase64(res.Entries[0].XDR, &data); err != nil {
		return 0, fmt.Errorf("decode account entry: %w", err)
	}
	if data.Account == nil {
		return 0, fmt.Errorf("get account %s: unexpected entry type %s", address, data.Type)
	}
	return int64(data.Account.SeqNum), nil
}

func (c *RPCClient) SimulateTransaction(ctx context.Context, envelopeXDR string) (SimulateResult, error) {
	var res SimulateResult
	err := c.call(ctx, "simulateTransaction", map[string]any{"transaction": envelopeXDR}, &res)
	return res, err
}

// PrepareTransaction simulates inv and returns the envelope assembled from
// the simulation, still unsigned.
func (c *RPCClient) PrepareTransaction(ctx context.Context, inv Invocation) (string, error) {
	tx, err := inv.Transaction()
	if err != nil {
		return "", err
	}
	env, err := tx.Base64()
	if err != nil {
		return "", fmt.Errorf("encode envelope: %w", err)
	}
	sim, err := c.SimulateTransaction(ctx, env)
	if err != nil {
		return "", err
	}
	prepared, err := inv.Prepared(sim)
	if err != nil {
		return "", err
	}
	return prepared.Base64()
}

// Call simulates a read-only invocation and returns its value. ok is false
// when the call produced no value.
func (c *RPCClient) Call(ctx context.Context, inv Invocation) (v xdr.ScVal, ok bool, err error) {
	tx, err := inv.Transaction()
	if err != nil {
		return xdr.ScVal{}, false, err
	}
	env, err := tx.Base64()
	if err != nil {
		return xdr.ScVal{}, false, fmt.Errorf("encode envelope: %w", err)
	}
	sim, err := c.SimulateTransaction(ctx, env)
	if err != nil {
		return xdr.ScVal{}, false, err
	}
	if sim.Error != "" {
		return xdr.ScVal{}, false, &SimulationError{Message: sim.Error}
	}
	return sim.ReturnValue()
}

func (c *RPCClient) SendTransaction(ctx context.Context, envelopeXDR string) (SendResult, error) {
	var res SendResult
	err := c.call(ctx, "sendTransaction", map[string]any{"transaction": envelopeXDR}, &res)
	return res, err
}

func (c *RPCClient) GetTransaction(ctx context.Context, hash string) (TransactionStatus, error) {
	var res TransactionStatus
	err := c.call(ctx, "getTransaction", map[string]any{"hash": hash}, &res)
	return res, err
}

func (c *RPCClient) GetNetwork(ctx context.Context) (NetworkInfo, error) {
	var res NetworkInfo
	err := c.call(ctx, "getNetwork", nil, &res)
	return res, err
}

func (c *RPCClient) GetHealth(ctx context.Context) (Health, error) {
	var res Health
	err := c.call(ctx, "getHealth", nil, &res)
	return res, err
}
