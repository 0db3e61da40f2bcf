package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stellar/go/network"
)

// DefaultNetwork is used when no network is configured.
const DefaultNetwork = "testnet"

// Network is a built-in endpoint preset. Any field can be overridden.
type Network struct {
	Name       string
	Passphrase string
	RPCURL     string
	HorizonURL string
	Contract   string
}

var networks = map[string]Network{
	"testnet": {
		Name:       "testnet",
		Passphrase: network.TestNetworkPassphrase,
		RPCURL:     "https://soroban-testnet.stellar.org",
		HorizonURL: "https://horizon-testnet.stellar.org",
		Contract:   "CDFBALTD7L6ZX4VUJ5NVQNUXJNGAVLUIY7IUY52OME3QXLWQUVGHWOHV",
	},
	"futurenet": {
		Name:       "futurenet",
		Passphrase: network.FutureNetworkPassphrase,
		RPCURL:     "https://rpc-futurenet.stellar.org",
		HorizonURL: "https://horizon-futurenet.stellar.org",
	},
	// No public RPC is operated for mainnet; rpc_url must be configured.
	"mainnet": {
		Name:       "mainnet",
		Passphrase: network.PublicNetworkPassphrase,
		HorizonURL: "https://horizon.stellar.org",
	},
}

// LookupNetwork resolves a preset by name, case-insensitively.
func LookupNetwork(name string) (Network, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if n, ok := networks[key]; ok {
		return n, nil
	}
	if hint := Suggest(key); hint != "" {
		return Network{}, fmt.Errorf("unknown network %q, did you mean %q?", name, hint)
	}
	return Network{}, fmt.Errorf("unknown network %q (known: %s)", name, strings.Join(NetworkNames(), ", "))
}

// NetworkNames lists the presets in a stable order.
func NetworkNames() []string {
	names := make([]string, 0, len(networks))
	for name := range networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
