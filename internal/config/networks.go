package config

import "fmt"

// Network describes a supported fullnode and its stable funding asset.
type Network struct {
	Key           string `json:"key"`
	DisplayName   string `json:"displayName"`
	RPCURL        string `json:"url"`
	USDCCoinType  string `json:"usdcCoinType"`
	USDCDecimals  int32  `json:"usdcDecimals"`
	ExplorerTxURL string `json:"explorerTxUrl"`
}

const usdcCoinType = "0x5d4b302506645c37ff133b98c4b50a5ae14841659738d6d733d59d0d217a93bf::coin::COIN"

var networks = map[string]Network{
	"mainnet": {
		Key:           "mainnet",
		DisplayName:   "Mainnet",
		RPCURL:        "https://fullnode.mainnet.sui.io",
		USDCCoinType:  usdcCoinType,
		USDCDecimals:  6,
		ExplorerTxURL: "https://suiscan.xyz/mainnet/tx/",
	},
	"testnet": {
		Key:           "testnet",
		DisplayName:   "Testnet",
		RPCURL:        "https://fullnode.testnet.sui.io",
		USDCCoinType:  usdcCoinType,
		USDCDecimals:  6,
		ExplorerTxURL: "https://suiscan.xyz/testnet/tx/",
	},
	"devnet": {
		Key:           "devnet",
		DisplayName:   "Devnet",
		RPCURL:        "https://fullnode.devnet.sui.io",
		USDCCoinType:  usdcCoinType,
		USDCDecimals:  6,
		ExplorerTxURL: "https://suiscan.xyz/devnet/tx/",
	},
}

// NetworkKeys lists the supported networks in display order.
var NetworkKeys = []string{"mainnet", "testnet", "devnet"}

// LookupNetwork returns the static entry for key.
func LookupNetwork(key string) (Network, error) {
	n, ok := networks[key]
	if !ok {
		return Network{}, fmt.Errorf("unknown network %q", key)
	}
	return n, nil
}

// Networks returns every supported network in display order.
func Networks() []Network {
	out := make([]Network, 0, len(NetworkKeys))
	for _, k := range NetworkKeys {
		out = append(out, networks[k])
	}
	return out
}

// ExplorerLink returns the explorer URL for a transaction digest.
func (n Network) ExplorerLink(digest string) string {
	if digest == "" || n.ExplorerTxURL == "" {
		return ""
	}
	return n.ExplorerTxURL + digest
}
