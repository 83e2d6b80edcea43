package domain

import "fmt"

// Chain holds the connection facts for one network. Immutable once loaded
// for a run; looked up by decimal id or short name.
type Chain struct {
	ID             uint64 `json:"id" toml:"id"`
	Name           string `json:"name" toml:"name"`
	ExplorerAPIURL string `json:"explorerApiUrl" toml:"explorer_api_url"`
	ExplorerURL    string `json:"explorerUrl,omitempty" toml:"explorer_url"`
	RPCURL         string `json:"rpcUrl,omitempty" toml:"rpc_url"`

	// APIKey is never serialized; it comes from the environment or the
	// chain file and stays out of persisted artifacts.
	APIKey string `json:"-" toml:"api_key"`
}

// String returns a short human-readable identifier
func (c *Chain) String() string {
	return fmt.Sprintf("%s (chain %d)", c.Name, c.ID)
}
