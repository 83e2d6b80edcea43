package chains

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/abiscan-org/abiscan/internal/config"
	"github.com/abiscan-org/abiscan/internal/domain"
	"github.com/abiscan-org/abiscan/internal/usecase"
)

// Registry holds the per-chain connection facts. Built once at startup from
// the built-in table, an optional chains.toml and the environment; read-only
// afterwards.
type Registry struct {
	byName map[string]*domain.Chain
	byID   map[uint64]*domain.Chain
	defRef string
	log    *slog.Logger
}

// chainsFile is the chains.toml document shape
type chainsFile struct {
	Chains map[string]domain.Chain `toml:"chains"`
}

// NewRegistry creates a chain registry from defaults, file and environment
func NewRegistry(cfg *config.RuntimeConfig, log *slog.Logger) (*Registry, error) {
	// API keys commonly live in a local .env; missing files are fine
	_ = godotenv.Load()

	r := &Registry{
		byName: make(map[string]*domain.Chain),
		byID:   make(map[uint64]*domain.Chain),
		defRef: cfg.Chain,
		log:    log,
	}

	for _, chain := range defaultChains() {
		r.add(chain)
	}

	if cfg.ChainsFile != "" {
		if err := r.loadFile(cfg.ChainsFile); err != nil {
			return nil, err
		}
	}

	for _, chain := range r.byID {
		if chain.APIKey == "" {
			chain.APIKey = apiKeyFromEnv(chain.Name)
		}
	}

	return r, nil
}

// defaultChains is the built-in table of well-known networks.
func defaultChains() []*domain.Chain {
	return []*domain.Chain{
		{ID: 1, Name: "mainnet", ExplorerAPIURL: "https://api.etherscan.io/api", ExplorerURL: "https://etherscan.io"},
		{ID: 11155111, Name: "sepolia", ExplorerAPIURL: "https://api-sepolia.etherscan.io/api", ExplorerURL: "https://sepolia.etherscan.io"},
		{ID: 10, Name: "optimism", ExplorerAPIURL: "https://api-optimistic.etherscan.io/api", ExplorerURL: "https://optimistic.etherscan.io"},
		{ID: 42161, Name: "arbitrum", ExplorerAPIURL: "https://api.arbiscan.io/api", ExplorerURL: "https://arbiscan.io"},
		{ID: 137, Name: "polygon", ExplorerAPIURL: "https://api.polygonscan.com/api", ExplorerURL: "https://polygonscan.com"},
		{ID: 8453, Name: "base", ExplorerAPIURL: "https://api.basescan.org/api", ExplorerURL: "https://basescan.org"},
		{ID: 56, Name: "bsc", ExplorerAPIURL: "https://api.bscscan.com/api", ExplorerURL: "https://bscscan.com"},
		{ID: 43114, Name: "avalanche", ExplorerAPIURL: "https://api.snowtrace.io/api", ExplorerURL: "https://snowtrace.io"},
		{ID: 250, Name: "fantom", ExplorerAPIURL: "https://api.ftmscan.com/api", ExplorerURL: "https://ftmscan.com"},
		{ID: 100, Name: "gnosis", ExplorerAPIURL: "https://api.gnosisscan.io/api", ExplorerURL: "https://gnosisscan.io"},
		{ID: 42220, Name: "celo", ExplorerAPIURL: "https://api.celoscan.io/api", ExplorerURL: "https://celoscan.io"},
	}
}

// loadFile merges chains.toml entries over the defaults.
func (r *Registry) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read chains file: %w", err)
	}

	var file chainsFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for name, chain := range file.Chains {
		c := chain
		if c.Name == "" {
			c.Name = name
		}
		if c.ID == 0 {
			return fmt.Errorf("%w: chain %q in %s has no id", domain.ErrInvalidChainID, name, path)
		}
		// File entries inherit the default explorer URLs for known ids
		if existing, ok := r.byID[c.ID]; ok {
			if c.ExplorerAPIURL == "" {
				c.ExplorerAPIURL = existing.ExplorerAPIURL
			}
			if c.ExplorerURL == "" {
				c.ExplorerURL = existing.ExplorerURL
			}
		}
		r.add(&c)
	}

	r.log.Debug("loaded chains file", "path", path, "chains", len(file.Chains))
	return nil
}

func (r *Registry) add(chain *domain.Chain) {
	r.byName[strings.ToLower(chain.Name)] = chain
	r.byID[chain.ID] = chain
}

// GetChain resolves a chain by short name or decimal id.
func (r *Registry) GetChain(ctx context.Context, ref string) (*domain.Chain, error) {
	if chain, ok := r.byName[strings.ToLower(ref)]; ok {
		return chain, nil
	}
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
		if chain, ok := r.byID[id]; ok {
			return chain, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrInvalidChainID, ref)
}

// DefaultChain resolves the configured default chain.
func (r *Registry) DefaultChain(ctx context.Context) (*domain.Chain, error) {
	return r.GetChain(ctx, r.defRef)
}

// ListChains returns all configured chains.
func (r *Registry) ListChains(ctx context.Context) []*domain.Chain {
	chains := make([]*domain.Chain, 0, len(r.byID))
	for _, chain := range r.byID {
		chains = append(chains, chain)
	}
	return chains
}

// GetAPIKey returns the explorer API key for a chain, empty when none is
// configured.
func (r *Registry) GetAPIKey(chainID uint64) string {
	if chain, ok := r.byID[chainID]; ok {
		return chain.APIKey
	}
	return ""
}

// apiKeyFromEnv checks the chain-specific variable first, then the generic
// one, e.g. MAINNET_ETHERSCAN_API_KEY then ETHERSCAN_API_KEY.
func apiKeyFromEnv(chainName string) string {
	specific := strings.ToUpper(strings.ReplaceAll(chainName, "-", "_")) + "_ETHERSCAN_API_KEY"
	if key := os.Getenv(specific); key != "" {
		return key
	}
	return os.Getenv("ETHERSCAN_API_KEY")
}

// Ensure the registry implements the port
var _ usecase.ChainRegistry = (*Registry)(nil)
