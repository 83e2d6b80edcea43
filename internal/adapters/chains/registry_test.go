package chains

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abiscan-org/abiscan/internal/config"
	"github.com/abiscan-org/abiscan/internal/domain"
)

func newTestRegistry(t *testing.T, cfg *config.RuntimeConfig) *Registry {
	t.Helper()
	if cfg == nil {
		cfg = &config.RuntimeConfig{Chain: "mainnet"}
	}
	r, err := NewRegistry(cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return r
}

func TestRegistry_Defaults(t *testing.T) {
	t.Setenv("ETHERSCAN_API_KEY", "")
	r := newTestRegistry(t, nil)
	ctx := context.Background()

	t.Run("resolves by name", func(t *testing.T) {
		chain, err := r.GetChain(ctx, "mainnet")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), chain.ID)
		assert.Equal(t, "https://api.etherscan.io/api", chain.ExplorerAPIURL)
	})

	t.Run("name lookup is case-insensitive", func(t *testing.T) {
		chain, err := r.GetChain(ctx, "Mainnet")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), chain.ID)
	})

	t.Run("resolves by decimal id", func(t *testing.T) {
		chain, err := r.GetChain(ctx, "42161")
		require.NoError(t, err)
		assert.Equal(t, "arbitrum", chain.Name)
	})

	t.Run("unknown ref", func(t *testing.T) {
		_, err := r.GetChain(ctx, "hardhat")
		assert.ErrorIs(t, err, domain.ErrInvalidChainID)
	})

	t.Run("default chain follows configuration", func(t *testing.T) {
		chain, err := r.DefaultChain(ctx)
		require.NoError(t, err)
		assert.Equal(t, "mainnet", chain.Name)
	})

	t.Run("lists the built-in networks", func(t *testing.T) {
		chains := r.ListChains(ctx)
		assert.GreaterOrEqual(t, len(chains), 10)
	})
}

func TestRegistry_ChainsFile(t *testing.T) {
	t.Setenv("ETHERSCAN_API_KEY", "")

	writeChainsFile := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "chains.toml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}

	t.Run("adds a custom chain", func(t *testing.T) {
		path := writeChainsFile(t, `
[chains.localnet]
id = 31337
explorer_api_url = "http://localhost:4000/api"
`)
		r := newTestRegistry(t, &config.RuntimeConfig{Chain: "localnet", ChainsFile: path})

		chain, err := r.GetChain(context.Background(), "localnet")
		require.NoError(t, err)
		assert.Equal(t, uint64(31337), chain.ID)
		assert.Equal(t, "http://localhost:4000/api", chain.ExplorerAPIURL)

		def, err := r.DefaultChain(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "localnet", def.Name)
	})

	t.Run("overrides inherit explorer URLs for known ids", func(t *testing.T) {
		path := writeChainsFile(t, `
[chains.mainnet]
id = 1
api_key = "filekey"
`)
		r := newTestRegistry(t, &config.RuntimeConfig{Chain: "mainnet", ChainsFile: path})

		chain, err := r.GetChain(context.Background(), "mainnet")
		require.NoError(t, err)
		assert.Equal(t, "https://api.etherscan.io/api", chain.ExplorerAPIURL)
		assert.Equal(t, "filekey", chain.APIKey)
	})

	t.Run("entry without an id is rejected", func(t *testing.T) {
		path := writeChainsFile(t, `
[chains.broken]
explorer_api_url = "http://localhost:4000/api"
`)
		_, err := NewRegistry(&config.RuntimeConfig{Chain: "mainnet", ChainsFile: path},
			slog.New(slog.DiscardHandler))
		assert.ErrorIs(t, err, domain.ErrInvalidChainID)
	})

	t.Run("missing file is fine", func(t *testing.T) {
		r := newTestRegistry(t, &config.RuntimeConfig{
			Chain:      "mainnet",
			ChainsFile: filepath.Join(t.TempDir(), "nope.toml"),
		})
		assert.NotNil(t, r)
	})
}

func TestRegistry_APIKeys(t *testing.T) {
	t.Run("chain-specific variable wins", func(t *testing.T) {
		t.Setenv("ETHERSCAN_API_KEY", "generic")
		t.Setenv("MAINNET_ETHERSCAN_API_KEY", "specific")
		r := newTestRegistry(t, nil)

		assert.Equal(t, "specific", r.GetAPIKey(1))
		assert.Equal(t, "generic", r.GetAPIKey(42161))
	})

	t.Run("generic fallback", func(t *testing.T) {
		t.Setenv("ETHERSCAN_API_KEY", "generic")
		t.Setenv("MAINNET_ETHERSCAN_API_KEY", "")
		r := newTestRegistry(t, nil)

		assert.Equal(t, "generic", r.GetAPIKey(1))
	})

	t.Run("unknown chain has no key", func(t *testing.T) {
		r := newTestRegistry(t, nil)
		assert.Empty(t, r.GetAPIKey(999999))
	})
}
