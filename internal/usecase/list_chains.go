package usecase

import (
	"context"
	"sort"

	"github.com/abiscan-org/abiscan/internal/domain"
)

// ListChains enumerates the configured chain registry
type ListChains struct {
	chains ChainRegistry
}

// NewListChains creates a new list chains use case
func NewListChains(chains ChainRegistry) *ListChains {
	return &ListChains{chains: chains}
}

// ChainListResult contains the chains plus per-chain key availability
type ChainListResult struct {
	Chains  []*domain.Chain
	HasKey  map[uint64]bool
	Default *domain.Chain
}

// Run returns all configured chains sorted by chain id.
func (l *ListChains) Run(ctx context.Context) (*ChainListResult, error) {
	chains := l.chains.ListChains(ctx)
	sort.Slice(chains, func(i, j int) bool { return chains[i].ID < chains[j].ID })

	hasKey := make(map[uint64]bool, len(chains))
	for _, c := range chains {
		hasKey[c.ID] = l.chains.GetAPIKey(c.ID) != ""
	}

	def, err := l.chains.DefaultChain(ctx)
	if err != nil {
		def = nil
	}

	return &ChainListResult{Chains: chains, HasKey: hasKey, Default: def}, nil
}
