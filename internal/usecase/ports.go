package usecase

import (
	"context"

	"github.com/abiscan-org/abiscan/internal/domain"
)

// RegistryClient queries the decentralized source-verification registry.
//
// Lookup returns a RegistryMatch with Level none for a clean miss. A faulted
// probe (non-2xx other than not-found, malformed body) returns a
// *domain.RegistryFaultError; callers must not treat that as a miss.
type RegistryClient interface {
	Lookup(ctx context.Context, address string, chainID uint64) (*domain.RegistryMatch, error)
}

// ExplorerClient talks to an Etherscan-compatible API for one chain.
//
// All methods return (nil, nil) for semantically empty answers: an
// unverified contract, no creation transaction, no logs. Errors are reserved
// for exhausted retries, transport failures and missing API keys.
type ExplorerClient interface {
	GetABI(ctx context.Context, address string, chain *domain.Chain) (domain.ABI, error)
	GetSourceCode(ctx context.Context, address string, chain *domain.Chain) (*domain.SourceCodeRecord, error)
	GetContractCreation(ctx context.Context, address string, chain *domain.Chain) (*domain.ContractCreation, error)
	GetLogs(ctx context.Context, address string, chain *domain.Chain, fromBlock, toBlock uint64, topics []string) ([]domain.EventLog, error)
}

// ProxyResolver classifies a contract as proxy or not and, when the
// implementation address is known, fetches and merges its ABI.
type ProxyResolver interface {
	Resolve(ctx context.Context, req ProxyRequest) (*domain.ProxyReport, domain.ABI, error)
}

// ProxyRequest carries whatever the resolver has gathered so far; every
// field except Address and Chain may be empty.
type ProxyRequest struct {
	Address string
	Chain   *domain.Chain

	// ABI and Sources of the proxy candidate itself
	ABI     domain.ABI
	Sources map[string]string

	// ImplementationHint is the explorer-reported implementation address,
	// when a source-code record was fetched.
	ImplementationHint string
}

// ChainRegistry resolves chains by id or short name.
type ChainRegistry interface {
	GetChain(ctx context.Context, ref string) (*domain.Chain, error)
	DefaultChain(ctx context.Context) (*domain.Chain, error)
	ListChains(ctx context.Context) []*domain.Chain
	GetAPIKey(chainID uint64) string
}

// ResultStore persists analysis artifacts under a deterministic path keyed
// by chain id and lowercase address, one file per logical artifact.
type ResultStore interface {
	Save(ctx context.Context, result *domain.VerificationResult) (string, error)
	SaveLogs(ctx context.Context, result *domain.VerificationResult, logs []domain.EventLog) (string, error)
}
