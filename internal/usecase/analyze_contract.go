package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/abiscan-org/abiscan/internal/domain"
)

// AnalyzeContract resolves the verification state of a deployed contract by
// chaining the registry, the explorer and the proxy resolver into one
// decision pipeline. The registry is tried first: it needs no API key and
// carries richer metadata. The explorer exists only to maximize coverage on
// a registry miss, and every datum is tagged with the source it came from.
type AnalyzeContract struct {
	registry RegistryClient
	explorer ExplorerClient
	proxies  ProxyResolver
	chains   ChainRegistry
	store    ResultStore
	log      *slog.Logger
}

// NewAnalyzeContract creates the analyze use case
func NewAnalyzeContract(
	registry RegistryClient,
	explorer ExplorerClient,
	proxies ProxyResolver,
	chains ChainRegistry,
	store ResultStore,
	log *slog.Logger,
) *AnalyzeContract {
	return &AnalyzeContract{
		registry: registry,
		explorer: explorer,
		proxies:  proxies,
		chains:   chains,
		store:    store,
		log:      log,
	}
}

// AnalyzeOptions contains options for a contract analysis
type AnalyzeOptions struct {
	ChainRef  string // chain name or decimal id; empty means the configured default
	FetchLogs bool
	FromBlock uint64
	ToBlock   uint64 // 0 means latest
}

// AnalyzeResult contains the analysis outcome plus persistence info
type AnalyzeResult struct {
	Result    *domain.VerificationResult
	Chain     *domain.Chain
	Logs      []domain.EventLog
	OutputDir string
}

// Run executes one full contract analysis.
func (a *AnalyzeContract) Run(ctx context.Context, address string, opts AnalyzeOptions) (*AnalyzeResult, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidAddress, address)
	}
	address = common.HexToAddress(address).Hex()

	chain, err := a.resolveChain(ctx, opts.ChainRef)
	if err != nil {
		return nil, err
	}

	result := &domain.VerificationResult{
		Address:    address,
		ChainID:    chain.ID,
		Source:     domain.SourceNone,
		Status:     domain.StatusUnverified,
		Deployment: domain.DeploymentInfo{Source: domain.DeploymentSourceUnknown},
		AnalyzedAt: time.Now().UTC(),
	}

	// Step 1: registry probe. A fault here aborts the run without touching
	// the explorer: an uncertain registry state is not a miss.
	match, err := a.registry.Lookup(ctx, address, chain.ID)
	if err != nil {
		var fault *domain.RegistryFaultError
		if !errors.As(err, &fault) {
			err = &domain.RegistryFaultError{Err: err}
		}
		a.log.Error("registry lookup faulted", "address", address, "chain", chain.ID, "error", err)
		result.Source = domain.SourceRegistry
		result.Status = domain.StatusError
		result.Error = err.Error()
		return &AnalyzeResult{Result: result, Chain: chain}, nil
	}

	var implHint string

	switch match.Level {
	case domain.MatchFull, domain.MatchPartial:
		// Step 2: registry hit. Source code references are already in the
		// metadata; no explorer source fetch happens on this path.
		result.Source = domain.SourceRegistry
		if match.Level == domain.MatchFull {
			result.Status = domain.StatusFull
		} else {
			result.Status = domain.StatusPartial
		}
		result.ABI = match.ABI
		result.Metadata = match.Metadata
		result.SourceFiles = match.Sources
		if match.Deployment != nil {
			result.Deployment = *match.Deployment
			result.Deployment.Source = domain.DeploymentSourceRegistry
		}
		a.log.Debug("registry match", "address", address, "level", match.Level)

	case domain.MatchNone:
		// Step 3: explorer fallback.
		implHint = a.resolveFromExplorer(ctx, address, chain, result)
	}

	// Step 4: deployment resolution, independent of verification status.
	a.resolveDeployment(ctx, address, chain, result)

	// Step 5: proxy resolution, always attempted with whatever we have.
	a.resolveProxy(ctx, address, chain, implHint, result)

	result.Events = domain.ExtractEventSignatures(result.BestABI())

	out := &AnalyzeResult{Result: result, Chain: chain}

	dir, err := a.store.Save(ctx, result)
	if err != nil {
		return nil, fmt.Errorf("failed to persist analysis: %w", err)
	}
	out.OutputDir = dir

	if opts.FetchLogs {
		fromBlock := opts.FromBlock
		if fromBlock == 0 && result.Deployment.BlockNumber > 0 {
			fromBlock = result.Deployment.BlockNumber
		}
		logs, err := a.explorer.GetLogs(ctx, address, chain, fromBlock, opts.ToBlock, nil)
		if err != nil {
			a.log.Warn("event log fetch failed", "address", address, "error", err)
		} else {
			out.Logs = logs
			if _, err := a.store.SaveLogs(ctx, result, logs); err != nil {
				return nil, fmt.Errorf("failed to persist logs: %w", err)
			}
		}
	}

	return out, nil
}

// resolveChain looks up the requested chain, falling back to the default.
func (a *AnalyzeContract) resolveChain(ctx context.Context, ref string) (*domain.Chain, error) {
	if ref == "" {
		return a.chains.DefaultChain(ctx)
	}
	chain, err := a.chains.GetChain(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidChainID, ref)
	}
	return chain, nil
}

// resolveFromExplorer runs the explorer ABI + source fallback after a
// registry miss, mutating result in place. It returns the explorer-reported
// implementation address, if any, for the proxy step.
func (a *AnalyzeContract) resolveFromExplorer(ctx context.Context, address string, chain *domain.Chain, result *domain.VerificationResult) string {
	contractABI, err := a.explorer.GetABI(ctx, address, chain)
	if err != nil {
		// Terminal for this sub-operation only; deployment lookup and proxy
		// detection still run with partial data.
		a.log.Warn("explorer ABI fetch failed", "address", address, "error", err)
		result.Source = domain.SourceExplorer
		result.Status = domain.StatusError
		result.Error = err.Error()
		return ""
	}

	if contractABI == nil {
		// Explorer reports the contract as unverified. Expected outcome.
		result.Source = domain.SourceNone
		result.Status = domain.StatusUnverified
		return ""
	}

	result.Source = domain.SourceExplorer
	result.Status = domain.StatusVerified
	result.ABI = contractABI

	// Source code is fetched only when the ABI actually came from the
	// explorer; registry hits already carry their source mapping.
	record, err := a.explorer.GetSourceCode(ctx, address, chain)
	if err != nil {
		a.log.Warn("explorer source fetch failed", "address", address, "error", err)
		return ""
	}
	if record == nil {
		return ""
	}
	result.SourceFiles = record.Sources
	return record.Implementation
}

// resolveDeployment fills in deployment info from the registry metadata or,
// failing that, the explorer's creation lookup. Absence is a warning, not an
// error: factory deployments often have no discoverable creation tx.
func (a *AnalyzeContract) resolveDeployment(ctx context.Context, address string, chain *domain.Chain, result *domain.VerificationResult) {
	if result.Deployment.Source == domain.DeploymentSourceRegistry {
		return
	}

	creation, err := a.explorer.GetContractCreation(ctx, address, chain)
	if err != nil {
		a.log.Warn("creation lookup failed", "address", address, "error", err)
	}
	if creation == nil {
		a.log.Warn("no creation transaction discoverable", "address", address, "chain", chain.ID)
		result.Deployment = domain.DeploymentInfo{Source: domain.DeploymentSourceUnknown}
		return
	}

	result.Deployment = domain.DeploymentInfo{
		BlockNumber: creation.BlockNumber,
		TxHash:      creation.TxHash,
		Source:      domain.DeploymentSourceExplorer,
	}
}

// resolveProxy runs proxy detection with whatever ABI and source text the
// earlier steps produced. A registry-unverified contract can still be
// detected as a proxy via explorer data.
func (a *AnalyzeContract) resolveProxy(ctx context.Context, address string, chain *domain.Chain, implHint string, result *domain.VerificationResult) {
	report, combined, err := a.proxies.Resolve(ctx, ProxyRequest{
		Address:            address,
		Chain:              chain,
		ABI:                result.ABI,
		Sources:            result.SourceFiles,
		ImplementationHint: implHint,
	})
	if err != nil {
		a.log.Warn("proxy resolution failed", "address", address, "error", err)
		return
	}
	result.Proxy = report
	result.CombinedABI = combined

	if report != nil && report.Detection.Kind == domain.ProxyConfirmed && !report.ImplementationVerified {
		a.log.Warn("implementation not verified, no combined ABI",
			"address", address, "implementation", report.Detection.Implementation)
	}
}

// ShortAddress returns the abbreviated form used in log lines and renderers.
func ShortAddress(address string) string {
	if len(address) < 10 {
		return address
	}
	return address[:6] + "…" + strings.ToLower(address[len(address)-4:])
}
