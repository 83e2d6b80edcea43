package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/abiscan-org/abiscan/internal/domain"
	"github.com/abiscan-org/abiscan/internal/usecase"
)

// upgradeableMarkers are library/pattern names whose presence in verified
// source strongly suggests an upgradeable proxy. Matching one is a
// low-confidence signal: it never yields an implementation address.
var upgradeableMarkers = []string{
	"ERC1967Proxy",
	"ERC1967Upgrade",
	"TransparentUpgradeableProxy",
	"UUPSUpgradeable",
	"BeaconProxy",
	"_IMPLEMENTATION_SLOT",
	"eip1967.proxy.implementation",
}

// proxyABINames are function names that only make sense on a proxy shell.
var proxyABINames = map[string]bool{
	"upgradeTo":        true,
	"upgradeToAndCall": true,
	"implementation":   true,
	"changeAdmin":      true,
}

// Resolver classifies contracts as proxies and merges implementation ABIs.
// Detection tiers, first match wins: (1) explorer-reported implementation
// address, (2) delegatecall in verified source, (3) upgradeable-proxy
// markers in source or ABI. Only tier 1 yields a usable address.
type Resolver struct {
	explorer usecase.ExplorerClient
	log      *slog.Logger
}

// NewResolver creates a new proxy resolver
func NewResolver(explorer usecase.ExplorerClient, log *slog.Logger) *Resolver {
	return &Resolver{explorer: explorer, log: log}
}

// Resolve runs detection and, for a confirmed proxy, fetches the
// implementation ABI and merges it with the proxy ABI. The combined ABI is
// returned only when both ABIs were obtained; a failed or unverified
// implementation is reported through ImplementationVerified=false rather
// than silently dropped.
func (r *Resolver) Resolve(ctx context.Context, req usecase.ProxyRequest) (*domain.ProxyReport, domain.ABI, error) {
	detection := r.detect(req)
	report := &domain.ProxyReport{Detection: detection}

	if detection.Kind != domain.ProxyConfirmed {
		return report, nil, nil
	}

	implABI, err := r.explorer.GetABI(ctx, detection.Implementation, req.Chain)
	if err != nil {
		r.log.Warn("implementation ABI fetch failed",
			"proxy", req.Address, "implementation", detection.Implementation, "error", err)
		report.Reason = fmt.Sprintf("implementation ABI fetch failed: %v", err)
		return report, nil, nil
	}
	if implABI == nil {
		report.Reason = "implementation contract is not verified"
		return report, nil, nil
	}

	report.ImplementationVerified = true
	report.ImplementationABI = implABI

	if len(req.ABI) == 0 {
		// Nothing to merge with; combined ABI requires both sides.
		return report, nil, nil
	}

	return report, CombineABIs(req.ABI, implABI), nil
}

// detect applies the tiers in confidence order.
func (r *Resolver) detect(req usecase.ProxyRequest) domain.ProxyDetection {
	// Tier 1: explorer-reported implementation address.
	if hint := strings.TrimSpace(req.ImplementationHint); hint != "" {
		if common.IsHexAddress(hint) && !strings.EqualFold(hint, req.Address) {
			return domain.ProxyDetection{
				Kind:           domain.ProxyConfirmed,
				Implementation: common.HexToAddress(hint).Hex(),
			}
		}
		r.log.Debug("ignoring malformed implementation hint", "proxy", req.Address, "hint", hint)
	}

	// Tier 2: low-level delegation in verified source.
	for path, src := range req.Sources {
		if strings.Contains(src, "delegatecall") {
			return domain.ProxyDetection{
				Kind:   domain.ProxyHeuristic,
				Reason: fmt.Sprintf("delegatecall in %s", path),
			}
		}
	}

	// Tier 3: known upgradeable-proxy markers in source or ABI.
	for path, src := range req.Sources {
		for _, marker := range upgradeableMarkers {
			if strings.Contains(src, marker) {
				return domain.ProxyDetection{
					Kind:   domain.ProxyHeuristic,
					Reason: fmt.Sprintf("%s marker in %s", marker, path),
				}
			}
		}
	}
	for _, entry := range req.ABI {
		if entry.Type == "function" && proxyABINames[entry.Name] {
			return domain.ProxyDetection{
				Kind:   domain.ProxyHeuristic,
				Reason: fmt.Sprintf("proxy-admin function %s in ABI", entry.Name),
			}
		}
	}

	return domain.ProxyDetection{Kind: domain.ProxyNone}
}

// CombineABIs merges a proxy ABI with its implementation ABI, de-duplicated
// by merge key. Implementation entries are inserted first and win on
// conflict; proxy-only entries (upgrade admin functions and the like) stay
// visible. Re-applying the merge with either input is a no-op.
func CombineABIs(proxyABI, implABI domain.ABI) domain.ABI {
	combined := make(domain.ABI, 0, len(proxyABI)+len(implABI))
	seen := make(map[string]struct{}, len(proxyABI)+len(implABI))

	add := func(entries domain.ABI) {
		for _, entry := range entries {
			key := entry.MergeKey()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			combined = append(combined, entry)
		}
	}

	add(implABI)
	add(proxyABI)
	return combined
}

// Ensure the resolver implements the port
var _ usecase.ProxyResolver = (*Resolver)(nil)
