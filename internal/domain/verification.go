package domain

import (
	"encoding/json"
	"time"
)

// Source identifies which data source produced a datum.
type Source string

const (
	SourceNone     Source = "none"
	SourceRegistry Source = "registry"
	SourceExplorer Source = "explorer"
)

// Status is the terminal classification of a contract analysis.
type Status string

const (
	// StatusFull / StatusPartial: registry match levels (registry only)
	StatusFull    Status = "full"
	StatusPartial Status = "partial"
	// StatusVerified: ABI obtained from the explorer
	StatusVerified Status = "verified"
	// StatusUnverified: no source found anywhere; an expected outcome, not an error
	StatusUnverified Status = "unverified"
	// StatusError: a probe faulted in a way that can't be classified as a miss
	StatusError Status = "error"
)

// DeploymentSource tags where deployment info came from.
type DeploymentSource string

const (
	DeploymentSourceRegistry DeploymentSource = "registry"
	DeploymentSourceExplorer DeploymentSource = "explorer"
	DeploymentSourceUnknown  DeploymentSource = "unknown"
)

// DeploymentInfo records the creation transaction of a contract, when
// discoverable. Factory deployments commonly resolve to unknown.
type DeploymentInfo struct {
	BlockNumber uint64           `json:"blockNumber,omitempty"`
	TxHash      string           `json:"txHash,omitempty"`
	Source      DeploymentSource `json:"source"`
}

// ProxyDetectionKind distinguishes how confident the proxy classification is.
type ProxyDetectionKind string

const (
	// ProxyConfirmed: the explorer reported an implementation address
	ProxyConfirmed ProxyDetectionKind = "confirmed"
	// ProxyHeuristic: source or ABI pattern match; no usable implementation address
	ProxyHeuristic ProxyDetectionKind = "heuristic"
	ProxyNone      ProxyDetectionKind = "none"
)

// ProxyDetection is a tagged variant: Confirmed carries the implementation
// address, Heuristic carries the pattern that matched, None carries nothing.
// Callers can tell "we know the implementation" from "we merely suspect".
type ProxyDetection struct {
	Kind           ProxyDetectionKind `json:"kind"`
	Implementation string             `json:"implementation,omitempty"`
	Reason         string             `json:"reason,omitempty"`
}

// IsProxy reports whether any detection tier matched.
func (d ProxyDetection) IsProxy() bool {
	return d.Kind != "" && d.Kind != ProxyNone
}

// ProxyReport is the full proxy-resolution outcome embedded in a
// VerificationResult. Computed once per analysis, never persisted on its own.
type ProxyReport struct {
	Detection              ProxyDetection `json:"detection"`
	ImplementationVerified bool           `json:"implementationVerified"`
	ImplementationABI      ABI            `json:"-"`
	Reason                 string         `json:"reason,omitempty"`
}

// MatchLevel is the registry's answer for an (address, chain) lookup.
type MatchLevel string

const (
	MatchFull    MatchLevel = "full"
	MatchPartial MatchLevel = "partial"
	MatchNone    MatchLevel = "none"
)

// RegistryMetadata is the compiler/build metadata carried by a registry match.
type RegistryMetadata struct {
	CompilerVersion string          `json:"compilerVersion,omitempty"`
	Language        string          `json:"language,omitempty"`
	Settings        json.RawMessage `json:"settings,omitempty"`
}

// RegistryMatch is the outcome of a registry lookup that did not fault.
type RegistryMatch struct {
	Level      MatchLevel
	ABI        ABI
	Metadata   *RegistryMetadata
	Sources    map[string]string
	Deployment *DeploymentInfo
}

// SourceCodeRecord is what an explorer's source-code endpoint yields for a
// verified contract: the split source files plus the proxy columns.
type SourceCodeRecord struct {
	ContractName    string
	CompilerVersion string
	Sources         map[string]string
	ABI             string
	Proxy           bool
	Implementation  string
}

// ContractCreation is the creation transaction of a contract.
type ContractCreation struct {
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber,omitempty"`
}

// EventLog is one raw log entry returned by an explorer.
type EventLog struct {
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	BlockNumber uint64   `json:"blockNumber"`
	TxHash      string   `json:"transactionHash"`
	LogIndex    uint64   `json:"logIndex"`
}

// VerificationResult is the central output entity of a contract analysis.
//
// Invariants: Status is full or partial only when Source is registry;
// verified only when an ABI was obtained. CombinedABI is present only when
// both the proxy ABI and a verified implementation ABI were obtained.
type VerificationResult struct {
	Address string `json:"address"`
	ChainID uint64 `json:"chainId"`

	Source Source `json:"source"`
	Status Status `json:"status"`

	ABI         ABI               `json:"-"`
	CombinedABI ABI               `json:"-"`
	SourceFiles map[string]string `json:"-"`

	Metadata   *RegistryMetadata `json:"metadata,omitempty"`
	Deployment DeploymentInfo    `json:"deployment"`
	Proxy      *ProxyReport      `json:"proxy,omitempty"`
	Events     []EventSignature  `json:"-"`

	Error      string    `json:"error,omitempty"`
	AnalyzedAt time.Time `json:"analyzedAt"`
}

// HasABI reports whether any ABI was obtained from either source.
func (r *VerificationResult) HasABI() bool {
	return len(r.ABI) > 0
}

// BestABI returns the combined ABI when present, otherwise the plain one.
func (r *VerificationResult) BestABI() ABI {
	if len(r.CombinedABI) > 0 {
		return r.CombinedABI
	}
	return r.ABI
}
