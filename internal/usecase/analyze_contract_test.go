package usecase

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abiscan-org/abiscan/internal/domain"
)

const testAddr = "0x5fbdb2315678afecb367f032d93f642f64180aa3"

var testChain = &domain.Chain{
	ID:             1,
	Name:           "mainnet",
	ExplorerAPIURL: "https://api.etherscan.io/api",
	APIKey:         "key",
}

var sampleABI = domain.ABI{
	{Type: "function", Name: "transfer", Inputs: []domain.ABIParam{{Type: "address"}, {Type: "uint256"}}},
	{Type: "event", Name: "Transfer", Inputs: []domain.ABIParam{
		{Name: "from", Type: "address", Indexed: true},
		{Name: "to", Type: "address", Indexed: true},
		{Name: "value", Type: "uint256"},
	}},
}

// Simple mock implementations for the ports

type mockRegistry struct {
	lookupFunc func(context.Context, string, uint64) (*domain.RegistryMatch, error)
	calls      int
}

func (m *mockRegistry) Lookup(ctx context.Context, address string, chainID uint64) (*domain.RegistryMatch, error) {
	m.calls++
	if m.lookupFunc != nil {
		return m.lookupFunc(ctx, address, chainID)
	}
	return &domain.RegistryMatch{Level: domain.MatchNone}, nil
}

type mockExplorer struct {
	getABIFunc      func(context.Context, string, *domain.Chain) (domain.ABI, error)
	getSourceFunc   func(context.Context, string, *domain.Chain) (*domain.SourceCodeRecord, error)
	getCreationFunc func(context.Context, string, *domain.Chain) (*domain.ContractCreation, error)
	getLogsFunc     func(context.Context, string, *domain.Chain, uint64, uint64, []string) ([]domain.EventLog, error)

	abiCalls      int
	creationCalls int
	logCalls      int
}

func (m *mockExplorer) GetABI(ctx context.Context, address string, chain *domain.Chain) (domain.ABI, error) {
	m.abiCalls++
	if m.getABIFunc != nil {
		return m.getABIFunc(ctx, address, chain)
	}
	return nil, nil
}

func (m *mockExplorer) GetSourceCode(ctx context.Context, address string, chain *domain.Chain) (*domain.SourceCodeRecord, error) {
	if m.getSourceFunc != nil {
		return m.getSourceFunc(ctx, address, chain)
	}
	return nil, nil
}

func (m *mockExplorer) GetContractCreation(ctx context.Context, address string, chain *domain.Chain) (*domain.ContractCreation, error) {
	m.creationCalls++
	if m.getCreationFunc != nil {
		return m.getCreationFunc(ctx, address, chain)
	}
	return nil, nil
}

func (m *mockExplorer) GetLogs(ctx context.Context, address string, chain *domain.Chain, fromBlock, toBlock uint64, topics []string) ([]domain.EventLog, error) {
	m.logCalls++
	if m.getLogsFunc != nil {
		return m.getLogsFunc(ctx, address, chain, fromBlock, toBlock, topics)
	}
	return nil, nil
}

type mockProxyResolver struct {
	resolveFunc func(context.Context, ProxyRequest) (*domain.ProxyReport, domain.ABI, error)
	lastReq     ProxyRequest
}

func (m *mockProxyResolver) Resolve(ctx context.Context, req ProxyRequest) (*domain.ProxyReport, domain.ABI, error) {
	m.lastReq = req
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, req)
	}
	return &domain.ProxyReport{Detection: domain.ProxyDetection{Kind: domain.ProxyNone}}, nil, nil
}

type mockChainRegistry struct{}

func (m *mockChainRegistry) GetChain(ctx context.Context, ref string) (*domain.Chain, error) {
	if ref == "mainnet" || ref == "1" {
		return testChain, nil
	}
	return nil, domain.ErrInvalidChainID
}

func (m *mockChainRegistry) DefaultChain(ctx context.Context) (*domain.Chain, error) {
	return testChain, nil
}

func (m *mockChainRegistry) ListChains(ctx context.Context) []*domain.Chain {
	return []*domain.Chain{testChain}
}

func (m *mockChainRegistry) GetAPIKey(chainID uint64) string { return "key" }

type mockStore struct {
	saved     *domain.VerificationResult
	savedLogs []domain.EventLog
	saveErr   error
}

func (m *mockStore) Save(ctx context.Context, result *domain.VerificationResult) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.saved = result
	return "scans/1/" + result.Address, nil
}

func (m *mockStore) SaveLogs(ctx context.Context, result *domain.VerificationResult, logs []domain.EventLog) (string, error) {
	m.savedLogs = logs
	return "scans/1/" + result.Address + "/logs.json", nil
}

type analyzeFixture struct {
	registry *mockRegistry
	explorer *mockExplorer
	proxies  *mockProxyResolver
	store    *mockStore
	uc       *AnalyzeContract
}

func newAnalyzeFixture(t *testing.T) *analyzeFixture {
	t.Helper()
	f := &analyzeFixture{
		registry: &mockRegistry{},
		explorer: &mockExplorer{},
		proxies:  &mockProxyResolver{},
		store:    &mockStore{},
	}
	f.uc = NewAnalyzeContract(
		f.registry,
		f.explorer,
		f.proxies,
		&mockChainRegistry{},
		f.store,
		slog.New(slog.DiscardHandler),
	)
	return f
}

func TestAnalyzeContract_InvalidAddress(t *testing.T) {
	f := newAnalyzeFixture(t)

	for _, addr := range []string{"", "0x123", "not-an-address", "0xZZbdb2315678afecb367f032d93f642f64180aa3"} {
		_, err := f.uc.Run(context.Background(), addr, AnalyzeOptions{})
		assert.ErrorIs(t, err, domain.ErrInvalidAddress, "address %q", addr)
	}
	assert.Zero(t, f.registry.calls)
}

func TestAnalyzeContract_UnknownChain(t *testing.T) {
	f := newAnalyzeFixture(t)

	_, err := f.uc.Run(context.Background(), testAddr, AnalyzeOptions{ChainRef: "notachain"})
	assert.ErrorIs(t, err, domain.ErrInvalidChainID)
}

func TestAnalyzeContract_RegistryFullMatch(t *testing.T) {
	f := newAnalyzeFixture(t)
	f.registry.lookupFunc = func(ctx context.Context, address string, chainID uint64) (*domain.RegistryMatch, error) {
		return &domain.RegistryMatch{
			Level:    domain.MatchFull,
			ABI:      sampleABI,
			Metadata: &domain.RegistryMetadata{CompilerVersion: "0.8.24"},
			Sources:  map[string]string{"Token.sol": "contract Token {}"},
			Deployment: &domain.DeploymentInfo{
				TxHash:      "0xabc",
				BlockNumber: 100,
			},
		}, nil
	}

	out, err := f.uc.Run(context.Background(), testAddr, AnalyzeOptions{})
	require.NoError(t, err)

	res := out.Result
	assert.Equal(t, domain.StatusFull, res.Status)
	assert.Equal(t, domain.SourceRegistry, res.Source)
	assert.Equal(t, common.HexToAddress(testAddr).Hex(), res.Address)
	assert.Equal(t, uint64(1), res.ChainID)
	assert.True(t, res.HasABI())
	assert.Equal(t, "0.8.24", res.Metadata.CompilerVersion)
	assert.Len(t, res.SourceFiles, 1)

	// Registry-sourced deployment info suppresses the explorer creation lookup
	assert.Equal(t, domain.DeploymentSourceRegistry, res.Deployment.Source)
	assert.Equal(t, uint64(100), res.Deployment.BlockNumber)
	assert.Zero(t, f.explorer.creationCalls)

	// Explorer ABI is never fetched on a registry hit
	assert.Zero(t, f.explorer.abiCalls)

	// Events come from the registry ABI
	require.Len(t, res.Events, 1)
	assert.Equal(t, "Transfer(address,address,uint256)", res.Events[0].Signature)

	require.NotNil(t, f.store.saved)
	assert.NotEmpty(t, out.OutputDir)
}

func TestAnalyzeContract_RegistryPartialMatch(t *testing.T) {
	f := newAnalyzeFixture(t)
	f.registry.lookupFunc = func(ctx context.Context, address string, chainID uint64) (*domain.RegistryMatch, error) {
		return &domain.RegistryMatch{Level: domain.MatchPartial, ABI: sampleABI}, nil
	}

	out, err := f.uc.Run(context.Background(), testAddr, AnalyzeOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPartial, out.Result.Status)
	assert.Equal(t, domain.SourceRegistry, out.Result.Source)

	// No deployment info in the match, so the explorer lookup runs
	assert.Equal(t, 1, f.explorer.creationCalls)
}

func TestAnalyzeContract_RegistryFault(t *testing.T) {
	f := newAnalyzeFixture(t)
	f.registry.lookupFunc = func(ctx context.Context, address string, chainID uint64) (*domain.RegistryMatch, error) {
		return nil, &domain.RegistryFaultError{Err: errors.New("status 503")}
	}

	out, err := f.uc.Run(context.Background(), testAddr, AnalyzeOptions{})
	require.NoError(t, err)

	res := out.Result
	assert.Equal(t, domain.StatusError, res.Status)
	assert.Equal(t, domain.SourceRegistry, res.Source)
	assert.Contains(t, res.Error, "503")

	// An uncertain registry state is not a miss: nothing else may run
	assert.Zero(t, f.explorer.abiCalls)
	assert.Zero(t, f.explorer.creationCalls)
	assert.Nil(t, f.store.saved)
	assert.Empty(t, out.OutputDir)
}

func TestAnalyzeContract_ExplorerFallback(t *testing.T) {
	f := newAnalyzeFixture(t)
	f.explorer.getABIFunc = func(ctx context.Context, address string, chain *domain.Chain) (domain.ABI, error) {
		return sampleABI, nil
	}
	f.explorer.getSourceFunc = func(ctx context.Context, address string, chain *domain.Chain) (*domain.SourceCodeRecord, error) {
		return &domain.SourceCodeRecord{
			ContractName: "Token",
			Sources:      map[string]string{"Token.sol": "contract Token {}"},
		}, nil
	}
	f.explorer.getCreationFunc = func(ctx context.Context, address string, chain *domain.Chain) (*domain.ContractCreation, error) {
		return &domain.ContractCreation{TxHash: "0xdef", BlockNumber: 4242}, nil
	}

	out, err := f.uc.Run(context.Background(), testAddr, AnalyzeOptions{})
	require.NoError(t, err)

	res := out.Result
	assert.Equal(t, domain.StatusVerified, res.Status)
	assert.Equal(t, domain.SourceExplorer, res.Source)
	assert.True(t, res.HasABI())
	assert.Len(t, res.SourceFiles, 1)
	assert.Equal(t, domain.DeploymentSourceExplorer, res.Deployment.Source)
	assert.Equal(t, uint64(4242), res.Deployment.BlockNumber)
}

func TestAnalyzeContract_UnverifiedEverywhere(t *testing.T) {
	f := newAnalyzeFixture(t)

	out, err := f.uc.Run(context.Background(), testAddr, AnalyzeOptions{})
	require.NoError(t, err)

	res := out.Result
	assert.Equal(t, domain.StatusUnverified, res.Status)
	assert.Equal(t, domain.SourceNone, res.Source)
	assert.False(t, res.HasABI())
	assert.Empty(t, res.Error)
	assert.Equal(t, domain.DeploymentSourceUnknown, res.Deployment.Source)

	// An unverified contract is an answer worth persisting
	require.NotNil(t, f.store.saved)
}

func TestAnalyzeContract_ExplorerFailure(t *testing.T) {
	f := newAnalyzeFixture(t)
	f.explorer.getABIFunc = func(ctx context.Context, address string, chain *domain.Chain) (domain.ABI, error) {
		return nil, &domain.NetworkError{Op: "getabi", Err: errors.New("retries exhausted")}
	}

	out, err := f.uc.Run(context.Background(), testAddr, AnalyzeOptions{})
	require.NoError(t, err)

	res := out.Result
	assert.Equal(t, domain.StatusError, res.Status)
	assert.Equal(t, domain.SourceExplorer, res.Source)
	assert.Contains(t, res.Error, "retries exhausted")

	// The failed ABI fetch is terminal for that sub-operation only
	assert.Equal(t, 1, f.explorer.creationCalls)
	require.NotNil(t, f.store.saved)
}

func TestAnalyzeContract_ProxyCombinedABI(t *testing.T) {
	implEntry := domain.ABIEntry{Type: "function", Name: "mint", Inputs: []domain.ABIParam{{Type: "address"}}}
	combined := append(domain.ABI{implEntry}, sampleABI...)

	f := newAnalyzeFixture(t)
	f.registry.lookupFunc = func(ctx context.Context, address string, chainID uint64) (*domain.RegistryMatch, error) {
		return &domain.RegistryMatch{Level: domain.MatchFull, ABI: sampleABI}, nil
	}
	f.proxies.resolveFunc = func(ctx context.Context, req ProxyRequest) (*domain.ProxyReport, domain.ABI, error) {
		return &domain.ProxyReport{
			Detection: domain.ProxyDetection{
				Kind:           domain.ProxyConfirmed,
				Implementation: "0x000000000000000000000000000000000000dEaD",
			},
			ImplementationVerified: true,
			ImplementationABI:      domain.ABI{implEntry},
		}, combined, nil
	}

	out, err := f.uc.Run(context.Background(), testAddr, AnalyzeOptions{})
	require.NoError(t, err)

	res := out.Result
	require.NotNil(t, res.Proxy)
	assert.True(t, res.Proxy.ImplementationVerified)
	assert.Len(t, res.CombinedABI, 3)

	// Events are derived from the combined ABI when present
	assert.Equal(t, combined, res.BestABI())

	// The proxy resolver sees what the earlier steps gathered
	assert.Equal(t, sampleABI, f.proxies.lastReq.ABI)
	assert.Equal(t, common.HexToAddress(testAddr).Hex(), f.proxies.lastReq.Address)
}

func TestAnalyzeContract_ProxyUnverifiedImplementation(t *testing.T) {
	f := newAnalyzeFixture(t)
	f.registry.lookupFunc = func(ctx context.Context, address string, chainID uint64) (*domain.RegistryMatch, error) {
		return &domain.RegistryMatch{Level: domain.MatchFull, ABI: sampleABI}, nil
	}
	f.proxies.resolveFunc = func(ctx context.Context, req ProxyRequest) (*domain.ProxyReport, domain.ABI, error) {
		return &domain.ProxyReport{
			Detection: domain.ProxyDetection{
				Kind:           domain.ProxyConfirmed,
				Implementation: "0x000000000000000000000000000000000000dEaD",
			},
			Reason: "implementation contract is not verified",
		}, nil, nil
	}

	out, err := f.uc.Run(context.Background(), testAddr, AnalyzeOptions{})
	require.NoError(t, err)

	res := out.Result
	require.NotNil(t, res.Proxy)
	assert.False(t, res.Proxy.ImplementationVerified)
	assert.Nil(t, res.CombinedABI)
	assert.Equal(t, sampleABI, res.BestABI())
}

func TestAnalyzeContract_FetchLogs(t *testing.T) {
	f := newAnalyzeFixture(t)
	f.explorer.getCreationFunc = func(ctx context.Context, address string, chain *domain.Chain) (*domain.ContractCreation, error) {
		return &domain.ContractCreation{TxHash: "0xdef", BlockNumber: 1234}, nil
	}

	var gotFrom, gotTo uint64
	f.explorer.getLogsFunc = func(ctx context.Context, address string, chain *domain.Chain, fromBlock, toBlock uint64, topics []string) ([]domain.EventLog, error) {
		gotFrom, gotTo = fromBlock, toBlock
		return []domain.EventLog{{TxHash: "0x1", BlockNumber: 1300}}, nil
	}

	out, err := f.uc.Run(context.Background(), testAddr, AnalyzeOptions{FetchLogs: true})
	require.NoError(t, err)

	// Unset from-block defaults to the deployment block
	assert.Equal(t, uint64(1234), gotFrom)
	assert.Zero(t, gotTo)
	assert.Len(t, out.Logs, 1)
	assert.Len(t, f.store.savedLogs, 1)
}

func TestAnalyzeContract_LogFetchFailureIsNonFatal(t *testing.T) {
	f := newAnalyzeFixture(t)
	f.explorer.getLogsFunc = func(ctx context.Context, address string, chain *domain.Chain, fromBlock, toBlock uint64, topics []string) ([]domain.EventLog, error) {
		return nil, &domain.NetworkError{Op: "getLogs", Err: errors.New("boom")}
	}

	out, err := f.uc.Run(context.Background(), testAddr, AnalyzeOptions{FetchLogs: true})
	require.NoError(t, err)
	assert.Nil(t, out.Logs)
	assert.Nil(t, f.store.savedLogs)
}

func TestShortAddress(t *testing.T) {
	assert.Equal(t, "0x5fbd…0aa3", ShortAddress(testAddr))
	assert.Equal(t, "0xabc", ShortAddress("0xabc"))
}
