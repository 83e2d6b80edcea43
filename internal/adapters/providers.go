package adapters

import (
	"github.com/google/wire"

	"github.com/abiscan-org/abiscan/internal/adapters/chains"
	"github.com/abiscan-org/abiscan/internal/adapters/etherscan"
	"github.com/abiscan-org/abiscan/internal/adapters/fs"
	"github.com/abiscan-org/abiscan/internal/adapters/proxy"
	"github.com/abiscan-org/abiscan/internal/adapters/sourcify"
	"github.com/abiscan-org/abiscan/internal/usecase"
)

// RegistrySet provides the Sourcify-backed registry client
var RegistrySet = wire.NewSet(
	sourcify.NewClient,
	wire.Bind(new(usecase.RegistryClient), new(*sourcify.Client)),
)

// ExplorerSet provides the Etherscan-compatible explorer client
var ExplorerSet = wire.NewSet(
	etherscan.NewClient,
	wire.Bind(new(usecase.ExplorerClient), new(*etherscan.Client)),
)

// ProxySet provides the proxy resolver
var ProxySet = wire.NewSet(
	proxy.NewResolver,
	wire.Bind(new(usecase.ProxyResolver), new(*proxy.Resolver)),
)

// ChainSet provides the chain registry
var ChainSet = wire.NewSet(
	chains.NewRegistry,
	wire.Bind(new(usecase.ChainRegistry), new(*chains.Registry)),
)

// FSSet provides filesystem-based implementations
var FSSet = wire.NewSet(
	fs.NewResultStore,
	wire.Bind(new(usecase.ResultStore), new(*fs.ResultStore)),
)

// AllAdapters includes all adapter sets
var AllAdapters = wire.NewSet(
	RegistrySet,
	ExplorerSet,
	ProxySet,
	ChainSet,
	FSSet,
)
