package app

import (
	"github.com/abiscan-org/abiscan/internal/config"
	"github.com/abiscan-org/abiscan/internal/usecase"
)

// App is the main application container that holds all use cases
type App struct {
	// Configuration
	Config *config.RuntimeConfig

	// Use cases
	AnalyzeContract *usecase.AnalyzeContract
	ListChains      *usecase.ListChains
}

// NewApp creates a new application instance with all use cases
func NewApp(
	cfg *config.RuntimeConfig,
	analyzeContract *usecase.AnalyzeContract,
	listChains *usecase.ListChains,
) (*App, error) {
	return &App{
		Config:          cfg,
		AnalyzeContract: analyzeContract,
		ListChains:      listChains,
	}, nil
}
