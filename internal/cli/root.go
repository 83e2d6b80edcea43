package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/abiscan-org/abiscan/internal/app"
	"github.com/abiscan-org/abiscan/internal/config"
)

// contextKey is the type for context keys
type contextKey string

const (
	// appKey is the context key for the app instance
	appKey contextKey = "app"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "abiscan",
		Short: "Fetch verification status, ABI and source of deployed contracts",
		Long: `Abiscan resolves the verification state of a deployed smart contract by
querying the Sourcify registry first and an Etherscan-compatible explorer as
fallback, then writes the ABI, source files, event signatures and deployment
info to a structured directory tree.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip for help/version commands
			if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}

			workDir, err := os.Getwd()
			if err != nil {
				return err
			}

			// Set up viper
			v := config.SetupViper(workDir)

			// Bind global flags that have been set
			bindGlobalFlags(v, cmd)

			// Initialize app with DI
			appInstance, err := app.InitApp(v)
			if err != nil {
				return fmt.Errorf("failed to initialize app: %w", err)
			}

			// Store app in context
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)

			// Add timeout if configured
			if appInstance.Config.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, appInstance.Config.Timeout)
				cmd.PostRun = func(cmd *cobra.Command, args []string) {
					cancel()
				}
			}

			cmd.SetContext(ctx)

			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug output")
	rootCmd.PersistentFlags().Bool("json", false, "Emit machine-readable JSON instead of tables")
	rootCmd.PersistentFlags().StringP("chain", "c", "", "Chain to query (name or id, e.g. mainnet, 10)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Root directory for scan results")

	rootCmd.AddCommand(NewAnalyzeCmd())
	rootCmd.AddCommand(NewChainsCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// bindGlobalFlags binds command flags to viper
func bindGlobalFlags(v *viper.Viper, cmd *cobra.Command) {
	// Only bind flags that exist and have been changed
	if f := cmd.Flag("debug"); f != nil && f.Changed {
		v.Set("debug", f.Value.String())
	}
	if f := cmd.Flag("json"); f != nil && f.Changed {
		v.Set("json", f.Value.String())
	}
	if f := cmd.Flag("chain"); f != nil && f.Changed {
		v.Set("chain", f.Value.String())
	}
	if f := cmd.Flag("output"); f != nil && f.Changed {
		v.Set("output", f.Value.String())
	}
}

// getApp retrieves the app instance from the command context
func getApp(cmd *cobra.Command) (*app.App, error) {
	appInstance := cmd.Context().Value(appKey)
	if appInstance == nil {
		return nil, fmt.Errorf("app not initialized")
	}

	app, ok := appInstance.(*app.App)
	if !ok {
		return nil, fmt.Errorf("invalid app instance")
	}

	return app, nil
}

// isNonInteractive checks if the environment is non-interactive
func isNonInteractive() bool {
	return os.Getenv("ABISCAN_NON_INTERACTIVE") == "true" ||
		os.Getenv("CI") == "true" ||
		os.Getenv("NO_COLOR") != ""
}
