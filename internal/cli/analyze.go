package cli

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/abiscan-org/abiscan/internal/cli/render"
	"github.com/abiscan-org/abiscan/internal/usecase"
)

// NewAnalyzeCmd creates the analyze command
func NewAnalyzeCmd() *cobra.Command {
	var (
		logsFlag  bool
		fromBlock uint64
		toBlock   uint64
	)

	cmd := &cobra.Command{
		Use:   "analyze <address>",
		Short: "Resolve verification status, ABI and source of a contract",
		Long: `Resolve the verification state of a deployed contract.

The Sourcify registry is queried first (full match, then partial match); on a
miss the explorer ABI and source endpoints are used as fallback. Proxy
contracts get their implementation ABI merged in when it can be confirmed.

Examples:
  abiscan analyze 0x6B175474E89094C44Da98b954EedeAC495271d0F
  abiscan analyze 0x4200...0006 --chain optimism
  abiscan analyze 0x6B17...1d0F --logs --from-block 8928158
  abiscan analyze 0x6B17...1d0F --json -o ./results`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			opts := usecase.AnalyzeOptions{
				ChainRef:  app.Config.Chain,
				FetchLogs: logsFlag,
				FromBlock: fromBlock,
				ToBlock:   toBlock,
			}

			interactive := !app.Config.JSON && !app.Config.NonInteractive && !isNonInteractive()

			var s *spinner.Spinner
			if interactive {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				s.Suffix = fmt.Sprintf(" Analyzing %s...", usecase.ShortAddress(args[0]))
				_ = s.Color("cyan", "bold")
				s.Start()
			}

			result, err := app.AnalyzeContract.Run(cmd.Context(), args[0], opts)
			if s != nil {
				s.Stop()
			}
			if err != nil {
				return err
			}

			renderer := render.NewAnalyzeRenderer(cmd.OutOrStdout(), app.Config.JSON)
			return renderer.RenderAnalyzeResult(result)
		},
	}

	cmd.Flags().BoolVar(&logsFlag, "logs", false, "Also fetch raw event logs emitted by the contract")
	cmd.Flags().Uint64Var(&fromBlock, "from-block", 0, "First block of the log window (defaults to the deployment block)")
	cmd.Flags().Uint64Var(&toBlock, "to-block", 0, "Last block of the log window (defaults to latest)")

	return cmd
}
