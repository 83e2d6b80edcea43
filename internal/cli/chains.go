package cli

import (
	"github.com/spf13/cobra"

	"github.com/abiscan-org/abiscan/internal/cli/render"
)

// NewChainsCmd creates the chains command
func NewChainsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chains",
		Short: "List configured chains",
		Long: `List every chain abiscan knows about: the built-in table plus any
entries from chains.toml, with explorer endpoints and whether an API key is
configured for each.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			result, err := app.ListChains.Run(cmd.Context())
			if err != nil {
				return err
			}

			renderer := render.NewChainsRenderer(cmd.OutOrStdout(), app.Config.JSON)
			return renderer.RenderChainList(result)
		},
	}

	return cmd
}
