package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axellelanca/shortlink/cmd"
)

var (
	targetURLFlag  string
	customCodeFlag string
)

// CreateCmd représente la commande 'create'
var CreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Creates a short code for a long URL.",
	Long: `Shortens the given URL and prints the short code. A custom 6-8 character
alphanumeric code can be requested with --code.

Example:
  shortlink create --url="example.com/a/b"
  shortlink create --url="https://go.dev" --code=godev1`,
	RunE: func(c *cobra.Command, args []string) error {
		linkService, closeDB, err := openLinkService(c.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		link, err := linkService.CreateLink(c.Context(), targetURLFlag, customCodeFlag)
		if err != nil {
			return describe(customCodeFlag, err)
		}

		fmt.Fprintf(c.OutOrStdout(), "Short URL created:\n")
		fmt.Fprintf(c.OutOrStdout(), "Code: %s\n", link.Code)
		fmt.Fprintf(c.OutOrStdout(), "Target: %s\n", link.TargetURL)
		fmt.Fprintf(c.OutOrStdout(), "Short URL: %s/%s\n", cmd.Cfg.Server.BaseURL, link.Code)
		return nil
	},
}

func init() {
	CreateCmd.Flags().StringVar(&targetURLFlag, "url", "", "The long URL to shorten")
	CreateCmd.Flags().StringVar(&customCodeFlag, "code", "", "Optional custom code (6-8 letters or digits)")
	_ = CreateCmd.MarkFlagRequired("url")

	cmd.RootCmd.AddCommand(CreateCmd)
}
