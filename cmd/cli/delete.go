package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axellelanca/shortlink/cmd"
)

// DeleteCmd removes a link permanently.
var DeleteCmd = &cobra.Command{
	Use:   "delete [short-code]",
	Short: "Deletes a short link.",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		code := args[0]

		linkService, closeDB, err := openLinkService(c.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		link, err := linkService.DeleteLink(c.Context(), code)
		if err != nil {
			return describe(code, err)
		}
		fmt.Fprintf(c.OutOrStdout(), "Deleted %s -> %s (%d clicks)\n", link.Code, link.TargetURL, link.TotalClicks)
		return nil
	},
}

func init() {
	cmd.RootCmd.AddCommand(DeleteCmd)
}
