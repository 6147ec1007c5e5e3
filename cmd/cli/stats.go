package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axellelanca/shortlink/cmd"
)

// StatsCmd représente la commande 'stats'
var StatsCmd = &cobra.Command{
	Use:   "stats [short-code]",
	Short: "Get statistics for a short URL",
	Long:  `Get click statistics for the provided short code.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	cmd.RootCmd.AddCommand(StatsCmd)
}

func runStats(c *cobra.Command, args []string) error {
	code := args[0]

	linkService, closeDB, err := openLinkService(c.Context())
	if err != nil {
		return err
	}
	defer closeDB()

	link, err := linkService.GetLinkByShortCode(c.Context(), code)
	if err != nil {
		return describe(code, err)
	}

	out := c.OutOrStdout()
	fmt.Fprintf(out, "Statistics for code: %s\n", link.Code)
	fmt.Fprintf(out, "Target URL: %s\n", link.TargetURL)
	fmt.Fprintf(out, "Total clicks: %d\n", link.TotalClicks)
	if link.LastClicked != nil {
		fmt.Fprintf(out, "Last clicked: %s\n", link.LastClicked.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Fprintf(out, "Last clicked: never\n")
	}
	fmt.Fprintf(out, "Created: %s\n", link.CreatedAt.Format("2006-01-02 15:04:05"))
	return nil
}
