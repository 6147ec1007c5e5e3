package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/axellelanca/shortlink/cmd"
	"github.com/axellelanca/shortlink/internal/services"
)

var (
	listStartFlag int
	listPageFlag  int
	listLimitFlag int
)

// ListCmd prints one page of links, newest first.
var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists links, newest first.",
	Long: `Lists links ordered by creation date, newest first. Use either --start
(offset) or --page (1-based) together with --limit.`,
	Args: cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		if c.Flags().Changed("start") && c.Flags().Changed("page") {
			return errors.New("--start and --page are mutually exclusive")
		}
		offset := listStartFlag
		if c.Flags().Changed("page") {
			if listPageFlag < 1 {
				return errors.New("--page must be at least 1")
			}
			offset = (listPageFlag - 1) * listLimitFlag
		}

		linkService, closeDB, err := openLinkService(c.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		page, err := linkService.ListLinks(c.Context(), offset, listLimitFlag)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(c.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CODE\tCLICKS\tCREATED\tTARGET")
		for _, link := range page.Links {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", link.Code, link.TotalClicks, link.CreatedAt.Format("2006-01-02 15:04"), link.TargetURL)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(c.OutOrStdout(), "\nShowing %d of %d links (start=%d)\n", len(page.Links), page.Total, page.Offset)
		return nil
	},
}

func init() {
	ListCmd.Flags().IntVar(&listStartFlag, "start", 0, "Number of links to skip")
	ListCmd.Flags().IntVar(&listPageFlag, "page", 1, "Page number, starting at 1")
	ListCmd.Flags().IntVar(&listLimitFlag, "limit", services.DefaultPageSize, "Links per page (1-100)")

	cmd.RootCmd.AddCommand(ListCmd)
}
