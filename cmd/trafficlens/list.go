package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var listFlags struct {
	clientConfig
	filterFlags
	order string
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List captured exchanges",
	Long:  `List captured exchanges, newest first, with optional filters.`,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	addClientFlags(listCmd, &listFlags.clientConfig)
	addFilterFlags(listCmd, &listFlags.filterFlags)
	listCmd.Flags().StringVar(&listFlags.order, "order", "", "sort order: asc or desc (default desc)")
}

func runList(cmd *cobra.Command, args []string) error {
	opts, err := listFlags.options()
	if err != nil {
		return err
	}
	opts.Order = listFlags.order

	c := listFlags.newClient()
	resp, err := c.ListExchanges(opts)
	if err != nil {
		return err
	}

	if len(resp.Exchanges) == 0 {
		fmt.Println("No exchanges captured.")
		return nil
	}

	fmt.Printf("%-6s  %-19s  %-7s  %-6s  %-9s  %s\n", "ID", "TIME", "METHOD", "STATUS", "DURATION", "URL")
	for _, e := range resp.Exchanges {
		fmt.Printf("%-6d  %-19s  %-7s  %-6s  %-9s  %s\n",
			e.ID, formatTimestamp(e.Timestamp), e.Method,
			colorStatus(e.ResponseStatus),
			fmt.Sprintf("%.0fms", e.Duration*1000), e.URL)
	}
	fmt.Printf("\n%d exchanges\n", resp.Count)
	return nil
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func colorStatus(status *int) string {
	if status == nil {
		return "-"
	}
	s := fmt.Sprintf("%d", *status)
	switch {
	case *status >= 500:
		return color.RedString(s)
	case *status >= 400:
		return color.YellowString(s)
	case *status >= 300:
		return color.CyanString(s)
	default:
		return color.GreenString(s)
	}
}
