package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trafficlens/trafficlens/internal/client"
)

var searchFlags struct {
	clientConfig
	limit int
}

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search captured traffic",
	Long:  `Search URLs, request bodies, and response bodies for a substring.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	addClientFlags(searchCmd, &searchFlags.clientConfig)
	searchCmd.Flags().IntVar(&searchFlags.limit, "limit", 0, "maximum number of matches")
}

func runSearch(cmd *cobra.Command, args []string) error {
	c := searchFlags.newClient()
	resp, err := c.ListExchanges(client.ListOptions{Search: args[0], Limit: searchFlags.limit})
	if err != nil {
		return err
	}

	if len(resp.Exchanges) == 0 {
		fmt.Printf("No exchanges matching %q.\n", args[0])
		return nil
	}

	fmt.Printf("%-6s  %-19s  %-7s  %-6s  %s\n", "ID", "TIME", "METHOD", "STATUS", "URL")
	for _, e := range resp.Exchanges {
		fmt.Printf("%-6d  %-19s  %-7s  %-6s  %s\n",
			e.ID, formatTimestamp(e.Timestamp), e.Method, colorStatus(e.ResponseStatus), e.URL)
	}
	fmt.Printf("\n%d matches\n", resp.Count)
	return nil
}
