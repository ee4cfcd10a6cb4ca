package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statsFlags struct {
	clientConfig
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show traffic statistics",
	Long:  `Show aggregate traffic statistics: totals, response times, and the busiest hosts and methods.`,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	addClientFlags(statsCmd, &statsFlags.clientConfig)
}

func runStats(cmd *cobra.Command, args []string) error {
	c := statsFlags.newClient()

	stats, err := c.Stats()
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)

	bold.Println("Traffic")
	fmt.Printf("  Exchanges:     %d\n", stats.Total)
	fmt.Printf("  Unique hosts:  %d\n", stats.UniqueHosts)
	fmt.Printf("  Avg response:  %.0fms\n", stats.AvgDurationMS)
	fmt.Printf("  Min response:  %.0fms\n", stats.MinDurationMS)
	fmt.Printf("  Max response:  %.0fms\n", stats.MaxDurationMS)
	fmt.Printf("  Slow (>2s):    %d\n", stats.SlowCount)

	hosts, err := c.QueryHosts()
	if err != nil {
		return err
	}
	if len(hosts.Groups) > 0 {
		fmt.Println()
		bold.Println("Hosts")
		for _, g := range hosts.Groups {
			fmt.Printf("  %-40s %d\n", g.Key, g.Count)
		}
	}

	methods, err := c.QueryMethods()
	if err != nil {
		return err
	}
	if len(methods.Groups) > 0 {
		fmt.Println()
		bold.Println("Methods")
		for _, g := range methods.Groups {
			fmt.Printf("  %-8s %d\n", g.Key, g.Count)
		}
	}

	return nil
}
