package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var sessionFlags struct {
	clientConfig
	limit int
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Analyze the recent capture session",
	Long:  `Aggregate the most recent exchanges into a session report: method and status distributions, top hosts, and recommendations.`,
	RunE:  runSession,
}

func init() {
	rootCmd.AddCommand(sessionCmd)

	addClientFlags(sessionCmd, &sessionFlags.clientConfig)
	sessionCmd.Flags().IntVar(&sessionFlags.limit, "limit", 0, "session window size (default 100)")
}

func runSession(cmd *cobra.Command, args []string) error {
	c := sessionFlags.newClient()
	report, err := c.AnalyzeSession(sessionFlags.limit)
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)

	bold.Println("Session")
	fmt.Printf("  Exchanges:       %d\n", report.TotalExchanges)
	fmt.Printf("  Unique hosts:    %d\n", report.UniqueHosts)
	fmt.Printf("  Avg response:    %.0fms\n", report.AvgDurationMS)
	fmt.Printf("  Security issues: %d\n", report.SecurityIssues)
	if report.Skipped > 0 {
		fmt.Printf("  Skipped:         %d\n", report.Skipped)
	}

	if len(report.Methods) > 0 {
		fmt.Println()
		bold.Println("Methods")
		printCountMap(report.Methods)
	}

	if len(report.StatusCodes) > 0 {
		fmt.Println()
		bold.Println("Status codes")
		printCountMap(report.StatusCodes)
	}

	if len(report.TopHosts) > 0 {
		fmt.Println()
		bold.Println("Top hosts")
		for _, h := range report.TopHosts {
			fmt.Printf("  %-40s %d\n", h.Host, h.Count)
		}
	}

	if len(report.Recommendations) > 0 {
		fmt.Println()
		bold.Println("Recommendations")
		for _, r := range report.Recommendations {
			fmt.Printf("  - %s\n", r)
		}
	}

	return nil
}

func printCountMap(m map[string]int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-8s %d\n", k, m[k])
	}
}
