package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var scanFlags struct {
	clientConfig
	limit int
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a security scan over recent exchanges",
	Long:  `Analyze the most recent exchanges for security issues and report the exchanges scoring in the high-risk range.`,
	RunE:  runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	addClientFlags(scanCmd, &scanFlags.clientConfig)
	scanCmd.Flags().IntVar(&scanFlags.limit, "limit", 0, "scan window size (default 100)")
}

func runScan(cmd *cobra.Command, args []string) error {
	c := scanFlags.newClient()
	report, err := c.SecurityScan(scanFlags.limit)
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)

	bold.Println("Security scan")
	fmt.Printf("  Scanned:      %d\n", report.Scanned)
	fmt.Printf("  Total issues: %d\n", report.TotalIssues)
	if report.Skipped > 0 {
		fmt.Printf("  Skipped:      %d\n", report.Skipped)
	}

	if len(report.UniqueIssues) > 0 {
		fmt.Println()
		bold.Println("Issues found")
		for _, issue := range report.UniqueIssues {
			fmt.Printf("  - %s\n", issue)
		}
	}

	if len(report.HighRisk) > 0 {
		fmt.Println()
		bold.Println("High-risk exchanges")
		for _, hr := range report.HighRisk {
			fmt.Printf("  #%-6d score %s, %d issues\n", hr.ExchangeID, colorScore(hr.Score), len(hr.Issues))
		}
	} else {
		fmt.Println()
		color.Green("No high-risk exchanges.")
	}

	return nil
}
