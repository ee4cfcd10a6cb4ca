package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/trafficlens/trafficlens/internal/models"
)

var analyzeFlags struct {
	clientConfig
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <id>",
	Short: "Analyze a captured exchange",
	Long: `Run the rule-based analysis on a single exchange and print its
security score, vulnerabilities, and optimization suggestions.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	addClientFlags(analyzeCmd, &analyzeFlags.clientConfig)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid exchange id %q", args[0])
	}

	c := analyzeFlags.newClient()
	resp, err := c.AnalyzeExchange(id)
	if err != nil {
		return err
	}
	result := resp.Analysis

	bold := color.New(color.Bold)
	bold.Printf("Exchange #%d\n", resp.ExchangeID)
	fmt.Printf("  %s\n", result.Summary)
	fmt.Printf("  Security score: %s\n", colorScore(result.Score))

	if len(result.Vulnerabilities) > 0 {
		fmt.Println()
		bold.Println("Vulnerabilities")
		for _, f := range result.Vulnerabilities {
			fmt.Printf("  [%s] %s\n", severityString(f.Severity), f.Message)
		}
	}

	if len(result.Recommendations) > 0 {
		fmt.Println()
		bold.Println("Recommendations")
		for _, f := range result.Recommendations {
			fmt.Printf("  - %s\n", f.Message)
		}
	}

	if len(result.Insights) > 0 {
		fmt.Println()
		bold.Println("Insights")
		keys := make([]string, 0, len(result.Insights))
		for k := range result.Insights {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  %-20s %v\n", k, result.Insights[k])
		}
	}

	return nil
}

func colorScore(score int) string {
	s := strconv.Itoa(score)
	switch {
	case score < 70:
		return color.RedString(s)
	case score < 100:
		return color.YellowString(s)
	default:
		return color.GreenString(s)
	}
}

func severityString(sev string) string {
	switch sev {
	case models.SeverityHigh:
		return color.RedString("high")
	case models.SeverityMedium:
		return color.YellowString("medium")
	default:
		return "low"
	}
}
