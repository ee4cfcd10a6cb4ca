package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/trafficlens/trafficlens/internal/models"
)

var showFlags struct {
	clientConfig
	noBody bool
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a captured exchange in full",
	Long:  `Show the complete request and response of a captured exchange, including headers and bodies.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)

	addClientFlags(showCmd, &showFlags.clientConfig)
	showCmd.Flags().BoolVar(&showFlags.noBody, "no-body", false, "omit request and response bodies")
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid exchange id %q", args[0])
	}

	c := showFlags.newClient()
	e, err := c.GetExchange(id)
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)

	bold.Printf("Exchange #%d\n", e.ID)
	fmt.Printf("  Time:     %s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05.000"))
	fmt.Printf("  Duration: %.0fms\n", e.DurationSeconds*1000)
	fmt.Printf("  Analyzed: %v\n", e.Analyzed)
	if e.Notes != "" {
		fmt.Printf("  Notes:    %s\n", e.Notes)
	}

	fmt.Println()
	bold.Println("Request")
	fmt.Printf("  %s %s\n", e.Method, e.URL)
	printHeaders(e.RequestHeaders)
	if !showFlags.noBody {
		printBody(e.RequestBody)
	}

	fmt.Println()
	bold.Println("Response")
	if e.ResponseStatus != nil {
		fmt.Printf("  Status: %s\n", colorStatus(e.ResponseStatus))
	} else {
		fmt.Println("  Status: -")
	}
	printHeaders(e.ResponseHeaders)
	if !showFlags.noBody {
		printBody(e.ResponseBody)
	}

	return nil
}

func printHeaders(headers models.Headers) {
	for _, h := range headers {
		fmt.Printf("  %s: %s\n", h.Name, h.Value)
	}
}

func printBody(body models.Body) {
	if body.Text == "" {
		return
	}
	fmt.Println()
	if body.Encoding == models.BodyEncodingBase64 {
		fmt.Printf("  [binary body, base64, %d chars]\n", len(body.Text))
		return
	}
	fmt.Println(indent(body.Text, "  "))
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}
