package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exportFlags struct {
	clientConfig
	filterFlags
	format string
	order  string
	output string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export captured traffic as JSON or HAR",
	Long: `Export captured exchanges to a file or stdout. The json format is a
full dump of the stored exchanges; the har format is an HTTP Archive
1.2 document importable into browser devtools and proxy tooling.`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	addClientFlags(exportCmd, &exportFlags.clientConfig)
	addFilterFlags(exportCmd, &exportFlags.filterFlags)
	exportCmd.Flags().StringVar(&exportFlags.format, "format", "json", "export format: json or har")
	exportCmd.Flags().StringVar(&exportFlags.order, "order", "", "sort order: asc or desc (har defaults to asc, json to desc)")
	exportCmd.Flags().StringVarP(&exportFlags.output, "output", "o", "", "output file (default stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
	opts, err := exportFlags.options()
	if err != nil {
		return err
	}
	opts.Order = exportFlags.order

	c := exportFlags.newClient()
	data, err := c.Export(exportFlags.format, opts)
	if err != nil {
		return err
	}

	if exportFlags.output == "" {
		_, err = os.Stdout.Write(data)
		return err
	}

	if err := os.WriteFile(exportFlags.output, data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Printf("Exported %d bytes to %s\n", len(data), exportFlags.output)
	return nil
}
