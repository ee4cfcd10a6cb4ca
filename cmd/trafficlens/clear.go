package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var clearFlags struct {
	clientConfig
	yes bool
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all captured exchanges",
	Long:  `Delete every captured exchange from the store. Asks for confirmation unless --yes is given.`,
	RunE:  runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)

	addClientFlags(clearCmd, &clearFlags.clientConfig)
	clearCmd.Flags().BoolVarP(&clearFlags.yes, "yes", "y", false, "skip the confirmation prompt")
}

func runClear(cmd *cobra.Command, args []string) error {
	if !clearFlags.yes {
		fmt.Print("Delete ALL captured exchanges? Type 'yes' to confirm: ")
		reader := bufio.NewReader(os.Stdin)
		answer, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		if strings.TrimSpace(answer) != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	c := clearFlags.newClient()
	resp, err := c.DeleteAll()
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d exchanges.\n", resp.Deleted)
	return nil
}
