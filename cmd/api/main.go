package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "taskflow",
		Short: "Task and subtask backend with generated drafts",
		// Running the binary without a subcommand serves the API.
		RunE: runServe,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(aggregatesCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
