package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cramgo",
	Short: "CRAM - Reference-compressed alignment tools",
	Long: `cramgo reads and writes reference-compressed alignment containers.

This tool provides commands for converting BAM files to and from the
container format, viewing records, building slice indexes, and reporting
statistics on container streams.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(tobamCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("cramgo version 0.1.0")
		fmt.Println("Reference-compressed alignment container tools")
	},
}
