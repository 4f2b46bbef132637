package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scttfrdmn/cram-go/pkg/cram"
	"github.com/scttfrdmn/cram-go/pkg/index"
)

var indexOutput string

func init() {
	indexCmd.Flags().StringVarP(&indexOutput, "output", "o", "", "Index file to write (default <file>.crai)")
}

var indexCmd = &cobra.Command{
	Use:   "index <file.cram>",
	Short: "Build a slice index",
	Long: `Scan a container stream and write a slice index next to it.

The index records, per slice, its reference placement and byte
location, letting 'cramgo view --region' seek straight to the
overlapping slices.

Example:
  cramgo index sample.cram`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		reader, err := cram.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}

		idx, err := index.Build(reader)
		if err != nil {
			return fmt.Errorf("failed to build index: %w", err)
		}

		out := indexOutput
		if out == "" {
			out = path + ".crai"
		}
		of, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := idx.Write(of); err != nil {
			of.Close()
			return err
		}
		if err := of.Close(); err != nil {
			return err
		}

		fmt.Printf("Indexed %d slices to %s\n", len(idx.Entries), out)
		return nil
	},
}
