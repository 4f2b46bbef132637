package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/scttfrdmn/cram-go/pkg/cram"
)

var statsCmd = &cobra.Command{
	Use:   "stats <file.cram>",
	Short: "Show statistics for a container stream",
	Long: `Display structural statistics for a container stream.

Only container and slice headers are read; record data stays
compressed, so this is fast even on large files.

Example:
  cramgo stats sample.cram`,
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

		var (
			containers, slices int
			records, bases     int64
			mappedSlices       int
			multiRefSlices     int
		)
		for {
			c, _, err := reader.NextContainer()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			containers++
			records += int64(c.Header.RecordCount)
			bases += c.Header.BaseCount
			for i := 0; i < c.SliceCount(); i++ {
				s, err := c.Slice(i)
				if err != nil {
					return err
				}
				slices++
				switch {
				case s.Header.ReferenceID >= 0:
					mappedSlices++
				case s.Header.ReferenceID == -2:
					multiRefSlices++
				}
			}
		}

		header := reader.Header()

		fmt.Println("===========================================")
		fmt.Println("Container Stream Statistics")
		fmt.Println("===========================================")
		fmt.Println()
		fmt.Printf("File id: %x\n", reader.FileID())
		fmt.Println()

		fmt.Println("Structure:")
		fmt.Printf("  Containers: %d\n", containers)
		fmt.Printf("  Slices: %d (%d single-reference, %d multi-reference)\n",
			slices, mappedSlices, multiRefSlices)
		fmt.Printf("  Records: %d\n", records)
		fmt.Printf("  Bases: %d\n", bases)
		fmt.Println()

		fmt.Println("References:")
		for _, ref := range header.Refs() {
			fmt.Printf("  %s: %d bp\n", ref.Name(), ref.Len())
		}

		return nil
	},
}
