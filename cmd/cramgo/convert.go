package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scttfrdmn/cram-go/pkg/bam"
	"github.com/scttfrdmn/cram-go/pkg/cram"
	"github.com/scttfrdmn/cram-go/pkg/index"
	"github.com/scttfrdmn/cram-go/pkg/refseq"
)

var (
	convertReference string
	convertMethod    string
	convertSliceSize int
	convertEmbedRef  bool
	convertIndex     bool
	tobamReference   string
)

func init() {
	convertCmd.Flags().StringVarP(&convertReference, "reference", "T", "", "Reference FASTA file (required)")
	convertCmd.Flags().StringVar(&convertMethod, "compression", "gzip", "Block compression: none, gzip, bzip2, lzma")
	convertCmd.Flags().IntVar(&convertSliceSize, "records-per-slice", cram.DefaultRecordsPerSlice, "Records per slice")
	convertCmd.Flags().BoolVar(&convertEmbedRef, "embed-ref", false, "Embed reference windows in each slice")
	convertCmd.Flags().BoolVar(&convertIndex, "index", false, "Write a slice index (.crai) alongside the output")
	_ = convertCmd.MarkFlagRequired("reference")

	tobamCmd.Flags().StringVarP(&tobamReference, "reference", "T", "", "Reference FASTA file")
}

var convertCmd = &cobra.Command{
	Use:   "convert <input.bam> <output.cram>",
	Short: "Convert a BAM file to a container stream",
	Long: `Convert a BAM file, compressing its reads against the reference.

Mapped reads are stored as edits relative to the reference FASTA, so the
same FASTA (or --embed-ref at write time) is needed to read the output
back.

Examples:
  cramgo convert sample.bam sample.cram -T ref.fa
  cramgo convert sample.bam sample.cram -T ref.fa --compression lzma
  cramgo convert sample.bam sample.cram -T ref.fa --embed-ref`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := refseq.Load(convertReference)
		if err != nil {
			return fmt.Errorf("failed to load reference: %w", err)
		}

		method, err := compressionMethod(convertMethod)
		if err != nil {
			return err
		}

		opts := []cram.WriterOption{
			cram.WithCompressionMethod(method),
			cram.WithRecordsPerSlice(convertSliceSize),
		}
		if convertEmbedRef {
			opts = append(opts, cram.WithEmbeddedReference(true))
		}

		idx := &index.Index{}
		if convertIndex {
			opts = append(opts, cram.WithSliceWritten(idx.Collector()))
		}

		if err := bam.ConvertBAM(args[0], args[1], repo, opts...); err != nil {
			return err
		}
		if !convertIndex {
			return nil
		}

		idxFile, err := os.Create(args[1] + ".crai")
		if err != nil {
			return fmt.Errorf("failed to create index file: %w", err)
		}
		if err := idx.Write(idxFile); err != nil {
			idxFile.Close()
			return err
		}
		return idxFile.Close()
	},
}

var tobamCmd = &cobra.Command{
	Use:   "tobam <input.cram> <output.bam>",
	Short: "Convert a container stream back to BAM",
	Long: `Decode a container stream and write its records as a BAM file.

Slices without embedded reference windows need the reference FASTA to
rebuild sequences. An output of "-" streams the BAM to stdout.

Examples:
  cramgo tobam sample.cram sample.bam -T ref.fa
  cramgo tobam sample.cram - -T ref.fa | samtools view -`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var repo *refseq.Repository
		if tobamReference != "" {
			var err error
			if repo, err = refseq.Load(tobamReference); err != nil {
				return fmt.Errorf("failed to load reference: %w", err)
			}
		}
		if repo == nil {
			return bam.ConvertToBAM(args[0], args[1], nil)
		}
		return bam.ConvertToBAM(args[0], args[1], repo)
	},
}

func compressionMethod(name string) (cram.CompressionMethod, error) {
	switch name {
	case "none":
		return cram.MethodNone, nil
	case "gzip":
		return cram.MethodGzip, nil
	case "bzip2":
		return cram.MethodBzip2, nil
	case "lzma":
		return cram.MethodLzma, nil
	default:
		return 0, fmt.Errorf("unknown compression method %q", name)
	}
}
