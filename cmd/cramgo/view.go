package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scttfrdmn/cram-go/pkg/cram"
	"github.com/scttfrdmn/cram-go/pkg/index"
	"github.com/scttfrdmn/cram-go/pkg/refseq"
)

var (
	viewReference string
	viewRegion    string
	viewLimit     int
)

func init() {
	viewCmd.Flags().StringVarP(&viewReference, "reference", "T", "", "Reference FASTA file")
	viewCmd.Flags().StringVarP(&viewRegion, "region", "r", "", "Region to view (chr:start-end)")
	viewCmd.Flags().IntVarP(&viewLimit, "limit", "n", 0, "Stop after this many records (0 = all)")
}

var viewCmd = &cobra.Command{
	Use:   "view <file.cram>",
	Short: "Print records as SAM text",
	Long: `Print the records of a container stream as SAM-style text lines.

Slices that do not embed their reference window need the reference
FASTA to rebuild sequences. With --region, the slice index written by
'cramgo index' is used to seek straight to the overlapping slices.

Examples:
  cramgo view sample.cram -T ref.fa
  cramgo view sample.cram -T ref.fa -r chr1:1000000-2000000
  cramgo view sample.cram -T ref.fa -n 10`,
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

		var repo *refseq.Repository
		if viewReference != "" {
			if repo, err = refseq.Load(viewReference); err != nil {
				return fmt.Errorf("failed to load reference: %w", err)
			}
			reader.SetReferenceProvider(repo)
		}

		if viewRegion == "" {
			return printRecords(reader, nil, viewLimit)
		}

		refID, start, end, err := parseRegion(reader, repo, viewRegion)
		if err != nil {
			return fmt.Errorf("invalid region: %w", err)
		}

		idxFile, err := os.Open(path + ".crai")
		if err != nil {
			return fmt.Errorf("region queries need an index, run 'cramgo index' first: %w", err)
		}
		idx, err := index.Read(idxFile)
		idxFile.Close()
		if err != nil {
			return err
		}

		entries := idx.Query(refID, start, end)
		written := 0
		filter := func(rec *cram.Record) bool {
			if int32(rec.ReferenceID) != refID {
				return false
			}
			return rec.Position <= end && start < rec.Position+rec.AlignmentSpan()
		}
		for _, e := range entries {
			if err := reader.Seek(e.ContainerOffset, int(e.Landmark)); err != nil {
				return err
			}
			for i := int32(0); i < e.RecordCount; i++ {
				rec, err := reader.Read()
				if err == io.EOF {
					break
				}
				if err != nil {
					return err
				}
				if !filter(rec) {
					continue
				}
				printRecord(reader, rec)
				if written++; viewLimit > 0 && written >= viewLimit {
					return nil
				}
			}
		}
		return nil
	},
}

func printRecords(reader *cram.Reader, filter func(*cram.Record) bool, limit int) error {
	written := 0
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if filter != nil && !filter(rec) {
			continue
		}
		printRecord(reader, rec)
		if written++; limit > 0 && written >= limit {
			return nil
		}
	}
}

func printRecord(reader *cram.Reader, rec *cram.Record) {
	refs := reader.Header().Refs()
	name := func(id int) string {
		if id >= 0 && id < len(refs) {
			return refs[id].Name()
		}
		return "*"
	}

	qname := rec.Name
	if qname == "" {
		qname = "*"
	}
	seq := "*"
	if len(rec.Sequence) > 0 {
		seq = string(rec.Sequence)
	}
	qual := "*"
	if len(rec.Quality) > 0 {
		q := make([]byte, len(rec.Quality))
		for i, s := range rec.Quality {
			q[i] = s + 33
		}
		qual = string(q)
	}

	fields := []string{
		qname,
		strconv.Itoa(rec.Flags),
		name(rec.ReferenceID),
		strconv.Itoa(rec.Position),
		strconv.Itoa(int(rec.MappingQuality)),
		rec.CIGAR(),
		name(rec.MateReferenceID),
		strconv.Itoa(rec.MatePosition),
		strconv.Itoa(rec.TemplateLength),
		seq,
		qual,
	}
	for _, t := range rec.Tags {
		fields = append(fields, t.String())
	}
	fmt.Println(strings.Join(fields, "\t"))
}

// parseRegion resolves chr:start-end against the header's reference list,
// or the FASTA's when the header lists none.
func parseRegion(reader *cram.Reader, repo *refseq.Repository, region string) (int32, int, int, error) {
	name, span, ok := strings.Cut(region, ":")
	if !ok {
		return 0, 0, 0, fmt.Errorf("expected chr:start-end, found %q", region)
	}
	startStr, endStr, ok := strings.Cut(span, "-")
	if !ok {
		return 0, 0, 0, fmt.Errorf("expected chr:start-end, found %q", region)
	}
	start, err := strconv.Atoi(strings.ReplaceAll(startStr, ",", ""))
	if err != nil {
		return 0, 0, 0, err
	}
	end, err := strconv.Atoi(strings.ReplaceAll(endStr, ",", ""))
	if err != nil {
		return 0, 0, 0, err
	}
	if start < 1 || end < start {
		return 0, 0, 0, fmt.Errorf("bad interval %d-%d", start, end)
	}

	for id, ref := range reader.Header().Refs() {
		if ref.Name() == name {
			return int32(id), start, end, nil
		}
	}
	if repo != nil {
		if id, ok := repo.ID(name); ok {
			return int32(id), start, end, nil
		}
	}
	return 0, 0, 0, fmt.Errorf("unknown reference %q", name)
}
