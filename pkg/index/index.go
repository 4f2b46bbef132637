// Package index builds and queries slice indexes for container streams: a
// gzip-compressed tab-separated table with one line per slice, enough to
// seek a reader straight to the slices overlapping a region.
package index

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/scttfrdmn/cram-go/pkg/cram"
)

// Entry locates one slice: where its records align and where its bytes
// live. ContainerOffset is the stream offset of the container header;
// Landmark is the slice's index within the container.
type Entry struct {
	ReferenceID     int32
	Start           int32
	Span            int32
	ContainerOffset int64
	Landmark        int32
	RecordCount     int32
}

func (e Entry) overlaps(refID int32, start, end int) bool {
	if e.ReferenceID != refID {
		return false
	}
	return int(e.Start) <= end && start < int(e.Start+e.Span)
}

// Index is an ordered list of slice entries.
type Index struct {
	Entries []Entry
}

// Build scans every container of r and records one entry per slice. The
// reader's record cursor is consumed; open a fresh reader for record
// access afterwards.
func Build(r *cram.Reader) (*Index, error) {
	idx := &Index{}
	for {
		c, offset, err := r.NextContainer()
		if err == io.EOF {
			return idx, nil
		}
		if err != nil {
			return nil, err
		}
		for i := 0; i < c.SliceCount(); i++ {
			s, err := c.Slice(i)
			if err != nil {
				return nil, err
			}
			idx.Entries = append(idx.Entries, Entry{
				ReferenceID:     s.Header.ReferenceID,
				Start:           s.Header.Start,
				Span:            s.Header.Span,
				ContainerOffset: offset,
				Landmark:        int32(i),
				RecordCount:     s.Header.RecordCount,
			})
		}
	}
}

// Collector returns a callback for cram.WithSliceWritten, appending one
// entry per slice as the writer emits it. The index is ready once the
// writer is closed.
func (x *Index) Collector() func(cram.SliceInfo) {
	return func(info cram.SliceInfo) {
		x.Entries = append(x.Entries, Entry{
			ReferenceID:     info.ReferenceID,
			Start:           info.Start,
			Span:            info.Span,
			ContainerOffset: info.ContainerOffset,
			Landmark:        int32(info.Landmark),
			RecordCount:     info.RecordCount,
		})
	}
}

// Query returns the entries whose slices may hold records of the region,
// 1-based inclusive. Multi-reference slices (reference id -2) always
// match, since their headers say nothing about placement.
func (x *Index) Query(refID int32, start, end int) []Entry {
	var out []Entry
	for _, e := range x.Entries {
		if e.ReferenceID == -2 || e.overlaps(refID, start, end) {
			out = append(out, e)
		}
	}
	return out
}

// Write serializes the index as gzip-compressed tab-separated lines,
// sorted by container offset then landmark.
func (x *Index) Write(w io.Writer) error {
	entries := make([]Entry, len(x.Entries))
	copy(entries, x.Entries)
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ContainerOffset != entries[j].ContainerOffset {
			return entries[i].ContainerOffset < entries[j].ContainerOffset
		}
		return entries[i].Landmark < entries[j].Landmark
	})

	gz := gzip.NewWriter(w)
	for _, e := range entries {
		_, err := fmt.Fprintf(gz, "%d\t%d\t%d\t%d\t%d\t%d\n",
			e.ReferenceID, e.Start, e.Span, e.ContainerOffset, e.Landmark, e.RecordCount)
		if err != nil {
			gz.Close()
			return err
		}
	}
	return gz.Close()
}

// Read parses an index written by Write.
func Read(r io.Reader) (*Index, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer gz.Close()

	idx := &Index{}
	sc := bufio.NewScanner(gz)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) != 6 {
			return nil, fmt.Errorf("line %d: expected 6 fields, found %d", line, len(fields))
		}

		var v [6]int64
		for i, f := range fields {
			if v[i], err = strconv.ParseInt(f, 10, 64); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		idx.Entries = append(idx.Entries, Entry{
			ReferenceID:     int32(v[0]),
			Start:           int32(v[1]),
			Span:            int32(v[2]),
			ContainerOffset: v[3],
			Landmark:        int32(v[4]),
			RecordCount:     int32(v[5]),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return idx, nil
}
