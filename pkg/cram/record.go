package cram

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// BAM flag bits used by the codec.
const (
	FlagSegmented    = 0x1
	FlagUnmapped     = 0x4
	FlagMateUnmapped = 0x8
	FlagReverse      = 0x10
	FlagMateReverse  = 0x20
	FlagSecondary    = 0x100
)

// Record flag bits internal to the container format.
const (
	recordFlagQualityStored  = 0x1
	recordFlagDetached       = 0x2
	recordFlagMateDownstream = 0x4
	recordFlagUnknownBases   = 0x8
)

// missingQualityScore fills the quality slice of records whose scores were
// not stored.
const missingQualityScore = 0xff

// Record is one alignment record. Records are produced and consumed one at
// a time; the codec never retains them.
type Record struct {
	Name           string
	Flags          int // BAM flag bits
	ReferenceID    int // -1 when unmapped without position
	Position       int // 1-based, 0 when absent
	MappingQuality uint8
	ReadLength     int

	MateReferenceID int
	MatePosition    int
	TemplateLength  int

	ReadGroupID int // -1 when the record has no read group

	// Features describe a mapped read relative to its reference window;
	// Sequence is materialized from them at decode time.
	Features []ReadFeature

	Tags []Tag

	Sequence []byte
	Quality  []byte // raw Phred scores; nil when not stored
}

// IsMapped reports whether the record is aligned to a reference.
func (r *Record) IsMapped() bool {
	return r.Flags&FlagUnmapped == 0
}

// AlignmentSpan returns the number of reference bases the record covers,
// derived from its read length and features.
func (r *Record) AlignmentSpan() int {
	span := r.ReadLength
	for _, f := range r.Features {
		switch f.Code {
		case FeatureDeletion, FeatureReferenceSkip:
			span += f.Length
		case FeatureInsertion:
			span -= len(f.Bases)
		case FeatureInsertBase:
			span--
		case FeatureSoftClip:
			span -= len(f.Bases)
		}
	}
	if span < 0 {
		return 0
	}
	return span
}

// CIGAR renders the record's alignment as a CIGAR string, rebuilt from its
// read features. Stretches not covered by a feature are matches.
func (r *Record) CIGAR() string {
	if !r.IsMapped() {
		return "*"
	}

	type cigarOp struct {
		op byte
		n  int
	}
	var ops []cigarOp
	add := func(op byte, n int) {
		if n <= 0 {
			return
		}
		if len(ops) > 0 && ops[len(ops)-1].op == op {
			ops[len(ops)-1].n += n
			return
		}
		ops = append(ops, cigarOp{op, n})
	}

	readPos := 1
	for _, f := range r.Features {
		add('M', f.Position-readPos)
		if f.Position > readPos {
			readPos = f.Position
		}
		switch f.Code {
		case FeatureReadBase, FeatureSubstitution:
			add('M', 1)
			readPos++
		case FeatureInsertion:
			add('I', len(f.Bases))
			readPos += len(f.Bases)
		case FeatureInsertBase:
			add('I', 1)
			readPos++
		case FeatureDeletion:
			add('D', f.Length)
		case FeatureReferenceSkip:
			add('N', f.Length)
		case FeatureSoftClip:
			add('S', len(f.Bases))
			readPos += len(f.Bases)
		case FeaturePadding:
			add('P', f.Length)
		case FeatureHardClip:
			add('H', f.Length)
		case FeatureBases:
			add('M', len(f.Bases))
			readPos += len(f.Bases)
		}
	}
	add('M', r.ReadLength-readPos+1)

	if len(ops) == 0 {
		return "*"
	}
	var sb strings.Builder
	for _, o := range ops {
		sb.WriteString(strconv.Itoa(o.n))
		sb.WriteByte(o.op)
	}
	return sb.String()
}

// Tag is one auxiliary field: a two-character name, a BAM value type code,
// and the raw value bytes in BAM representation. The codec round-trips the
// bytes opaquely.
type Tag struct {
	Name  [2]byte
	Type  byte
	Value []byte
}

func (t Tag) key() TagKey {
	return MakeTagKey(t.Name, t.Type)
}

// Int returns the value of an integer-typed tag.
func (t Tag) Int() (int64, bool) {
	switch t.Type {
	case 'c':
		if len(t.Value) == 1 {
			return int64(int8(t.Value[0])), true
		}
	case 'C':
		if len(t.Value) == 1 {
			return int64(t.Value[0]), true
		}
	case 's':
		if len(t.Value) == 2 {
			return int64(int16(binary.LittleEndian.Uint16(t.Value))), true
		}
	case 'S':
		if len(t.Value) == 2 {
			return int64(binary.LittleEndian.Uint16(t.Value)), true
		}
	case 'i':
		if len(t.Value) == 4 {
			return int64(int32(binary.LittleEndian.Uint32(t.Value))), true
		}
	case 'I':
		if len(t.Value) == 4 {
			return int64(binary.LittleEndian.Uint32(t.Value)), true
		}
	}
	return 0, false
}

// String renders the tag in SAM text form where the type allows, falling
// back to a hex dump.
func (t Tag) String() string {
	prefix := fmt.Sprintf("%c%c:%c:", t.Name[0], t.Name[1], t.Type)
	if v, ok := t.Int(); ok {
		return fmt.Sprintf("%si:%d", prefix[:3], v)
	}
	switch t.Type {
	case 'A':
		if len(t.Value) == 1 {
			return prefix + string(t.Value)
		}
	case 'Z':
		return prefix + string(t.Value)
	case 'f':
		if len(t.Value) == 4 {
			bits := binary.LittleEndian.Uint32(t.Value)
			return fmt.Sprintf("%s%g", prefix, math.Float32frombits(bits))
		}
	}
	return fmt.Sprintf("%s%x", prefix, t.Value)
}
