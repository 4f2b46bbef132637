package cram

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz/lzma"
)

// CompressionMethod selects the general-purpose compressor applied to a
// block payload.
type CompressionMethod byte

const (
	MethodNone  CompressionMethod = 0
	MethodGzip  CompressionMethod = 1
	MethodBzip2 CompressionMethod = 2
	MethodLzma  CompressionMethod = 3

	// methodRANS is defined by later format versions; this implementation
	// treats it as reserved and refuses to decode it.
	methodRANS CompressionMethod = 4
)

func (m CompressionMethod) String() string {
	switch m {
	case MethodNone:
		return "none"
	case MethodGzip:
		return "gzip"
	case MethodBzip2:
		return "bzip2"
	case MethodLzma:
		return "lzma"
	case methodRANS:
		return "rans"
	default:
		return fmt.Sprintf("method(%d)", byte(m))
	}
}

// compress returns data compressed with the given method.
func compress(data []byte, method CompressionMethod) ([]byte, error) {
	switch method {
	case MethodNone:
		return data, nil
	case MethodGzip:
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, fmt.Errorf("gzip compress: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("gzip compress: %w", err)
		}
		return buf.Bytes(), nil
	case MethodBzip2:
		var buf bytes.Buffer
		bw, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
		if err != nil {
			return nil, fmt.Errorf("bzip2 compress: %w", err)
		}
		if _, err := bw.Write(data); err != nil {
			return nil, fmt.Errorf("bzip2 compress: %w", err)
		}
		if err := bw.Close(); err != nil {
			return nil, fmt.Errorf("bzip2 compress: %w", err)
		}
		return buf.Bytes(), nil
	case MethodLzma:
		var buf bytes.Buffer
		lw, err := lzma.NewWriter(&buf)
		if err != nil {
			return nil, fmt.Errorf("lzma compress: %w", err)
		}
		if _, err := lw.Write(data); err != nil {
			return nil, fmt.Errorf("lzma compress: %w", err)
		}
		if err := lw.Close(); err != nil {
			return nil, fmt.Errorf("lzma compress: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompressionMethod, method)
	}
}

// decompress inflates data compressed with the given method. rawSize is the
// declared size of the decompressed payload.
func decompress(data []byte, method CompressionMethod, rawSize int) ([]byte, error) {
	var r io.Reader
	switch method {
	case MethodNone:
		return data, nil
	case MethodGzip:
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip decompress: %w", err)
		}
		defer zr.Close()
		r = zr
	case MethodBzip2:
		br, err := bzip2.NewReader(bytes.NewReader(data), nil)
		if err != nil {
			return nil, fmt.Errorf("bzip2 decompress: %w", err)
		}
		defer br.Close()
		r = br
	case MethodLzma:
		lr, err := lzma.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("lzma decompress: %w", err)
		}
		r = lr
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompressionMethod, method)
	}

	raw := make([]byte, rawSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("%w: short decompressed payload: %v", ErrTruncated, err)
	}
	return raw, nil
}
