package columnar

import (
	"bytes"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/snappy"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the codec applied to a snapshot body.
type Compression string

const (
	CompressionNone   Compression = "none"
	CompressionLZ4    Compression = "lz4"
	CompressionSnappy Compression = "snappy"
	CompressionZstd   Compression = "zstd"
)

var compressionCodes = map[Compression]byte{
	CompressionNone:   0,
	CompressionLZ4:    1,
	CompressionSnappy: 2,
	CompressionZstd:   3,
}

// ParseCompression validates a compression name.
func ParseCompression(s string) (Compression, error) {
	c := Compression(s)
	if _, ok := compressionCodes[c]; !ok {
		return "", fmt.Errorf("unknown compression %q (want none, lz4, snappy or zstd)", s)
	}
	return c, nil
}

var snapshotMagic = [4]byte{'C', 'H', 'R', 'N'}

const snapshotVersion byte = 1

// Column is one encoded attribute column.
type Column struct {
	Name string
	Data []byte
}

// Snapshot is a portal's rows in columnar form.
type Snapshot struct {
	ID      uuid.UUID
	Portal  string
	Rows    int
	Columns []Column
}

// SnapshotOptions configures WriteSnapshot.
type SnapshotOptions struct {
	Compression Compression
}

// DefaultSnapshotOptions returns lz4 compression.
func DefaultSnapshotOptions() SnapshotOptions {
	return SnapshotOptions{Compression: CompressionLZ4}
}

// WriteSnapshot writes s to w.
//
// Layout:
//
//	"CHRN" version:1 compression:1 body
//	body = id:16 portal:lp rows:i32 columns:i32 { name:lp checksum:u64 data:lp }*
//
// where lp is an int32 length prefix and the body is compressed as a whole.
func WriteSnapshot(w io.Writer, s *Snapshot, opts SnapshotOptions) error {
	if opts.Compression == "" {
		opts.Compression = CompressionLZ4
	}
	code, ok := compressionCodes[opts.Compression]
	if !ok {
		return fmt.Errorf("unknown compression %q", opts.Compression)
	}

	header := NewWriter(w)
	header.PutBytes(snapshotMagic[:])
	header.PutByte(snapshotVersion)
	header.PutByte(code)
	if err := header.Err(); err != nil {
		return fmt.Errorf("write snapshot header: %w", err)
	}

	cw, err := compressor(w, opts.Compression)
	if err != nil {
		return err
	}

	body := NewWriter(cw)
	body.PutBytes(s.ID[:])
	body.PutLengthPrefixed([]byte(s.Portal))
	body.PutInt32(int32(s.Rows))
	body.PutInt32(int32(len(s.Columns)))
	for _, c := range s.Columns {
		body.PutLengthPrefixed([]byte(c.Name))
		body.PutInt64(int64(xxhash.Sum64(c.Data)))
		body.PutLengthPrefixed(c.Data)
	}
	if err := body.Err(); err != nil {
		cw.Close()
		return fmt.Errorf("write snapshot body: %w", err)
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot reads a snapshot written by WriteSnapshot and verifies every
// column checksum.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	header := NewReader(r)
	magic := header.Bytes(4)
	version := header.Byte()
	code := header.Byte()
	if err := header.Err(); err != nil {
		return nil, fmt.Errorf("read snapshot header: %w", err)
	}
	if !bytes.Equal(magic, snapshotMagic[:]) {
		return nil, fmt.Errorf("%w: not a snapshot", ErrCorrupt)
	}
	if version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported snapshot version %d", ErrCorrupt, version)
	}

	var compression Compression
	for c, k := range compressionCodes {
		if k == code {
			compression = c
		}
	}
	if compression == "" {
		return nil, fmt.Errorf("%w: unknown compression code %d", ErrCorrupt, code)
	}

	raw, err := decompress(r, compression)
	if err != nil {
		return nil, err
	}

	body := NewReader(bytes.NewReader(raw))
	s := &Snapshot{}
	copy(s.ID[:], body.Bytes(16))
	s.Portal = string(body.LengthPrefixed())
	s.Rows = int(body.Int32())
	n := int(body.Int32())
	if err := body.Err(); err != nil {
		return nil, fmt.Errorf("read snapshot body: %w", err)
	}
	if s.Rows < 0 || n < 0 {
		return nil, fmt.Errorf("%w: negative row or column count", ErrCorrupt)
	}
	for i := 0; i < n; i++ {
		name := string(body.LengthPrefixed())
		sum := uint64(body.Int64())
		data := body.LengthPrefixed()
		if err := body.Err(); err != nil {
			return nil, fmt.Errorf("read column %d: %w", i, err)
		}
		if xxhash.Sum64(data) != sum {
			return nil, fmt.Errorf("%w: checksum mismatch in column %q", ErrCorrupt, name)
		}
		s.Columns = append(s.Columns, Column{Name: name, Data: data})
	}
	return s, nil
}

// Column returns the named column.
func (s *Snapshot) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func compressor(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopCloser{w}, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionSnappy:
		return snappy.NewBufferedWriter(w), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		return enc, nil
	default:
		return nil, fmt.Errorf("unknown compression %q", c)
	}
}

func decompress(r io.Reader, c Compression) ([]byte, error) {
	var src io.Reader
	switch c {
	case CompressionNone:
		src = r
	case CompressionLZ4:
		src = lz4.NewReader(r)
	case CompressionSnappy:
		src = snappy.NewReader(r)
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
		defer dec.Close()
		src = dec
	default:
		return nil, fmt.Errorf("unknown compression %q", c)
	}
	raw, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot (%s): %w", c, err)
	}
	return raw, nil
}
