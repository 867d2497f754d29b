// Package columnar implements the binary column layout used for bulk
// snapshots of attribute values.
//
// A column is a null section followed by the values of the non-null rows.
// Fixed-width values are written one byte-plane at a time: byte 0 of every
// row, then byte 1 of every row, and so on, least significant byte first.
//
// Null section:
//
//	0x00                      no nulls
//	0x01 <(n+7)/8 bytes>      bitmap, bit i set when row i is null (LSB first)
package columnar

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"
)

// Null section markers.
const (
	noNulls  byte = 0
	hasNulls byte = 1
)

// ErrCorrupt is returned when encoded data is structurally invalid.
var ErrCorrupt = errors.New("columnar: corrupt data")

// Bits is a fixed-size bit set backed by bytes, bit i at byte i>>3, position i&7.
type Bits []byte

// NewBits returns a cleared bit set able to hold n bits.
func NewBits(n int) Bits {
	return make(Bits, (n+7)/8)
}

// Get reports whether bit i is set. A nil set has no bits set.
func (b Bits) Get(i int) bool {
	if b == nil {
		return false
	}
	return b[i>>3]&(1<<(uint(i)&7)) != 0
}

// Set sets bit i.
func (b Bits) Set(i int) {
	b[i>>3] |= 1 << (uint(i) & 7)
}

// Count returns the number of set bits among the first n.
func (b Bits) Count(n int) int {
	c := 0
	for i := 0; i < n; i++ {
		if b.Get(i) {
			c++
		}
	}
	return c
}

// Writer is a sticky-error binary writer. After the first failure every call
// is a no-op and Err reports the failure.
type Writer struct {
	w   io.Writer
	err error
	buf [8]byte
}

// NewWriter returns a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first write error.
func (w *Writer) Err() error { return w.err }

func (w *Writer) write(p []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(p)
}

// PutByte writes one byte.
func (w *Writer) PutByte(b byte) {
	w.buf[0] = b
	w.write(w.buf[:1])
}

// PutBytes writes p verbatim.
func (w *Writer) PutBytes(p []byte) {
	w.write(p)
}

// PutInt32 writes v little-endian.
func (w *Writer) PutInt32(v int32) {
	binary.LittleEndian.PutUint32(w.buf[:4], uint32(v))
	w.write(w.buf[:4])
}

// PutInt64 writes v little-endian.
func (w *Writer) PutInt64(v int64) {
	binary.LittleEndian.PutUint64(w.buf[:8], uint64(v))
	w.write(w.buf[:8])
}

// PutLengthPrefixed writes len(p) as an int32 followed by p.
func (w *Writer) PutLengthPrefixed(p []byte) {
	w.PutInt32(int32(len(p)))
	w.write(p)
}

// EncodeNulls writes the null section for n rows. nulls may be nil when no
// row is null.
func (w *Writer) EncodeNulls(nulls Bits, n int) {
	if nulls == nil || nulls.Count(n) == 0 {
		w.PutByte(noNulls)
		return
	}
	w.PutByte(hasNulls)
	w.write(nulls[:(n+7)/8])
}

// PutPlanes writes values as width byte-planes, least significant plane first.
func (w *Writer) PutPlanes(values []uint64, width int) {
	if len(values) == 0 {
		return
	}
	plane := make([]byte, len(values))
	for p := 0; p < width; p++ {
		shift := uint(p * 8)
		for i, v := range values {
			plane[i] = byte(v >> shift)
		}
		w.write(plane)
	}
}

// Reader is the sticky-error counterpart of Writer.
type Reader struct {
	r   io.Reader
	err error
	buf [8]byte
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Err returns the first read error. A short read is reported as ErrCorrupt.
func (r *Reader) Err() error { return r.err }

func (r *Reader) read(p []byte) bool {
	if r.err != nil {
		return false
	}
	if _, err := io.ReadFull(r.r, p); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			r.err = fmt.Errorf("%w: unexpected end of data", ErrCorrupt)
		} else {
			r.err = err
		}
		return false
	}
	return true
}

// Byte reads one byte.
func (r *Reader) Byte() byte {
	if !r.read(r.buf[:1]) {
		return 0
	}
	return r.buf[0]
}

// readChunk caps how far Bytes allocates ahead of the data actually read.
const readChunk = 64 << 10

// Bytes reads exactly n bytes. The buffer grows as data arrives, so a corrupt
// length fails at the end of input without allocating n bytes.
func (r *Reader) Bytes(n int) []byte {
	if n < 0 {
		r.fail("negative length %d", n)
		return nil
	}
	if r.err != nil {
		return nil
	}
	p := make([]byte, 0, min(n, readChunk))
	for len(p) < n {
		k := min(n-len(p), readChunk)
		p = slices.Grow(p, k)
		if !r.read(p[len(p) : len(p)+k]) {
			return nil
		}
		p = p[:len(p)+k]
	}
	return p
}

// Int32 reads a little-endian int32.
func (r *Reader) Int32() int32 {
	if !r.read(r.buf[:4]) {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(r.buf[:4]))
}

// Int64 reads a little-endian int64.
func (r *Reader) Int64() int64 {
	if !r.read(r.buf[:8]) {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(r.buf[:8]))
}

// LengthPrefixed reads an int32 length followed by that many bytes.
func (r *Reader) LengthPrefixed() []byte {
	n := r.Int32()
	if r.err != nil {
		return nil
	}
	return r.Bytes(int(n))
}

// DecodeNulls reads the null section for n rows. It returns nil when no row
// is null.
func (r *Reader) DecodeNulls(n int) Bits {
	switch r.Byte() {
	case noNulls:
		return nil
	case hasNulls:
		b := r.Bytes((n + 7) / 8)
		if b == nil {
			return nil
		}
		return Bits(b)
	default:
		r.fail("bad null marker")
		return nil
	}
}

// Planes reads count values written by PutPlanes with the same width.
func (r *Reader) Planes(count, width int) []uint64 {
	values := make([]uint64, count)
	if count == 0 {
		return values
	}
	plane := make([]byte, count)
	for p := 0; p < width; p++ {
		if !r.read(plane) {
			return nil
		}
		shift := uint(p * 8)
		for i, b := range plane {
			values[i] |= uint64(b) << shift
		}
	}
	return values
}

// Fail records a decoding error unless one is already recorded.
func (r *Reader) Fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) fail(format string, args ...any) {
	r.Fail(fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...)))
}
