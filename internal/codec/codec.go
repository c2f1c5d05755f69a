// Package codec holds the little-endian primitives shared by the index
// binary formats.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrTruncated reports input that ends before a value is complete.
var ErrTruncated = errors.New("truncated data")

// Writer appends little-endian values to a growing buffer.
type Writer struct {
	buf []byte
}

// NewWriter returns a writer with the given capacity hint.
func NewWriter(size int) *Writer { return &Writer{buf: make([]byte, 0, size)} }

// Bytes returns the encoded buffer.
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) Raw(b []byte) { w.buf = append(w.buf, b...) }

func (w *Writer) U8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) U32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }

func (w *Writer) I64(v int64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(v)) }

func (w *Writer) F32(v float32) { w.U32(math.Float32bits(v)) }

func (w *Writer) F64(v float64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(v)) }

// String writes a length-prefixed string.
func (w *Writer) String(s string) {
	w.U32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// Reader consumes little-endian values. The first failure sticks: later
// reads return zero values and Err reports the original problem.
type Reader struct {
	data []byte
	off  int
	err  error
}

// NewReader wraps data.
func NewReader(data []byte) *Reader { return &Reader{data: data} }

// Err returns the first decoding error.
func (r *Reader) Err() error { return r.err }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

func (r *Reader) take(n int, what string) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = fmt.Errorf("%s at offset %d: %w", what, r.off, ErrTruncated)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

// Raw returns the next n bytes without copying.
func (r *Reader) Raw(n int) []byte { return r.take(n, "raw") }

func (r *Reader) U8() uint8 {
	if b := r.take(1, "u8"); b != nil {
		return b[0]
	}
	return 0
}

func (r *Reader) U32() uint32 {
	if b := r.take(4, "u32"); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *Reader) I64() int64 {
	if b := r.take(8, "i64"); b != nil {
		return int64(binary.LittleEndian.Uint64(b))
	}
	return 0
}

func (r *Reader) F32() float32 { return math.Float32frombits(r.U32()) }

func (r *Reader) F64() float64 {
	if b := r.take(8, "f64"); b != nil {
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	return 0
}

// String reads a length-prefixed string.
func (r *Reader) String() string {
	n := int(r.U32())
	if b := r.take(n, "string"); b != nil {
		return string(b)
	}
	return ""
}

// Count reads a u32 element count and rejects counts that could not fit in
// the remaining input given the smallest encoded element size.
func (r *Reader) Count(minElem int, what string) int {
	n := int(r.U32())
	if r.err != nil {
		return 0
	}
	if minElem > 0 && n > r.Remaining()/minElem {
		r.err = fmt.Errorf("%s count %d exceeds input: %w", what, n, ErrTruncated)
		return 0
	}
	return n
}
