package codec

import (
	"encoding/binary"
	"strings"

	"github.com/yndnr/picoretain/internal/core/domain"
)

// byteOrder is part of the retained format, independent of the host.
var byteOrder = binary.LittleEndian

// Presence tags for optional blobs.
const (
	absent  byte = 0
	present byte = 1
)

// Writer appends fixed-width values to a buffer that may never grow past
// its capacity. A write that would not fit fails with ErrRegionOverflow and
// leaves the buffer unchanged.
type Writer struct {
	buf   []byte
	limit int
}

// NewWriter creates a writer bounded to capacity bytes.
func NewWriter(capacity int) *Writer {
	if capacity < 0 {
		capacity = 0
	}
	return &Writer{
		buf:   make([]byte, 0, capacity),
		limit: capacity,
	}
}

// Bytes returns the bytes written so far.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written.
func (w *Writer) Len() int { return len(w.buf) }

// Cap returns the writer capacity.
func (w *Writer) Cap() int { return w.limit }

// Remaining returns the free space left.
func (w *Writer) Remaining() int { return w.limit - len(w.buf) }

// Reset discards written bytes, keeping the capacity.
func (w *Writer) Reset() { w.buf = w.buf[:0] }

// Truncate drops everything written after n bytes.
func (w *Writer) Truncate(n int) {
	if n >= 0 && n < len(w.buf) {
		w.buf = w.buf[:n]
	}
}

func (w *Writer) reserve(n int) ([]byte, error) {
	if n > w.Remaining() {
		return nil, domain.ErrRegionOverflow.WithDetailsf(
			"need %d bytes, %d of %d left", n, w.Remaining(), w.limit)
	}
	start := len(w.buf)
	w.buf = w.buf[:start+n]
	return w.buf[start:], nil
}

// PutU8 writes one byte.
func (w *Writer) PutU8(v uint8) error {
	b, err := w.reserve(1)
	if err != nil {
		return err
	}
	b[0] = v
	return nil
}

// PutU16 writes a little-endian uint16.
func (w *Writer) PutU16(v uint16) error {
	b, err := w.reserve(2)
	if err != nil {
		return err
	}
	byteOrder.PutUint16(b, v)
	return nil
}

// PutU32 writes a little-endian uint32.
func (w *Writer) PutU32(v uint32) error {
	b, err := w.reserve(4)
	if err != nil {
		return err
	}
	byteOrder.PutUint32(b, v)
	return nil
}

// PutU64 writes a little-endian uint64.
func (w *Writer) PutU64(v uint64) error {
	b, err := w.reserve(8)
	if err != nil {
		return err
	}
	byteOrder.PutUint64(b, v)
	return nil
}

// PutBool writes 1 for true and 0 for false.
func (w *Writer) PutBool(v bool) error {
	if v {
		return w.PutU8(1)
	}
	return w.PutU8(0)
}

// PutPresence writes the tag of an optional field.
func (w *Writer) PutPresence(ok bool) error {
	if ok {
		return w.PutU8(present)
	}
	return w.PutU8(absent)
}

// PutCString writes s followed by a zero byte.
// A string that already contains a zero byte is rejected before anything is
// written.
func (w *Writer) PutCString(s string) error {
	if strings.IndexByte(s, 0) >= 0 {
		return domain.ErrStringEncoding.WithDetailsf("%q", s)
	}
	b, err := w.reserve(len(s) + 1)
	if err != nil {
		return err
	}
	copy(b, s)
	b[len(s)] = 0
	return nil
}

// PutBlob writes len(p) as a uint64 and then p.
func (w *Writer) PutBlob(p []byte) error {
	if 8+len(p) > w.Remaining() {
		return domain.ErrRegionOverflow.WithDetailsf(
			"blob of %d bytes, %d of %d left", len(p), w.Remaining(), w.limit)
	}
	_ = w.PutU64(uint64(len(p)))
	b, _ := w.reserve(len(p))
	copy(b, p)
	return nil
}

// PutOptional writes a registration id; zero stands for absent.
func (w *Writer) PutOptional(id uint32) error {
	return w.PutU32(id)
}

// PutFixed16 writes a 16-byte identifier verbatim.
func (w *Writer) PutFixed16(v [16]byte) error {
	b, err := w.reserve(16)
	if err != nil {
		return err
	}
	copy(b, v[:])
	return nil
}

// Reader is a cursor over retained bytes. Every read past the end fails with
// ErrTruncatedData and leaves the cursor where it was.
type Reader struct {
	buf []byte
	off int
}

// NewReader creates a reader over p.
func NewReader(p []byte) *Reader {
	return &Reader{buf: p}
}

// Offset returns the number of bytes consumed.
func (r *Reader) Offset() int { return r.off }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, domain.ErrTruncatedData.WithDetailsf(
			"need %d bytes at offset %d, %d left", n, r.off, r.Remaining())
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// U8 reads one byte.
func (r *Reader) U8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// U16 reads a little-endian uint16.
func (r *Reader) U16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return byteOrder.Uint16(b), nil
}

// U32 reads a little-endian uint32.
func (r *Reader) U32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return byteOrder.Uint32(b), nil
}

// U64 reads a little-endian uint64.
func (r *Reader) U64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return byteOrder.Uint64(b), nil
}

// Bool reads a byte that must be 0 or 1.
func (r *Reader) Bool() (bool, error) {
	v, err := r.U8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		r.off--
		return false, domain.ErrCorruptValue.WithDetailsf("bool byte %#x at offset %d", v, r.off)
	}
}

// Presence reads the tag of an optional field.
func (r *Reader) Presence() (bool, error) {
	return r.Bool()
}

// CString reads bytes up to and including the next zero byte.
func (r *Reader) CString() (string, error) {
	rest := r.buf[r.off:]
	for i, c := range rest {
		if c == 0 {
			s := string(rest[:i])
			r.off += i + 1
			return s, nil
		}
	}
	return "", domain.ErrTruncatedData.WithDetailsf("unterminated string at offset %d", r.off)
}

// Blob reads a uint64 length and that many bytes into a fresh slice.
// A length beyond the remaining bytes is rejected before allocation.
func (r *Reader) Blob() ([]byte, error) {
	start := r.off
	n, err := r.U64()
	if err != nil {
		return nil, err
	}
	if n > uint64(r.Remaining()) {
		r.off = start
		return nil, domain.ErrTruncatedData.WithDetailsf(
			"blob of %d bytes at offset %d, %d left", n, start, r.Remaining()-8)
	}
	if n == 0 {
		return nil, nil
	}
	b, _ := r.take(int(n))
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Optional reads a registration id; zero means absent.
func (r *Reader) Optional() (uint32, bool, error) {
	v, err := r.U32()
	if err != nil {
		return 0, false, err
	}
	return v, v != 0, nil
}

// Fixed16 reads a 16-byte identifier.
func (r *Reader) Fixed16() ([16]byte, error) {
	var out [16]byte
	b, err := r.take(16)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}
