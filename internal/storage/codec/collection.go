package codec

import (
	"fmt"

	"github.com/yndnr/picoretain/internal/core/domain"
)

// DecodeOptions tunes collection decoding.
type DecodeOptions struct {
	// DropUnresolved skips entities whose argument codec is not registered
	// instead of failing the whole collection.
	DropUnresolved bool

	// OnDrop is called for every skipped entity.
	OnDrop func(index int, err error)
}

// EncodeCollection writes the item count followed by every item in order.
// If any item fails, everything written by this call is rolled back.
func EncodeCollection[T any](w *Writer, items []T, encode func(*Writer, T) error) error {
	mark := w.Len()
	if err := w.PutU64(uint64(len(items))); err != nil {
		return err
	}
	for i, item := range items {
		if err := encode(w, item); err != nil {
			w.Truncate(mark)
			return fmt.Errorf("entity %d of %d: %w", i, len(items), err)
		}
	}
	return nil
}

// DecodeCollection reads a count and that many items.
//
// A count whose minimal encoding cannot fit in the remaining bytes is
// rejected up front with ErrCorruptCount; running out of bytes afterwards is
// ErrTruncatedData.
func DecodeCollection[T any](r *Reader, minSize int, decode func(*Reader) (T, error), opts DecodeOptions) ([]T, error) {
	n, err := r.U64()
	if err != nil {
		return nil, err
	}
	if minSize < 1 {
		minSize = 1
	}
	if n > uint64(r.Remaining()/minSize) {
		return nil, domain.ErrCorruptCount.WithDetailsf(
			"count %d needs at least %d bytes, %d left", n, n*uint64(minSize), r.Remaining())
	}

	if n == 0 {
		return nil, nil
	}
	out := make([]T, 0, n)
	for i := uint64(0); i < n; i++ {
		item, err := decode(r)
		if err != nil {
			if opts.DropUnresolved && IsSkippable(err) {
				if opts.OnDrop != nil {
					opts.OnDrop(int(i), err)
				}
				continue
			}
			return nil, fmt.Errorf("entity %d of %d: %w", i, n, err)
		}
		out = append(out, item)
	}
	return out, nil
}
