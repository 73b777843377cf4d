package retained

import (
	"context"
	"fmt"
)

// Memory is a fixed-size byte area that keeps its contents across power
// cycles. Bytes returns the live area; writes to it take effect in place and
// become durable after Sync.
type Memory interface {
	Bytes() []byte
	Sync(ctx context.Context) error
	Close() error
}

// HeapMemory is retention RAM modelled as a plain byte slice.
type HeapMemory struct {
	buf []byte
}

// NewHeapMemory allocates a zeroed area of size bytes.
func NewHeapMemory(size int) *HeapMemory {
	return &HeapMemory{buf: make([]byte, size)}
}

// HeapFromImage wraps a copy of image, typically read from a dump file.
// The area is padded with zeros up to size.
func HeapFromImage(image []byte, size int) (*HeapMemory, error) {
	if len(image) > size {
		return nil, fmt.Errorf("retained: image of %d bytes exceeds area of %d", len(image), size)
	}
	m := NewHeapMemory(size)
	copy(m.buf, image)
	return m, nil
}

// Bytes returns the area.
func (m *HeapMemory) Bytes() []byte { return m.buf }

// Sync is a no-op; retention RAM needs no flush.
func (m *HeapMemory) Sync(context.Context) error { return nil }

// Close is a no-op.
func (m *HeapMemory) Close() error { return nil }
