package retained

import (
	"context"
	"testing"
)

func TestHeapMemory(t *testing.T) {
	m := NewHeapMemory(16)
	if len(m.Bytes()) != 16 {
		t.Fatalf("len(Bytes()) = %d, want 16", len(m.Bytes()))
	}
	m.Bytes()[3] = 7
	if err := m.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	if m.Bytes()[3] != 7 {
		t.Fatal("write through Bytes() was lost")
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestHeapFromImage(t *testing.T) {
	image := []byte{1, 2, 3}
	m, err := HeapFromImage(image, 8)
	if err != nil {
		t.Fatal(err)
	}
	image[0] = 9
	got := m.Bytes()
	if len(got) != 8 || got[0] != 1 || got[2] != 3 || got[7] != 0 {
		t.Fatalf("Bytes() = %v", got)
	}

	if _, err := HeapFromImage(make([]byte, 9), 8); err == nil {
		t.Fatal("oversized image accepted")
	}
}
