package arena

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestReserveReturnsSequentialOffsets(t *testing.T) {
	a := New(zerolog.Nop())
	off1, err := a.Reserve(4)
	if err != nil {
		t.Fatal(err)
	}
	off2, err := a.Reserve(8)
	if err != nil {
		t.Fatal(err)
	}
	if off1 != 0 || off2 != 4 {
		t.Errorf("offsets = (%d, %d), want (0, 4)", off1, off2)
	}
	if a.Size() != 12 {
		t.Errorf("Size() = %d, want 12", a.Size())
	}
}

func TestWriteOutOfRange(t *testing.T) {
	a := New(zerolog.Nop())
	if _, err := a.Reserve(4); err != nil {
		t.Fatal(err)
	}
	if err := a.Write(2, []byte{1, 2, 3}); err == nil {
		t.Error("writing past the reserved buffer should fail")
	}
}

func TestFinalizeFlipsStateAndBlocksFurtherWrites(t *testing.T) {
	a := New(zerolog.Nop())
	off, err := a.Reserve(16)
	if err != nil {
		t.Fatal(err)
	}
	// A `ret` instruction (0xC3) so the mapped page is at least valid to
	// read back, even though this test never calls into it.
	if err := a.Write(off, []byte{0xC3}); err != nil {
		t.Fatal(err)
	}
	base, err := a.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	if base == 0 {
		t.Error("Finalize returned a zero base address")
	}
	defer a.Release()

	if _, err := a.Reserve(4); err != ErrAlreadyExecutable {
		t.Errorf("Reserve after Finalize = %v, want ErrAlreadyExecutable", err)
	}
	if err := a.Write(0, []byte{0x90}); err != ErrAlreadyExecutable {
		t.Errorf("Write after Finalize = %v, want ErrAlreadyExecutable", err)
	}

	basePtr, err := a.BasePtr()
	if err != nil || basePtr != base {
		t.Errorf("BasePtr() = (%#x, %v), want (%#x, nil)", basePtr, err, base)
	}
}

// The compiler's link phase maps first so it can patch rel32 call sites
// against the final load address, writes the linked bytes, then finalizes.
func TestMapThenWriteThenFinalize(t *testing.T) {
	a := New(zerolog.Nop())
	base, err := a.Map(16)
	if err != nil {
		t.Fatal(err)
	}
	if base == 0 {
		t.Fatal("Map returned a zero base address")
	}
	if err := a.Write(0, []byte{0xC3}); err != nil {
		t.Fatal(err)
	}
	fin, err := a.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	defer a.Release()
	if fin != base {
		t.Errorf("Finalize base = %#x, want the Map base %#x", fin, base)
	}
	if err := a.Write(0, []byte{0x90}); err != ErrAlreadyExecutable {
		t.Errorf("Write after Finalize = %v, want ErrAlreadyExecutable", err)
	}
}

func TestMapWriteOutOfRange(t *testing.T) {
	a := New(zerolog.Nop())
	if _, err := a.Map(8); err != nil {
		t.Fatal(err)
	}
	defer a.Release()
	if err := a.Write(4, []byte{1, 2, 3, 4, 5}); err == nil {
		t.Error("writing past the mapped code length should fail")
	}
}

func TestFinalizeEmptyBufferFails(t *testing.T) {
	a := New(zerolog.Nop())
	if _, err := a.Finalize(); err == nil {
		t.Error("finalizing an empty arena should fail")
	}
}

func TestBasePtrBeforeFinalizeFails(t *testing.T) {
	a := New(zerolog.Nop())
	if _, err := a.BasePtr(); err == nil {
		t.Error("BasePtr before Finalize should fail")
	}
}
