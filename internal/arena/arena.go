// Package arena implements C1: a single RWX memory page that holds all
// emitted machine code. Bytes accumulate in an ordinary Go buffer while the
// state is Writable; Finalize copies the buffer into a real mmap'd
// executable mapping and flips the state to Executable. Once Executable, the
// page is never written to again.
package arena

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// State is the Writable -> Executable transition design-notes §9 calls for,
// replacing the source's unchecked raw RWX pointer with a type that refuses
// to patch after the page has gone live.
type State int

const (
	Writable State = iota
	Executable
)

// ErrAlreadyExecutable is returned by Reserve/Write once Finalize has run.
var ErrAlreadyExecutable = fmt.Errorf("arena: page already finalized to executable")

// pageSize is read from the OS at package initialization; mmap regions must
// be page-aligned.
var pageSize = unix.Getpagesize()

// Arena owns the growing code buffer and, after Finalize, the live mapping.
// All mutation is guarded by mu; reads of a finalized arena's BasePtr/Size
// need no lock since the mapping is immutable from that point on.
type Arena struct {
	mu      sync.Mutex
	state   State
	buf     []byte
	mem     []byte // the live mmap'd region, set at Map or Finalize
	codeLen int    // logical code size within mem, set at Map
	log     zerolog.Logger
}

func New(log zerolog.Logger) *Arena {
	return &Arena{log: log.With().Str("component", "arena").Logger()}
}

// Reserve appends n zero bytes to the buffer and returns the offset at which
// they start; callers (the code generator) then overwrite those bytes in
// place as operands are resolved. Reserve is the only allocation primitive:
// there is no free, matching the append-only lifetime of emitted code.
func (a *Arena) Reserve(n int) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Writable {
		return 0, ErrAlreadyExecutable
	}
	off := len(a.buf)
	a.buf = append(a.buf, make([]byte, n)...)
	return off, nil
}

// Map allocates the page-aligned read-write mapping that will hold n bytes
// of code and returns its base address immediately, while the state is
// still Writable. This is what lets the compiler's link phase patch call
// relocations against the final load address *before* the bytes are copied
// in; Write targets the mapping from this point on, and Finalize only
// flips protection.
func (a *Arena) Map(n int) (uintptr, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Writable {
		return 0, ErrAlreadyExecutable
	}
	if a.mem != nil {
		return uintptr(unsafePointer(a.mem)), nil
	}
	if n <= 0 {
		return 0, fmt.Errorf("arena: map called with no emitted code")
	}
	mapLen := ((n + pageSize - 1) / pageSize) * pageSize
	mem, err := unix.Mmap(-1, 0, mapLen, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, fmt.Errorf("arena: mmap %d bytes: %w", mapLen, err)
	}
	a.mem = mem
	a.codeLen = n
	return uintptr(unsafePointer(mem)), nil
}

// Write overwrites n bytes starting at off; used both for the initial emit
// and for patching relocations discovered later in the same writable phase.
// Before Map, writes go to the staging buffer; after, directly into the
// mapping.
func (a *Arena) Write(off int, b []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Writable {
		return ErrAlreadyExecutable
	}
	if a.mem != nil {
		if off < 0 || off+len(b) > a.codeLen {
			return fmt.Errorf("arena: write [%d,%d) out of range of %d-byte mapping", off, off+len(b), a.codeLen)
		}
		copy(a.mem[off:], b)
		return nil
	}
	if off < 0 || off+len(b) > len(a.buf) {
		return fmt.Errorf("arena: write [%d,%d) out of range of %d-byte buffer", off, off+len(b), len(a.buf))
	}
	copy(a.buf[off:], b)
	return nil
}

// Bytes returns a copy of the staging buffer (the bytes placed by Reserve and
// by Write before Map); it does not reflect writes made into the mapping.
func (a *Arena) Bytes() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]byte, len(a.buf))
	copy(out, a.buf)
	return out
}

func (a *Arena) Size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buf)
}

// Finalize makes the emitted code executable and flips the state. If Map
// was never called, the staging buffer is mapped and copied first. After
// this call Reserve/Write fail; BasePtr becomes valid.
func (a *Arena) Finalize() (base uintptr, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == Executable {
		return uintptr(unsafePointer(a.mem)), nil
	}
	if a.mem == nil {
		n := len(a.buf)
		if n == 0 {
			return 0, fmt.Errorf("arena: finalize called with no emitted code")
		}
		mapLen := ((n + pageSize - 1) / pageSize) * pageSize
		mem, mmapErr := unix.Mmap(-1, 0, mapLen, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
		if mmapErr != nil {
			return 0, fmt.Errorf("arena: mmap %d bytes: %w", mapLen, mmapErr)
		}
		copy(mem, a.buf)
		a.mem = mem
		a.codeLen = n
	}
	if err := unix.Mprotect(a.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		_ = unix.Munmap(a.mem)
		a.mem = nil
		return 0, fmt.Errorf("arena: mprotect rx: %w", err)
	}
	a.state = Executable
	a.log.Info().Int("bytes", a.codeLen).Int("mapped", len(a.mem)).Msg("arena finalized to executable")
	return uintptr(unsafePointer(a.mem)), nil
}

// BasePtr returns the base address of the executable mapping. Valid only
// after Finalize.
func (a *Arena) BasePtr() (uintptr, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Executable {
		return 0, fmt.Errorf("arena: not finalized")
	}
	return uintptr(unsafePointer(a.mem)), nil
}

// Release munmaps the executable page. cmd/gotsc calls it as its
// __runtime_cleanup step, once the main-thread controller has observed
// quiescence.
func (a *Arena) Release() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mem == nil {
		return nil
	}
	err := unix.Munmap(a.mem)
	a.mem = nil
	return err
}
