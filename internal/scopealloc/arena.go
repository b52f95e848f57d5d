// Package scopealloc implements the per-frame bump arena backing the Frame
// Graph's pass closures: allocation-free per-frame storage with LIFO
// destructor teardown and an always-on single-owner check.
//
// Go gives every object a GC-managed lifetime, so there is no literal
// placement-new here; what survives is the part that actually matters
// operationally: a monotonic bump offset into one pre-sized, cache-line
// aligned backing buffer, handed out as typed pointers via unsafe.Pointer,
// with capacity enforced explicitly instead of left to the allocator.
// Reset doesn't free the buffer, it rewinds the offset and runs any
// registered destructors in reverse order.
package scopealloc

import (
	"sync"
	"unsafe"

	"github.com/intrinsicD/IntrinsicEngine-sub007/internal/ferrors"
)

const cacheLineSize = 64

// Destroyer is implemented by arena-allocated types that need teardown
// logic run at Reset. Types without state to release need not implement it.
type Destroyer interface {
	Destroy()
}

// Arena is a single-owner, fixed-capacity bump allocator.
type Arena struct {
	mu      sync.Mutex // guards offset/destructors against concurrent misuse reports
	raw     []byte
	base    uintptr // first cache-line aligned byte within raw
	cap     uintptr
	offset  uintptr
	owner   uint64
	destroy []func()
}

// NewArena creates an Arena with the requested capacity in bytes. The
// backing buffer is over-allocated by one cache line so a cache-line
// aligned base can always be carved out of it.
func NewArena(capacity int) *Arena {
	if capacity <= 0 {
		capacity = 1
	}
	raw := make([]byte, capacity+cacheLineSize)
	base := alignUp(uintptr(unsafe.Pointer(&raw[0])), cacheLineSize) - uintptr(unsafe.Pointer(&raw[0]))
	return &Arena{
		raw:   raw,
		base:  base,
		cap:   uintptr(capacity),
		owner: goroutineID(),
	}
}

func alignUp(v, align uintptr) uintptr {
	return (v + align - 1) &^ (align - 1)
}

// New allocates and value-initializes a T inside the arena, returning a
// stable pointer to it. The pointer remains valid until the next Reset. If
// *T implements Destroyer, its Destroy is queued to run (LIFO) at Reset.
func New[T any](a *Arena, value T) (*T, error) {
	if gid := goroutineID(); gid != a.owner {
		return nil, ferrors.New(ferrors.ThreadViolation, "scopealloc.New")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var zero T
	size := unsafe.Sizeof(zero)
	align := uintptr(unsafe.Alignof(zero))

	start := alignUp(a.base+a.offset, align) - a.base
	if start+size > a.cap {
		return nil, ferrors.New(ferrors.OutOfMemory, "scopealloc.New")
	}

	ptr := unsafe.Pointer(&a.raw[a.base+start])
	typed := (*T)(ptr)
	*typed = value
	a.offset = start + size

	if d, ok := any(typed).(Destroyer); ok {
		a.destroy = append(a.destroy, d.Destroy)
	}

	return typed, nil
}

// Reset runs queued destructors in LIFO order and rewinds the bump
// pointer. The backing buffer is retained across resets.
func (a *Arena) Reset() error {
	if gid := goroutineID(); gid != a.owner {
		return ferrors.New(ferrors.ThreadViolation, "scopealloc.Reset")
	}

	a.mu.Lock()
	destroy := a.destroy
	a.destroy = a.destroy[:0]
	a.offset = 0
	a.mu.Unlock()

	for i := len(destroy) - 1; i >= 0; i-- {
		destroy[i]()
	}
	return nil
}

// Remaining reports the number of bytes still available before the next
// allocation would fail with OutOfMemory.
func (a *Arena) Remaining() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int(a.cap - a.offset)
}

// Capacity reports the arena's total usable capacity in bytes.
func (a *Arena) Capacity() int {
	return int(a.cap)
}
