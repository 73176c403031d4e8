package palloc

import "fmt"
import "sync/atomic"
import "unsafe"

import "github.com/bnclabs/golog"
import humanize "github.com/dustin/go-humanize"

// Arena is a single region of memory bumped forward by an atomic
// offset. Alloc and Calloc are safe for any number of concurrent
// goroutines; Reset, Clear and Release need external quiescence.
type Arena struct {
	used int64 // atomic, offset of the next free byte

	base      unsafe.Pointer
	capacity  int64
	mem       []byte
	mapper    Mapper
	logprefix string
}

// NewArena map a region of capacity bytes, rounded up to the page
// boundary, and return an arena over it. Capacity cannot exceed
// Maxarenasize.
func NewArena(capacity int64) (*Arena, error) {
	if capacity <= 0 {
		panicerr("arena capacity %v should be positive", capacity)
	} else if capacity > Maxarenasize {
		panicerr("arena capacity %v exceeds %v", capacity, Maxarenasize)
	}
	arena := &Arena{capacity: roundpage(capacity), mapper: defaultmapper}
	mem, err := arena.mapper.Map(arena.capacity)
	if err != nil {
		return nil, fmt.Errorf("arena map %v bytes: %v", arena.capacity, err)
	}
	arena.mem, arena.base = mem, unsafe.Pointer(&mem[0])
	arena.logprefix = fmt.Sprintf("ARENA [%p]", arena)
	log.Debugf("%v mapped %v\n",
		arena.logprefix, humanize.Bytes(uint64(arena.capacity)))
	return arena, nil
}

//---- operations

// Alloc a block of n bytes from the arena, nil if n is not positive,
// the arena is cleared, or fewer than n bytes remain. No alignment
// padding is added, callers should request sizes that preserve the
// alignment they need.
func (arena *Arena) Alloc(n int64) unsafe.Pointer {
	if n <= 0 || arena.base == nil {
		return nil
	}
	for {
		used := atomic.LoadInt64(&arena.used)
		if n > arena.capacity-used {
			return nil
		}
		if atomic.CompareAndSwapInt64(&arena.used, used, used+n) {
			ptr := uintptr(arena.base) + uintptr(used)
			initblock(ptr, n)
			return unsafe.Pointer(ptr)
		}
	}
}

// Calloc same as Alloc, and zero out the block before returning it.
func (arena *Arena) Calloc(n int64) unsafe.Pointer {
	ptr := arena.Alloc(n)
	if ptr != nil {
		zeroblock(uintptr(ptr), n)
	}
	return ptr
}

// Reset forget all outstanding allocations and start bumping from the
// base again. Callers should make sure no goroutine is allocating
// concurrently and that previously returned pointers are dropped.
func (arena *Arena) Reset() {
	atomic.StoreInt64(&arena.used, 0)
}

// Clear unmap the region. The arena remains alive but every Alloc
// returns nil until it is garbage collected. Returns the unmap error,
// if any, in which case the arena should not be reused.
func (arena *Arena) Clear() error {
	if arena.base == nil {
		return nil
	}
	mem := arena.mem
	arena.base, arena.mem, arena.capacity = nil, nil, 0
	atomic.StoreInt64(&arena.used, 0)
	if err := arena.mapper.Unmap(mem); err != nil {
		log.Errorf("%v unmap: %v\n", arena.logprefix, err)
		return err
	}
	log.Debugf("%v cleared\n", arena.logprefix)
	return nil
}

// Release the arena and its region, same as Clear.
func (arena *Arena) Release() error {
	return arena.Clear()
}

//---- statistics

// Used number of bytes bumped so far. Under concurrent allocation the
// value can be stale, but it never decreases between two resets.
func (arena *Arena) Used() int64 {
	return atomic.LoadInt64(&arena.used)
}

// Capacity usable bytes in the region, a page multiple.
func (arena *Arena) Capacity() int64 {
	return arena.capacity
}

// Stats for this arena.
func (arena *Arena) Stats() map[string]interface{} {
	return map[string]interface{}{
		"used":     arena.Used(),
		"capacity": arena.capacity,
	}
}
