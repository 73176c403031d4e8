package palloc

import "fmt"
import "sync"
import "sync/atomic"
import "unsafe"

import "github.com/bnclabs/golog"
import humanize "github.com/dustin/go-humanize"

// Pool manages a region sliced up into blockcount blocks of blocksize
// bytes each. Free blocks are threaded on an intrusive singly linked
// list, the first pointer-width bytes of a free block hold the address
// of the next free block. All operations except Reset and Release are
// serialized by the pool's mutex.
type Pool struct {
	freecount int64 // updated under mutex, read atomically

	capacity   int64
	blocksize  int64
	blockcount int64
	base       unsafe.Pointer
	mem        []byte
	freelist   uintptr // address of the first free block, 0 when empty
	mutex      sync.Mutex
	avbatch    averageInt64 // batch transfer sizes
	mapper     Mapper
	logprefix  string
}

// NewPool map a region for blockcount blocks of blocksize bytes.
// Blocksize is rounded up to the next power of 2 and to at least the
// width of a pointer; the region is rounded up to the page boundary.
func NewPool(blocksize, blockcount int64) (*Pool, error) {
	if blockcount <= 0 {
		panicerr("pool blockcount %v should be positive", blockcount)
	} else if blockcount > Maxpoolblocks {
		panicerr("pool blockcount %v exceeds %v", blockcount, Maxpoolblocks)
	}
	if ptrwidth := int64(unsafe.Sizeof(uintptr(0))); blocksize < ptrwidth {
		blocksize = ptrwidth
	}
	pool := &Pool{
		blocksize:  nextpow2(blocksize),
		blockcount: blockcount,
		mapper:     defaultmapper,
	}
	pool.capacity = roundpage(pool.blocksize * pool.blockcount)
	mem, err := pool.mapper.Map(pool.capacity)
	if err != nil {
		return nil, fmt.Errorf("pool map %v bytes: %v", pool.capacity, err)
	}
	pool.mem, pool.base = mem, unsafe.Pointer(&mem[0])
	pool.initfreelist()
	pool.freecount = blockcount
	pool.logprefix = fmt.Sprintf("POOL [%p]", pool)
	log.Debugf("%v mapped %v blocks:%vx%v\n",
		pool.logprefix, humanize.Bytes(uint64(pool.capacity)),
		pool.blockcount, pool.blocksize)
	return pool, nil
}

// link every block onto the free list, block at offset 0 at the head.
func (pool *Pool) initfreelist() {
	pool.freelist = 0
	for i := pool.blockcount; i > 0; i-- {
		block := uintptr(pool.base) + uintptr((i-1)*pool.blocksize)
		*(*uintptr)(unsafe.Pointer(block)) = pool.freelist
		pool.freelist = block
	}
}

//---- operations

// Alloc a block from the pool, nil when the free list is exhausted.
func (pool *Pool) Alloc() unsafe.Pointer {
	pool.mutex.Lock()
	if pool.freelist == 0 {
		pool.mutex.Unlock()
		return nil
	}
	block := pool.freelist
	pool.freelist = *(*uintptr)(unsafe.Pointer(block))
	atomic.AddInt64(&pool.freecount, -1)
	pool.mutex.Unlock()
	initblock(block, pool.blocksize)
	return unsafe.Pointer(block)
}

// Calloc same as Alloc, and zero out the block before returning it.
// The zeroing happens outside the mutex, the block is exclusively
// owned by the caller at that point.
func (pool *Pool) Calloc() unsafe.Pointer {
	ptr := pool.Alloc()
	if ptr != nil {
		zeroblock(uintptr(ptr), pool.blocksize)
	}
	return ptr
}

// Allocbatch pop up to len(out) blocks into out under a single mutex
// acquisition, return the number popped.
func (pool *Pool) Allocbatch(out []unsafe.Pointer) int {
	if len(out) == 0 {
		return 0
	}
	pool.mutex.Lock()
	n := 0
	for ; n < len(out); n++ {
		if pool.freelist == 0 {
			break
		}
		block := pool.freelist
		pool.freelist = *(*uintptr)(unsafe.Pointer(block))
		out[n] = unsafe.Pointer(block)
	}
	atomic.AddInt64(&pool.freecount, int64(-n))
	pool.avbatch.add(int64(n))
	pool.mutex.Unlock()
	for i := 0; i < n; i++ {
		initblock(uintptr(out[i]), pool.blocksize)
	}
	return n
}

// Free push the block back onto the free list. Freeing nil is a no-op.
// Freeing a pointer the pool does not own corrupts the free list and is
// caught by an ownership assertion in debug builds only. Freeing a block
// twice also corrupts the free list and is not detected in any build.
func (pool *Pool) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	assertowns(pool, ptr)
	pool.mutex.Lock()
	*(*uintptr)(ptr) = pool.freelist
	pool.freelist = uintptr(ptr)
	atomic.AddInt64(&pool.freecount, 1)
	pool.mutex.Unlock()
}

// Freebatch push every owned, non-nil pointer in ptrs back onto the
// free list under a single mutex acquisition.
func (pool *Pool) Freebatch(ptrs []unsafe.Pointer) {
	pool.mutex.Lock()
	n := int64(0)
	for _, ptr := range ptrs {
		if ptr == nil || pool.Owns(ptr) == false {
			continue
		}
		*(*uintptr)(ptr) = pool.freelist
		pool.freelist = uintptr(ptr)
		n++
	}
	atomic.AddInt64(&pool.freecount, n)
	pool.avbatch.add(n)
	pool.mutex.Unlock()
}

// Reset rebuild the free list to its initial state. Blocks handed out
// before the reset become invalid, callers should make sure nobody
// holds them and that no operation runs concurrently.
func (pool *Pool) Reset() {
	pool.mutex.Lock()
	pool.initfreelist()
	atomic.StoreInt64(&pool.freecount, pool.blockcount)
	pool.mutex.Unlock()
}

// Release the pool's region back to the OS. Returns the unmap error,
// if any, in which case the pool should not be reused.
func (pool *Pool) Release() error {
	if pool.base == nil {
		return nil
	}
	mem := pool.mem
	pool.base, pool.mem, pool.freelist = nil, nil, 0
	atomic.StoreInt64(&pool.freecount, 0)
	if err := pool.mapper.Unmap(mem); err != nil {
		log.Errorf("%v unmap: %v\n", pool.logprefix, err)
		return err
	}
	log.Debugf("%v released\n", pool.logprefix)
	return nil
}

// Owns true iff ptr points to the start of one of this pool's blocks.
func (pool *Pool) Owns(ptr unsafe.Pointer) bool {
	if ptr == nil || pool.base == nil {
		return false
	}
	p, base := uintptr(ptr), uintptr(pool.base)
	if p < base || p >= base+uintptr(pool.blocksize*pool.blockcount) {
		return false
	}
	return (p-base)%uintptr(pool.blocksize) == 0
}

//---- statistics

// Freespace number of free bytes in the pool. Under concurrent churn
// the value corresponds to some serialization point, it never exceeds
// blocksize * blockcount.
func (pool *Pool) Freespace() int64 {
	return atomic.LoadInt64(&pool.freecount) * pool.blocksize
}

// Capacity number of mapped bytes, a page multiple.
func (pool *Pool) Capacity() int64 {
	return pool.capacity
}

// Blocksize sanitized size of each block.
func (pool *Pool) Blocksize() int64 {
	return pool.blocksize
}

// Blockcount number of blocks in the pool.
func (pool *Pool) Blockcount() int64 {
	return pool.blockcount
}

// Stats for this pool, including min/mean/max of batch transfer sizes.
func (pool *Pool) Stats() map[string]interface{} {
	pool.mutex.Lock()
	batch := pool.avbatch.stats()
	freecount := pool.freecount
	pool.mutex.Unlock()
	return map[string]interface{}{
		"capacity":   pool.capacity,
		"blocksize":  pool.blocksize,
		"blockcount": pool.blockcount,
		"freecount":  freecount,
		"batch":      batch,
	}
}

// Validate walk the free list and cross check every invariant the
// pool maintains: node alignment, node range, list length against
// freecount. Meant for tests and debugging, the walk holds the mutex.
func (pool *Pool) Validate() {
	pool.mutex.Lock()
	defer pool.mutex.Unlock()

	count, node := int64(0), pool.freelist
	for node != 0 {
		if pool.Owns(unsafe.Pointer(node)) == false {
			panicerr("%v free list node %x out of range", pool.logprefix, node)
		}
		count++
		if count > pool.blockcount {
			panicerr("%v free list longer than blockcount", pool.logprefix)
		}
		node = *(*uintptr)(unsafe.Pointer(node))
	}
	if count != pool.freecount {
		panicerr("%v free list length %v, freecount %v",
			pool.logprefix, count, pool.freecount)
	}
}
