package palloc

import "fmt"
import "math"
import "sync/atomic"
import "unsafe"

import "github.com/bnclabs/golog"
import s "github.com/bnclabs/gosettings"
import humanize "github.com/dustin/go-humanize"

// Slab fronts one shared pool per size-class and routes every request
// to the smallest class that fits. Classes below the configured
// cachedclasses threshold are hot: their allocations go through
// per-thread pointer caches, refilled and flushed in batches of half
// the cache depth. An epoch counter, bumped by Reset, invalidates
// every cache entry without touching other threads.
type Slab struct {
	// 64-bit aligned stats
	epoch     uint64
	n_allocs  int64
	n_frees   int64
	n_hits    int64
	n_refills int64
	n_flushes int64
	n_evicts  int64

	name      string
	logprefix string
	pools     []*Pool

	// settings
	scale         float64
	cachedclasses int
	cachedepth    int
	sizeclasses   []int64
	blockcounts   []int64
	setts         s.Settings
}

// NewSlab construct a slab allocator over one pool per size-class,
// refer to Defaultsettings() for the configurable parameters.
func NewSlab(name string, setts s.Settings) (*Slab, error) {
	slab := &Slab{name: name}
	slab.logprefix = fmt.Sprintf("SLAB [%s]", name)

	setts = make(s.Settings).Mixin(Defaultsettings(), setts)
	slab.readsettings(setts)
	slab.setts = setts

	slab.pools = make([]*Pool, 0, len(slab.sizeclasses))
	for i, size := range slab.sizeclasses {
		count := int64(math.Ceil(float64(slab.blockcounts[i]) * slab.scale))
		if count < 1 {
			count = 1
		}
		pool, err := NewPool(size, count)
		if err != nil {
			for _, opened := range slab.pools {
				opened.Release()
			}
			return nil, fmt.Errorf("slab pool %v: %v", size, err)
		}
		slab.pools = append(slab.pools, pool)
	}
	log.Infof("%v started %v pools, capacity %v\n",
		slab.logprefix, len(slab.pools),
		humanize.Bytes(uint64(slab.Totalcapacity())))
	return slab, nil
}

func (slab *Slab) readsettings(setts s.Settings) {
	slab.scale = setts.Float64("scale")
	slab.cachedclasses = int(setts.Int64("cachedclasses"))
	slab.cachedepth = int(setts.Int64("cachedepth"))
	slab.sizeclasses = int64s(setts, "sizeclasses")
	slab.blockcounts = int64s(setts, "blockcounts")

	if slab.scale <= 0 {
		panicerr("scale %v should be positive", slab.scale)
	} else if len(slab.sizeclasses) == 0 {
		panicerr("atleast one size-class required")
	} else if len(slab.blockcounts) != len(slab.sizeclasses) {
		panicerr("blockcounts %v entries, sizeclasses %v entries",
			len(slab.blockcounts), len(slab.sizeclasses))
	} else if slab.cachedclasses < 0 ||
		slab.cachedclasses > len(slab.sizeclasses) {
		panicerr("cachedclasses %v outside size-class table",
			slab.cachedclasses)
	} else if slab.cachedepth < 2 || (slab.cachedepth%2) != 0 {
		panicerr("cachedepth %v should be even and atleast 2",
			slab.cachedepth)
	}
	for i, size := range slab.sizeclasses {
		if size <= 0 {
			panicerr("size-class %v should be positive", size)
		} else if i > 0 && size <= slab.sizeclasses[i-1] {
			panicerr("size-classes not in ascending order")
		} else if slab.blockcounts[i] <= 0 {
			panicerr("blockcount %v should be positive", slab.blockcounts[i])
		}
	}
}

// sizetoindex smallest class that fits size, -1 when size is not
// positive or exceeds the largest class.
func (slab *Slab) sizetoindex(size int64) int {
	if size <= 0 {
		return -1
	}
	for i, classsize := range slab.sizeclasses {
		if size <= classsize {
			return i
		}
	}
	return -1
}

// reconcile entry's epoch against the slab's, dropping every cached
// pointer when a reset intervened. Dropped pointers are not returned
// to the pools, the reset already rebuilt their free lists.
func (slab *Slab) reconcile(entry *cacheentry) {
	epoch := atomic.LoadUint64(&slab.epoch)
	if entry.epoch != epoch {
		entry.invalidate()
		entry.epoch = epoch
	}
}

//---- operations

// Alloc a block of at least size bytes, rounded up to the smallest
// size-class that fits. Nil when size is out of range or the class's
// pool is exhausted. Safe for concurrent use.
func (slab *Slab) Alloc(size int64) unsafe.Pointer {
	index := slab.sizetoindex(size)
	if index < 0 {
		return nil
	}
	atomic.AddInt64(&slab.n_allocs, 1)
	pool := slab.pools[index]
	if index >= slab.cachedclasses {
		return pool.Alloc()
	}

	table := acquiretable()
	entry := table.entryfor(slab)
	slab.reconcile(entry)
	stack := &entry.storage[index]
	ptr := stack.trypop()
	if ptr != nil {
		atomic.AddInt64(&slab.n_hits, 1)
	} else {
		stack.current = pool.Allocbatch(stack.objects[:slab.cachedepth/2])
		atomic.AddInt64(&slab.n_refills, 1)
		ptr = stack.trypop()
	}
	releasetable(table)
	return ptr
}

// Calloc same as Alloc, and zero out the full size-class worth of
// bytes, not just the size requested.
func (slab *Slab) Calloc(size int64) unsafe.Pointer {
	ptr := slab.Alloc(size)
	if ptr != nil {
		zeroblock(uintptr(ptr), slab.sizeclasses[slab.sizetoindex(size)])
	}
	return ptr
}

// Free the block back to the size-class that served it, size should be
// the size requested at Alloc time. Out of range sizes and nil
// pointers are a no-op. Safe for concurrent use.
func (slab *Slab) Free(ptr unsafe.Pointer, size int64) {
	index := slab.sizetoindex(size)
	if index < 0 || ptr == nil {
		return
	}
	atomic.AddInt64(&slab.n_frees, 1)
	pool := slab.pools[index]
	if index >= slab.cachedclasses {
		pool.Free(ptr)
		return
	}
	assertowns(pool, ptr)

	table := acquiretable()
	entry := table.entryfor(slab)
	slab.reconcile(entry)
	stack := &entry.storage[index]
	if stack.isfull() {
		half := slab.cachedepth / 2
		pool.Freebatch(stack.objects[:half])
		copy(stack.objects, stack.objects[half:])
		stack.current -= half
		atomic.AddInt64(&slab.n_flushes, 1)
	}
	stack.push(ptr)
	releasetable(table)
}

// Reset rebuild every pool's free list and bump the epoch, so that
// cached pointers across all threads go stale in one step. Blocks
// handed out before the reset become invalid, callers should make
// sure nobody holds them and that no operation runs concurrently.
func (slab *Slab) Reset() {
	for _, pool := range slab.pools {
		pool.Reset()
	}
	atomic.AddUint64(&slab.epoch, 1)
	log.Debugf("%v reset to epoch %v\n",
		slab.logprefix, atomic.LoadUint64(&slab.epoch))
}

// Release detach this slab from every thread-cache table, flushing
// still-valid cached pointers back to the pools, then unmap the
// pools' regions. Returns the first unmap error, if any.
func (slab *Slab) Release() error {
	if slab.pools == nil {
		return nil
	}
	disown(slab)
	var err error
	for _, pool := range slab.pools {
		if e := pool.Release(); e != nil && err == nil {
			err = e
		}
	}
	slab.pools = nil
	log.Infof("%v destroyed\n", slab.logprefix)
	return err
}

//---- statistics

// Poolcount number of size-classes.
func (slab *Slab) Poolcount() int {
	return len(slab.pools)
}

// Totalcapacity sum of mapped bytes over all pools.
func (slab *Slab) Totalcapacity() int64 {
	total := int64(0)
	for _, pool := range slab.pools {
		total += pool.Capacity()
	}
	return total
}

// Totalfree sum of free bytes over all pools. Pointers parked in
// thread caches count as allocated.
func (slab *Slab) Totalfree() int64 {
	total := int64(0)
	for _, pool := range slab.pools {
		total += pool.Freespace()
	}
	return total
}

// Poolblocksize block-size of the index-th pool, 0 when out of range.
func (slab *Slab) Poolblocksize(index int) int64 {
	if index < 0 || index >= len(slab.pools) {
		return 0
	}
	return slab.pools[index].Blocksize()
}

// Poolfreespace free bytes in the index-th pool, 0 when out of range.
func (slab *Slab) Poolfreespace(index int) int64 {
	if index < 0 || index >= len(slab.pools) {
		return 0
	}
	return slab.pools[index].Freespace()
}

// Stats for this slab and its pools.
func (slab *Slab) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"epoch":         atomic.LoadUint64(&slab.epoch),
		"n_allocs":      atomic.LoadInt64(&slab.n_allocs),
		"n_frees":       atomic.LoadInt64(&slab.n_frees),
		"n_hits":        atomic.LoadInt64(&slab.n_hits),
		"n_refills":     atomic.LoadInt64(&slab.n_refills),
		"n_flushes":     atomic.LoadInt64(&slab.n_flushes),
		"n_evicts":      atomic.LoadInt64(&slab.n_evicts),
		"totalcapacity": slab.Totalcapacity(),
		"totalfree":     slab.Totalfree(),
	}
	for i, pool := range slab.pools {
		key := fmt.Sprintf("pool.%v", slab.sizeclasses[i])
		stats[key] = pool.Stats()
	}
	return stats
}

// Logstats print allocation counts and capacity via the configured
// logger.
func (slab *Slab) Logstats() {
	allocs := atomic.LoadInt64(&slab.n_allocs)
	hits := atomic.LoadInt64(&slab.n_hits)
	fmsg := "%v allocs:%v hits:%v capacity:%v free:%v\n"
	log.Infof(fmsg, slab.logprefix, allocs, hits,
		humanize.Bytes(uint64(slab.Totalcapacity())),
		humanize.Bytes(uint64(slab.Totalfree())))
}
