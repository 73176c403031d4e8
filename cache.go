package palloc

import "sync"
import "sync/atomic"
import "unsafe"

// Per-thread caching without thread local storage: a cachetable is
// checked out for the duration of a single hot-path operation and
// returned afterwards. A sync.Pool front keeps tables sticky to the
// calling P; when the pool comes up empty, a try-lock scan over the
// process wide registry re-adopts an idle table before a new one is
// created. Exclusive access to a table is defined by holding its
// mutex, which also lets Slab.Release lock every table out while it
// walks the registry.

// cachestack bounded stack of cached pointers for one size-class.
type cachestack struct {
	objects []unsafe.Pointer
	current int
}

func (stack *cachestack) trypop() unsafe.Pointer {
	if stack.current == 0 {
		return nil
	}
	stack.current--
	return stack.objects[stack.current]
}

func (stack *cachestack) push(ptr unsafe.Pointer) {
	if stack.current == len(stack.objects) {
		panicerr("cachestack overflow at %v pointers", stack.current)
	}
	stack.objects[stack.current] = ptr
	stack.current++
}

func (stack *cachestack) isfull() bool {
	return stack.current == len(stack.objects)
}

func (stack *cachestack) invalidate() {
	stack.current = 0
}

// cacheentry one slot of a cachetable, all pointers in storage belong
// to owner and were observed at the recorded epoch.
type cacheentry struct {
	owner   *Slab
	epoch   uint64
	storage []cachestack
}

// claim take this entry over for the given slab, sizing storage to the
// slab's cached classes and cache depth.
func (entry *cacheentry) claim(slab *Slab) {
	entry.owner = slab
	entry.epoch = atomic.LoadUint64(&slab.epoch)
	if len(entry.storage) != slab.cachedclasses {
		entry.storage = make([]cachestack, slab.cachedclasses)
	}
	for i := range entry.storage {
		if len(entry.storage[i].objects) != slab.cachedepth {
			entry.storage[i].objects = make([]unsafe.Pointer, slab.cachedepth)
		}
		entry.storage[i].current = 0
	}
}

// flush return every cached pointer to the owner's shared pools, or
// drop them when the entry's epoch went stale, the owner's reset
// already reclaimed those blocks.
func (entry *cacheentry) flush() {
	owner := entry.owner
	if owner == nil {
		return
	}
	if entry.epoch != atomic.LoadUint64(&owner.epoch) {
		entry.invalidate()
		return
	}
	for i := range entry.storage {
		stack := &entry.storage[i]
		if stack.current == 0 {
			continue
		}
		owner.pools[i].Freebatch(stack.objects[:stack.current])
		stack.current = 0
	}
}

func (entry *cacheentry) invalidate() {
	for i := range entry.storage {
		entry.storage[i].invalidate()
	}
}

// cachetable Maxcachedslabs entries serving one thread of execution.
type cachetable struct {
	mutex   sync.Mutex
	entries [Maxcachedslabs]cacheentry
}

// entryfor locate the entry caching for slab: an entry already owned
// by it, else the first unowned entry, else evict the last entry after
// flushing its pointers to their owner's pools.
func (table *cachetable) entryfor(slab *Slab) *cacheentry {
	var empty *cacheentry
	for i := range table.entries {
		entry := &table.entries[i]
		if entry.owner == slab {
			return entry
		} else if entry.owner == nil && empty == nil {
			empty = entry
		}
	}
	if empty != nil {
		empty.claim(slab)
		return empty
	}
	entry := &table.entries[len(table.entries)-1]
	entry.flush()
	entry.claim(slab)
	atomic.AddInt64(&slab.n_evicts, 1)
	return entry
}

var cachetables struct {
	mutex  sync.Mutex
	tables []*cachetable
}

var tablepool sync.Pool

// acquiretable return a locked table for exclusive use.
func acquiretable() *cachetable {
	if v := tablepool.Get(); v != nil {
		table := v.(*cachetable)
		table.mutex.Lock()
		return table
	}
	cachetables.mutex.Lock()
	tables := cachetables.tables
	cachetables.mutex.Unlock()
	for _, table := range tables {
		if table.mutex.TryLock() {
			return table
		}
	}
	table := &cachetable{}
	table.mutex.Lock()
	cachetables.mutex.Lock()
	cachetables.tables = append(cachetables.tables, table)
	cachetables.mutex.Unlock()
	return table
}

func releasetable(table *cachetable) {
	table.mutex.Unlock()
	tablepool.Put(table)
}

// disown walk every table and detach entries owned by slab, flushing
// still-valid pointers back to the slab's pools first. Called by
// Slab.Release before the pools go away.
func disown(slab *Slab) {
	cachetables.mutex.Lock()
	tables := cachetables.tables
	cachetables.mutex.Unlock()
	for _, table := range tables {
		table.mutex.Lock()
		for i := range table.entries {
			entry := &table.entries[i]
			if entry.owner == slab {
				entry.flush()
				entry.owner = nil
			}
		}
		table.mutex.Unlock()
	}
}
