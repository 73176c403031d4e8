package palloc

import "fmt"
import "testing"
import "unsafe"

import s "github.com/bnclabs/gosettings"

func TestCachestack(t *testing.T) {
	stack := &cachestack{objects: make([]unsafe.Pointer, 4)}
	if ptr := stack.trypop(); ptr != nil {
		t.Errorf("expected nil from empty stack")
	}
	vals := make([]int64, 4)
	for i := range vals {
		stack.push(unsafe.Pointer(&vals[i]))
	}
	if stack.isfull() == false {
		t.Errorf("expected full stack")
	}
	// panic case
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		stack.push(unsafe.Pointer(&vals[0]))
	}()
	// LIFO order.
	for i := 3; i >= 0; i-- {
		if ptr := stack.trypop(); ptr != unsafe.Pointer(&vals[i]) {
			t.Errorf("expected %p, got %p", &vals[i], ptr)
		}
	}
	stack.push(unsafe.Pointer(&vals[0]))
	stack.invalidate()
	if ptr := stack.trypop(); ptr != nil {
		t.Errorf("expected nil after invalidate")
	}
}

func TestCachetableEntryfor(t *testing.T) {
	slabs := make([]*Slab, 0, Maxcachedslabs+1)
	for i := 0; i < Maxcachedslabs+1; i++ {
		slab, err := NewSlab(fmt.Sprintf("entryfor%v", i), s.Settings{
			"sizeclasses": []int64{8}, "blockcounts": []int64{8},
			"cachedclasses": 1, "cachedepth": 4,
		})
		if err != nil {
			t.Fatal(err)
		}
		defer slab.Release()
		slabs = append(slabs, slab)
	}

	table := acquiretable()
	defer releasetable(table)

	entries := make([]*cacheentry, 0, Maxcachedslabs)
	for i := 0; i < Maxcachedslabs; i++ {
		entry := table.entryfor(slabs[i])
		if entry.owner != slabs[i] {
			t.Errorf("expected owner %v, got %v", i, entry.owner)
		}
		entries = append(entries, entry)
	}
	// repeated lookup lands on the same entry.
	if entry := table.entryfor(slabs[0]); entry != entries[0] {
		t.Errorf("expected %p, got %p", entries[0], entry)
	}
	// a fifth slab evicts the last entry.
	last := &table.entries[Maxcachedslabs-1]
	evicted := last.owner
	entry := table.entryfor(slabs[Maxcachedslabs])
	if entry != last {
		t.Errorf("expected %p, got %p", last, entry)
	} else if entry.owner != slabs[Maxcachedslabs] {
		t.Errorf("unexpected owner after eviction")
	}
	for i := range table.entries {
		if table.entries[i].owner == evicted {
			t.Errorf("evicted slab still cached at %v", i)
		}
	}
}

func TestCacheflush(t *testing.T) {
	slab, err := NewSlab("cacheflush", s.Settings{
		"sizeclasses": []int64{8}, "blockcounts": []int64{8},
		"cachedclasses": 1, "cachedepth": 4,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer slab.Release()
	pool := slab.pools[0]

	table := acquiretable()
	entry := table.entryfor(slab)

	// a flush with the current epoch returns pointers to the pool.
	ptr := pool.Alloc()
	entry.storage[0].push(ptr)
	before := pool.Freespace()
	entry.flush()
	if x, y := pool.Freespace(), before+pool.Blocksize(); x != y {
		t.Errorf("expected %v, got %v", y, x)
	}

	// a stale flush drops pointers instead of freeing them twice.
	ptr = pool.Alloc()
	entry.storage[0].push(ptr)
	slab.Reset() // rebuilds the free list, bumps the epoch
	before = pool.Freespace()
	entry.flush()
	if x := pool.Freespace(); x != before {
		t.Errorf("expected %v, got %v", before, x)
	}
	if x := entry.storage[0].current; x != 0 {
		t.Errorf("expected %v, got %v", 0, x)
	}
	pool.Validate()
	releasetable(table)
}

func TestAcquiretable(t *testing.T) {
	t1 := acquiretable()
	t2 := acquiretable()
	if t1 == t2 {
		t.Errorf("two held tables cannot be the same")
	}
	releasetable(t2)
	releasetable(t1)

	cachetables.mutex.Lock()
	registered := len(cachetables.tables)
	cachetables.mutex.Unlock()
	if registered < 2 {
		t.Errorf("expected atleast 2 registered tables, got %v", registered)
	}
}
