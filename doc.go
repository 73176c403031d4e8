// Package palloc supplies custom memory management for latency
// sensitive workloads, with a limited scope:
//
//   - Memory is carved out of anonymous virtual memory regions mapped
//     from the OS, never from the Go heap.
//   - Regions are mapped once, at construction time, and given back to
//     the OS only when the allocator instance is released.
//   - There is no pointer re-write, no compaction and no per-object
//     free on the arena.
//   - Pointers handed out by this package are invisible to the Go
//     garbage collector, applications own their lifecycle.
//
// Three allocators are exported:
//
// Arena is a single region of memory bumped forward by an atomic
// counter. Any number of goroutines can allocate concurrently, the
// entire arena is reclaimed in one Reset call.
//
// Pool manages a region sliced up into equal sized blocks, threaded
// together on an intrusive free list. Alloc and Free, single or
// batched, are serialized by the pool's mutex.
//
// Slab fronts a set of pools, one per size-class, and routes every
// request to the smallest class that fits. The hottest classes are
// served out of per-thread caches of pointers, refilled and flushed
// in batches, and invalidated wholesale by an epoch counter when the
// slab is reset.
package palloc
