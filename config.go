package palloc

import s "github.com/bnclabs/gosettings"

// Alignment blocks handed out by pools and slabs are always aligned
// to their block-size, which is a power of 2 and at least Alignment.
const Alignment = int64(8)

// Maxarenasize maximum size of an arena region. Can be used as default
// capacity for NewArena().
const Maxarenasize = int64(1024 * 1024 * 1024 * 1024)

// Maxpoolblocks maximum number of blocks allowed in a single pool.
const Maxpoolblocks = int64(1024 * 1024)

// Maxcachedslabs number of slab instances a single thread-cache table
// can serve at a time. A thread touching more slabs than this pays an
// eviction flush on first touch.
const Maxcachedslabs = 4

// defaultsizeclasses block sizes of the slab's shared pools, ascending.
var defaultsizeclasses = []int64{8, 16, 32, 64, 128, 256, 512, 1024, 2048, 4096}

// defaultblockcounts initial number of blocks per size-class, scaled by
// the "scale" setting at construction time.
var defaultblockcounts = []int64{512, 512, 256, 256, 128, 128, 64, 64, 32, 32}

// Defaultsettings for palloc slabs:
//
// "scale" (float64, default: 1.0)
//
//	Multiplied with the per-class default block count to dimension
//	the shared pools. Scaled counts are rounded up and never fall
//	below one block.
//
// "cachedclasses" (int64, default: 4)
//
//	Number of size-classes, counting from the smallest, served via
//	per-thread pointer caches. Must not exceed the number of size
//	classes.
//
// "cachedepth" (int64, default: 128)
//
//	Capacity, in pointers, of each per-thread cache. Refill and
//	flush move cachedepth/2 pointers per pool visit, so the depth
//	must be even and at least 2.
//
// "sizeclasses" ([]int64, default: 8,16,32,64,128,256,512,1024,2048,4096)
//
//	Block sizes of the shared pools, in ascending order. Sizes are
//	sanitized to powers of 2 like any pool block-size.
//
// "blockcounts" ([]int64, default: 512,512,256,256,128,128,64,64,32,32)
//
//	Initial block count for each size-class, before scaling. Must
//	have one entry per size-class.
func Defaultsettings() s.Settings {
	return s.Settings{
		"scale":         1.0,
		"cachedclasses": 4,
		"cachedepth":    128,
		"sizeclasses":   defaultsizeclasses,
		"blockcounts":   defaultblockcounts,
	}
}
