//go:build debug
// +build debug

package palloc

import "reflect"
import "unsafe"

var poolblkinit = make([]byte, 1024)

func init() {
	for i := 0; i < len(poolblkinit); i++ {
		poolblkinit[i] = 0xff
	}
}

// initblock poison freshly allocated blocks, to catch read-before-init.
func initblock(block uintptr, size int64) {
	var dst []byte
	initsz := len(poolblkinit)
	sl := (*reflect.SliceHeader)(unsafe.Pointer(&dst))
	sl.Data, sl.Len = block, initsz
	for i := int64(0); i < size/int64(initsz); i++ {
		copy(dst, poolblkinit)
		sl.Data = (uintptr)(uint64(sl.Data) + uint64(initsz))
	}
	if sl.Len = int(size) % len(poolblkinit); sl.Len > 0 {
		copy(dst, poolblkinit)
	}
}

// assertowns caller contract, ptr belongs to pool.
func assertowns(pool *Pool, ptr unsafe.Pointer) {
	if pool.Owns(ptr) == false {
		panicerr("pool %v does not own pointer %x", pool.logprefix, ptr)
	}
}
