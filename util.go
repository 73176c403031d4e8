package palloc

import "fmt"
import "os"
import "reflect"
import "unsafe"

import s "github.com/bnclabs/gosettings"

var pagesize = int64(os.Getpagesize())

// roundpage round n up to the next page boundary.
func roundpage(n int64) int64 {
	return ((n + pagesize - 1) / pagesize) * pagesize
}

// nextpow2 round n up to the next power of 2.
func nextpow2(n int64) int64 {
	if n <= 0 {
		return 1
	}
	size := int64(1)
	for size < n {
		size <<= 1
	}
	return size
}

func panicerr(fmsg string, args ...interface{}) {
	panic(fmt.Errorf(fmsg, args...))
}

var zeroblkinit = make([]byte, 1024)

// zeroblock zero out size bytes starting at block.
func zeroblock(block uintptr, size int64) {
	var dst []byte
	initsz := len(zeroblkinit)
	sl := (*reflect.SliceHeader)(unsafe.Pointer(&dst))
	sl.Data, sl.Len = block, initsz
	for i := int64(0); i < size/int64(initsz); i++ {
		copy(dst, zeroblkinit)
		sl.Data = (uintptr)(uint64(sl.Data) + uint64(initsz))
	}
	if sl.Len = int(size) % len(zeroblkinit); sl.Len > 0 {
		copy(dst, zeroblkinit)
	}
}

// int64s read a settings key that holds a slice of numbers.
func int64s(setts s.Settings, key string) []int64 {
	value, ok := setts[key]
	if !ok {
		panicerr("missing settings %q", key)
	}
	switch vals := value.(type) {
	case []int64:
		out := make([]int64, len(vals))
		copy(out, vals)
		return out
	case []int:
		out := make([]int64, len(vals))
		for i, val := range vals {
			out[i] = int64(val)
		}
		return out
	case []interface{}:
		out := make([]int64, 0, len(vals))
		for _, val := range vals {
			out = append(out, s.Settings{key: val}.Int64(key))
		}
		return out
	}
	panicerr("settings %q not a slice of numbers: %T", key, value)
	return nil
}
