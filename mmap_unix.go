//go:build unix
// +build unix

package palloc

import "golang.org/x/sys/unix"

type osmapper struct{}

func (m osmapper) Map(n int64) ([]byte, error) {
	return unix.Mmap(
		-1, 0, int(n),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
}

func (m osmapper) Unmap(mem []byte) error {
	return unix.Munmap(mem)
}
