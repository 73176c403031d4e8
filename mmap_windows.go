//go:build windows
// +build windows

package palloc

import "unsafe"

import "golang.org/x/sys/windows"

type osmapper struct{}

func (m osmapper) Map(n int64) ([]byte, error) {
	base, err := windows.VirtualAlloc(
		0, uintptr(n),
		windows.MEM_COMMIT|windows.MEM_RESERVE,
		windows.PAGE_READWRITE)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(base)), n), nil
}

func (m osmapper) Unmap(mem []byte) error {
	base := uintptr(unsafe.Pointer(&mem[0]))
	return windows.VirtualFree(base, 0, windows.MEM_RELEASE)
}
