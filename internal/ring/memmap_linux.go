//go:build linux
// +build linux

// File: internal/ring/memmap_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// On Linux, a granted foreign page is simulated with an anonymous mmap,
// standing in for the real grant-table mapping primitive of spec §1(ii)
// (map(domid, pfn_offset) -> *Interface), which lives outside this core.
package ring

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// AllocatedPage owns the backing memory for a rawPage and must be
// released with Close when the domain's ring is unmapped.
type AllocatedPage struct {
	*Page
	mem []byte
}

// Close unmaps the backing anonymous page.
func (a *AllocatedPage) Close() error {
	return unix.Munmap(a.mem)
}

// Alloc mmaps an anonymous page large enough to hold a rawPage and
// returns a worker-side Page view over it.
func Alloc() (*AllocatedPage, error) {
	size := int(unsafe.Sizeof(rawPage{}))
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("ring: mmap anonymous page: %w", err)
	}
	raw := (*rawPage)(unsafe.Pointer(&mem[0]))
	return &AllocatedPage{Page: NewPage(raw), mem: mem}, nil
}
