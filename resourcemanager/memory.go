package resourcemanager

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// HugePageSize is the granule enclave memory regions are built from.
const HugePageSize uint64 = 2 * 1024 * 1024

// ErrRegionRegistered is returned when freeing a region whose memory has
// already been handed to an enclave.
var ErrRegionRegistered = errors.New("memory region is registered with an enclave and cannot be freed")

// MemoryRegion is a pinned, huge-page-backed block of memory destined for an
// enclave's address space.
type MemoryRegion struct {
	memAddr uint64
	memSize uint64
	mapping []byte
	// registered flips once the driver accepts the region; from then on the
	// memory belongs to the enclave and Free is refused.
	registered bool
}

// NewMemoryRegion maps a huge-page-backed region of the given size. The size
// must be a positive multiple of HugePageSize.
func NewMemoryRegion(size uint64) (*MemoryRegion, error) {
	if size == 0 || size%HugePageSize != 0 {
		return nil, fmt.Errorf("region size 0x%x is not a positive multiple of the huge page size 0x%x", size, HugePageSize)
	}

	mapping, err := unix.Mmap(-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_HUGETLB)
	if err != nil {
		return nil, fmt.Errorf("could not map 0x%x bytes of huge-page memory: %w", size, err)
	}

	return &MemoryRegion{
		memAddr: uint64(uintptr(unsafe.Pointer(&mapping[0]))),
		memSize: size,
		mapping: mapping,
	}, nil
}

// Addr returns the virtual address of the backing allocation.
func (r *MemoryRegion) Addr() uint64 {
	return r.memAddr
}

// Size returns the region size in bytes.
func (r *MemoryRegion) Size() uint64 {
	return r.memSize
}

// Registered reports whether the region's memory has been handed to an
// enclave.
func (r *MemoryRegion) Registered() bool {
	return r.registered
}

// Free unmaps the backing allocation. Freeing twice is a no-op; freeing a
// region an enclave owns is refused.
func (r *MemoryRegion) Free() error {
	if r.registered {
		return ErrRegionRegistered
	}
	if r.mapping == nil {
		return nil
	}

	if err := unix.Munmap(r.mapping); err != nil {
		return fmt.Errorf("could not unmap region at 0x%x: %w", r.memAddr, err)
	}
	r.mapping = nil
	return nil
}
