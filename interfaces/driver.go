package interfaces

import "errors"

// Standard errors surfaced by driver operations.
var (
	// ErrDeviceNotAvailable indicates the privileged device could not be
	// opened (absent driver module or insufficient permissions).
	ErrDeviceNotAvailable = errors.New("nitro enclaves device is not available")

	// ErrSlotAllocationFailed indicates the driver returned a negative
	// result for a slot creation request (resource exhaustion or an invalid
	// request).
	ErrSlotAllocationFailed = errors.New("enclave slot allocation failed")

	// ErrRegionRejected indicates the driver refused a memory region
	// registration (bad size, bad alignment, or duplicate registration).
	ErrRegionRejected = errors.New("memory region rejected by driver")
)

// UserMemoryRegion is the fixed-shape request handed to the driver when
// registering memory with an enclave slot. The field order and widths mirror
// the kernel ABI structure and must not change.
type UserMemoryRegion struct {
	// Slot is the enclave-assigned region index.
	Slot uint32

	// Flags is reserved and must be zero.
	Flags uint32

	// GuestPhysAddr is the guest physical address the region is mapped at.
	GuestPhysAddr uint64

	// MemorySize is the region size in bytes. Must exactly match the size
	// of the backing allocation.
	MemorySize uint64

	// UserspaceAddr is the virtual address of the pinned backing
	// allocation. Must be aligned to the huge page size.
	UserspaceAddr uint64
}

// DriverOps is the capability surface over the privileged Nitro Enclaves
// driver. Descriptors are plain file descriptor values; a strictly negative
// value never represents an owned resource. All calls are synchronous, and a
// failed region registration leaves the slot state undefined for that slot,
// so callers must not blindly reattempt the same slot.
type DriverOps interface {
	// Open opens the privileged device and returns its descriptor.
	Open() (int, error)

	// CreateSlot allocates an enclave slot through the given device
	// descriptor and returns the enclave descriptor.
	CreateSlot(driverFD int) (int, error)

	// AddRegion registers a memory region with the enclave slot behind
	// enclaveFD. Rejections by the driver are surfaced as errors wrapping
	// ErrRegionRejected, never masked.
	AddRegion(enclaveFD int, region UserMemoryRegion) error

	// ReleaseSlot closes the enclave descriptor, releasing its hardware
	// slot. Must be called at most once per descriptor.
	ReleaseSlot(enclaveFD int) error

	// Close closes the device descriptor obtained from Open.
	Close(driverFD int) error
}
