package nitrodev

import (
	"fmt"
	"sync"

	"github.com/bastionplatforms/aws-nitro-enclaves-cli/interfaces"
)

// MockHugePageSize is the huge page granule enforced by MockDriver, matching
// the 2 MiB pages the real driver expects regions to be built from.
const MockHugePageSize = 2 * 1024 * 1024

// MockDriver is an in-memory interfaces.DriverOps implementation enforcing
// the kernel driver's geometric invariants: region sizes must be non-zero
// multiples of the huge page size, userspace addresses must be huge-page
// aligned, and a slot or address range can be registered at most once.
//
// Descriptors are synthetic integers, unique across the driver's lifetime,
// so tests can assert exact ownership transitions.
type MockDriver struct {
	// MaxSlots bounds the number of concurrently allocated enclave slots.
	// Zero means unbounded.
	MaxSlots int

	mu       sync.Mutex
	nextFD   int
	devices  map[int]bool
	enclaves map[int]*mockEnclave
}

type mockEnclave struct {
	released bool
	regions  map[uint32]interfaces.UserMemoryRegion
}

// NewMockDriver returns an empty MockDriver.
func NewMockDriver() *MockDriver {
	return &MockDriver{
		nextFD:   3,
		devices:  make(map[int]bool),
		enclaves: make(map[int]*mockEnclave),
	}
}

// Open mints a synthetic device descriptor.
func (m *MockDriver) Open() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fd := m.nextFD
	m.nextFD++
	m.devices[fd] = true
	return fd, nil
}

// CreateSlot allocates a synthetic enclave slot bound to the device
// descriptor. Fails when the descriptor is unknown or MaxSlots is exhausted.
func (m *MockDriver) CreateSlot(driverFD int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.devices[driverFD] {
		return -1, fmt.Errorf("%w: unknown device descriptor %d", interfaces.ErrSlotAllocationFailed, driverFD)
	}
	if m.MaxSlots > 0 && m.liveEnclavesLocked() >= m.MaxSlots {
		return -1, fmt.Errorf("%w: all %d slots allocated", interfaces.ErrSlotAllocationFailed, m.MaxSlots)
	}

	fd := m.nextFD
	m.nextFD++
	m.enclaves[fd] = &mockEnclave{regions: make(map[uint32]interfaces.UserMemoryRegion)}
	return fd, nil
}

// AddRegion validates the registration request the way the kernel driver
// does and records it on success.
func (m *MockDriver) AddRegion(enclaveFD int, region interfaces.UserMemoryRegion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	enc, ok := m.enclaves[enclaveFD]
	if !ok || enc.released {
		return fmt.Errorf("%w: unknown enclave descriptor %d", interfaces.ErrRegionRejected, enclaveFD)
	}

	switch {
	case region.MemorySize == 0 || region.MemorySize%MockHugePageSize != 0:
		return fmt.Errorf("%w: size 0x%x is not a positive multiple of the huge page size 0x%x",
			interfaces.ErrRegionRejected, region.MemorySize, uint64(MockHugePageSize))
	case region.UserspaceAddr == 0:
		return fmt.Errorf("%w: nil userspace address", interfaces.ErrRegionRejected)
	case region.UserspaceAddr%MockHugePageSize != 0:
		return fmt.Errorf("%w: userspace address 0x%x is not huge-page aligned",
			interfaces.ErrRegionRejected, region.UserspaceAddr)
	}

	if _, dup := enc.regions[region.Slot]; dup {
		return fmt.Errorf("%w: slot %d is already registered", interfaces.ErrRegionRejected, region.Slot)
	}
	for _, existing := range enc.regions {
		if rangesOverlap(existing.UserspaceAddr, existing.MemorySize, region.UserspaceAddr, region.MemorySize) {
			return fmt.Errorf("%w: range [0x%x, 0x%x) overlaps an existing registration",
				interfaces.ErrRegionRejected, region.UserspaceAddr, region.UserspaceAddr+region.MemorySize)
		}
	}

	enc.regions[region.Slot] = region
	return nil
}

// ReleaseSlot releases a synthetic enclave descriptor. Releasing an unknown
// or already released descriptor is an error, mirroring a failed close.
func (m *MockDriver) ReleaseSlot(enclaveFD int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	enc, ok := m.enclaves[enclaveFD]
	if !ok || enc.released {
		return fmt.Errorf("could not close enclave descriptor %d: not owned", enclaveFD)
	}
	enc.released = true
	return nil
}

// Close releases a synthetic device descriptor.
func (m *MockDriver) Close(driverFD int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.devices[driverFD] {
		return fmt.Errorf("could not close device descriptor %d: not owned", driverFD)
	}
	delete(m.devices, driverFD)
	return nil
}

// LiveEnclaves reports the number of allocated, not yet released slots.
func (m *MockDriver) LiveEnclaves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liveEnclavesLocked()
}

// RegionCount reports the number of regions registered with an enclave
// descriptor.
func (m *MockDriver) RegionCount(enclaveFD int) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	enc, ok := m.enclaves[enclaveFD]
	if !ok {
		return 0
	}
	return len(enc.regions)
}

func (m *MockDriver) liveEnclavesLocked() int {
	live := 0
	for _, enc := range m.enclaves {
		if !enc.released {
			live++
		}
	}
	return live
}

func rangesOverlap(aAddr, aSize, bAddr, bSize uint64) bool {
	return aAddr < bAddr+bSize && bAddr < aAddr+aSize
}
