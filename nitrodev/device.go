package nitrodev

import (
	"fmt"
	"log/slog"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/bastionplatforms/aws-nitro-enclaves-cli/interfaces"
)

// DevicePath is the well-known path of the Nitro Enclaves device.
const DevicePath = "/dev/nitro_enclaves"

// ioctl request numbers understood by the device. The driver reuses the KVM
// ioctl numbering for slot creation and memory registration.
const (
	// _IO(0xAE, 0x01)
	ioctlCreateVM = 0xAE01

	// _IOW(0xAE, 0x46, struct kvm_userspace_memory_region)
	ioctlSetUserMemoryRegion = 0x4020AE46
)

// Driver issues privileged requests to the Nitro Enclaves device. It holds
// no descriptor state itself; descriptors are owned by the resource manager
// types built on top of it.
type Driver struct {
	devicePath string
	log        *slog.Logger
}

// NewDriver returns a Driver for the well-known device path.
func NewDriver(log *slog.Logger) *Driver {
	return &Driver{devicePath: DevicePath, log: log}
}

// NewDriverForPath returns a Driver for a non-default device path.
func NewDriverForPath(devicePath string, log *slog.Logger) *Driver {
	return &Driver{devicePath: devicePath, log: log}
}

// Open opens the device read-write and returns its descriptor.
func (d *Driver) Open() (int, error) {
	fd, err := unix.Open(d.devicePath, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("%w: could not open %s: %v", interfaces.ErrDeviceNotAvailable, d.devicePath, err)
	}

	d.log.Debug("Opened enclave device", slog.String("path", d.devicePath), slog.Int("fd", fd))
	return fd, nil
}

// CreateSlot allocates an enclave slot and returns the enclave descriptor.
// A negative ioctl result is an allocation failure and is surfaced as an
// error.
func (d *Driver) CreateSlot(driverFD int) (int, error) {
	enclaveType := uint64(0)
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(driverFD), ioctlCreateVM, uintptr(unsafe.Pointer(&enclaveType)))
	if errno != 0 {
		return -1, fmt.Errorf("%w: ioctl error: %v", interfaces.ErrSlotAllocationFailed, errno)
	}

	enclaveFD := int(int64(r))
	if enclaveFD < 0 {
		return -1, fmt.Errorf("%w: driver returned %d", interfaces.ErrSlotAllocationFailed, enclaveFD)
	}

	d.log.Debug("Created enclave slot", slog.Int("enclave_fd", enclaveFD))
	return enclaveFD, nil
}

// AddRegion registers a memory region with the enclave slot. The driver's
// rejection (bad geometry or duplicate registration) is surfaced verbatim.
func (d *Driver) AddRegion(enclaveFD int, region interfaces.UserMemoryRegion) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(enclaveFD), ioctlSetUserMemoryRegion, uintptr(unsafe.Pointer(&region)))
	if errno != 0 {
		return fmt.Errorf("%w: slot %d, addr 0x%x, size 0x%x: %v",
			interfaces.ErrRegionRejected, region.Slot, region.UserspaceAddr, region.MemorySize, errno)
	}

	d.log.Debug("Registered memory region",
		slog.Uint64("slot", uint64(region.Slot)),
		slog.Uint64("size", region.MemorySize))
	return nil
}

// ReleaseSlot closes the enclave descriptor, releasing the hardware slot.
func (d *Driver) ReleaseSlot(enclaveFD int) error {
	if err := unix.Close(enclaveFD); err != nil {
		return fmt.Errorf("could not close enclave descriptor %d: %w", enclaveFD, err)
	}
	return nil
}

// Close closes the device descriptor.
func (d *Driver) Close(driverFD int) error {
	if err := unix.Close(driverFD); err != nil {
		return fmt.Errorf("could not close device descriptor %d: %w", driverFD, err)
	}
	return nil
}
