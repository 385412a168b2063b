package resourcemanager

import (
	"fmt"
	"log/slog"

	"github.com/bastionplatforms/aws-nitro-enclaves-cli/common"
	"github.com/bastionplatforms/aws-nitro-enclaves-cli/interfaces"
	"github.com/bastionplatforms/aws-nitro-enclaves-cli/metrics"
)

// ResourceHandle owns an open descriptor to the privileged driver. One
// handle may mint many enclave slots.
type ResourceHandle struct {
	driverFD int
	ops      interfaces.DriverOps
	log      *slog.Logger
}

// OpenResourceHandle opens the privileged driver through the given
// capability implementation.
func OpenResourceHandle(ops interfaces.DriverOps, log *slog.Logger) (*ResourceHandle, error) {
	fd, err := ops.Open()
	if err != nil {
		return nil, fmt.Errorf("could not open enclave device: %w", err)
	}

	return &ResourceHandle{driverFD: fd, ops: ops, log: log}, nil
}

// CreateEnclave allocates a hardware slot and returns the instance owning
// it. Allocation failures are surfaced as errors, never panics.
func (h *ResourceHandle) CreateEnclave() (*EnclaveInstance, error) {
	enclaveFD, err := h.ops.CreateSlot(h.driverFD)
	if err != nil {
		return nil, fmt.Errorf("could not create enclave slot: %w", err)
	}

	metrics.EnclavesCreated.Inc()
	h.log.Info("Allocated enclave slot", slog.Int("enclave_fd", enclaveFD))

	return &EnclaveInstance{enclaveFD: enclaveFD, ops: h.ops, log: h.log}, nil
}

// Close closes the driver descriptor. The handle must not be used afterward.
func (h *ResourceHandle) Close() error {
	if h.driverFD < 0 {
		return nil
	}

	err := h.ops.Close(h.driverFD)
	h.driverFD = -1
	if err != nil {
		return fmt.Errorf("could not close enclave device: %w", err)
	}
	return nil
}

// EnclaveInstance owns the descriptor of one allocated enclave slot. A
// strictly negative descriptor means no resource is owned.
type EnclaveInstance struct {
	enclaveFD int
	ops       interfaces.DriverOps
	log       *slog.Logger
}

// FD returns the underlying enclave descriptor.
func (e *EnclaveInstance) FD() int {
	return e.enclaveFD
}

// AddMemoryRegion registers a memory region with the enclave under the given
// slot index. Geometry is validated before the privileged call is issued;
// driver rejections (including duplicate slots, which only the driver can
// detect) are surfaced with the requested geometry attached. On success the
// region's memory belongs to the enclave for the rest of the instance's life
// and must not be freed or reused by the caller.
func (e *EnclaveInstance) AddMemoryRegion(region *MemoryRegion, slot uint32) error {
	if region == nil {
		return fmt.Errorf("no memory region provided for slot %d", slot)
	}
	if region.memSize == 0 || region.memSize%HugePageSize != 0 {
		metrics.MemoryRegionFailures.Inc()
		return fmt.Errorf("region size 0x%x for slot %d is not a positive multiple of the huge page size 0x%x",
			region.memSize, slot, HugePageSize)
	}
	if region.memAddr%HugePageSize != 0 {
		metrics.MemoryRegionFailures.Inc()
		return fmt.Errorf("region address 0x%x for slot %d is not huge-page aligned", region.memAddr, slot)
	}

	err := e.ops.AddRegion(e.enclaveFD, interfaces.UserMemoryRegion{
		Slot:          slot,
		UserspaceAddr: region.memAddr,
		MemorySize:    region.memSize,
	})
	if err != nil {
		metrics.MemoryRegionFailures.Inc()
		return fmt.Errorf("could not register region at 0x%x (size 0x%x) under slot %d: %w",
			region.memAddr, region.memSize, slot, err)
	}

	region.registered = true
	metrics.MemoryRegionsRegistered.Inc()
	e.log.Debug("Memory region registered",
		slog.Uint64("slot", uint64(slot)),
		slog.Uint64("size", region.memSize))
	return nil
}

// Release closes the enclave descriptor, releasing the hardware slot.
// Releasing an instance that owns no descriptor is a no-op. A failed close
// is unrecoverable: there is no safe retry for a half-released slot, so the
// process terminates rather than continue with a possible hardware leak.
func (e *EnclaveInstance) Release() {
	if e.enclaveFD < 0 {
		return
	}

	fd := e.enclaveFD
	e.enclaveFD = -1
	if err := e.ops.ReleaseSlot(fd); err != nil {
		common.Fatal(e.log, common.ExitCodeFatal, "Failed to release enclave slot",
			slog.Int("enclave_fd", fd), "err", err)
		return
	}

	metrics.EnclavesReleased.Inc()
	e.log.Info("Released enclave slot", slog.Int("enclave_fd", fd))
}

// Manager orchestrates the driver handle and memory regions to bring up an
// enclave instance.
type Manager struct {
	handle *ResourceHandle
	log    *slog.Logger
}

// OpenManager opens the privileged driver and returns a manager minting
// enclaves from it.
func OpenManager(ops interfaces.DriverOps, log *slog.Logger) (*Manager, error) {
	handle, err := OpenResourceHandle(ops, log)
	if err != nil {
		return nil, err
	}
	return &Manager{handle: handle, log: log}, nil
}

// ProvisionEnclave allocates a slot and registers regionCount huge-page
// regions of regionSize bytes each, under sequential slot indices. On a
// registration failure the slot state is undefined for that slot; the
// enclave is released and the error returned.
func (m *Manager) ProvisionEnclave(regionSize uint64, regionCount int) (*EnclaveInstance, error) {
	if regionCount <= 0 {
		return nil, fmt.Errorf("invalid region count %d", regionCount)
	}

	enclave, err := m.handle.CreateEnclave()
	if err != nil {
		return nil, err
	}

	for slot := 0; slot < regionCount; slot++ {
		region, err := NewMemoryRegion(regionSize)
		if err != nil {
			enclave.Release()
			return nil, fmt.Errorf("could not allocate region for slot %d: %w", slot, err)
		}

		if err := enclave.AddMemoryRegion(region, uint32(slot)); err != nil {
			freeErr := region.Free()
			enclave.Release()
			if freeErr != nil {
				m.log.Warn("Failed to free unregistered region", "err", freeErr)
			}
			return nil, err
		}
	}

	return enclave, nil
}

// Close closes the underlying driver handle.
func (m *Manager) Close() error {
	return m.handle.Close()
}
