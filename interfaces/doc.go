// Package interfaces defines the contracts between the enclave control plane
// and the privileged Nitro Enclaves driver, without including implementation
// details. Separating the interface definitions from their implementations
// allows for:
//
//   - Clear separation of concerns
//   - Multiple implementations of the same interface
//   - Better testability through mock implementations
//   - Reduced coupling between components
//
// # Driver Capability Interface
//
//   - DriverOps: the narrow capability surface over the privileged device
//     (open, slot creation, memory region registration, release). The real
//     implementation issues raw ioctls; tests inject an in-memory mock that
//     enforces the same geometric invariants.
//
// # Type Definitions
//
//   - UserMemoryRegion: the fixed-shape memory registration request whose
//     layout mirrors the kernel ABI structure.
//
// # Error Types
//
// Standard errors surfaced by driver operations:
//
//   - ErrDeviceNotAvailable: the privileged device is absent or inaccessible
//   - ErrSlotAllocationFailed: the driver refused to allocate an enclave slot
//   - ErrRegionRejected: a memory region registration was refused
//
// Components should depend on DriverOps rather than a concrete driver, so
// that the validation and lifecycle logic can be exercised without the real
// device present.
package interfaces
