// Package resourcemanager owns the hardware resources backing an enclave: a
// descriptor to the privileged driver, the enclave slot minted from it, and
// the huge-page memory regions registered with that slot.
//
// Validation happens before any privileged call is issued: region sizes must
// be positive multiples of the huge page size and addresses must be
// huge-page aligned. Duplicate registrations are the driver's call to reject
// and are surfaced faithfully rather than filtered here.
//
// Ownership rules are strict. An EnclaveInstance releases its descriptor
// exactly once; a strictly negative descriptor means no resource is owned
// and release is a no-op. Once a MemoryRegion is registered with a slot, its
// memory logically belongs to the enclave for the rest of the instance's
// life and must not be freed or reused independently.
package resourcemanager
