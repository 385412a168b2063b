// Package nitrodev implements the interfaces.DriverOps capability over the
// Nitro Enclaves device at /dev/nitro_enclaves, issuing the slot creation
// and memory registration ioctls directly.
//
// The package also provides MockDriver, an in-memory implementation that
// enforces the same geometric invariants as the kernel driver (huge-page
// sizing and alignment, no duplicate or overlapping registrations) so the
// resource management logic can be tested on hosts without the device.
package nitrodev
