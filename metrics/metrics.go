// Package metrics exposes Prometheus counters for enclave lifecycle events
// and a small HTTP server publishing them, used by the daemon binaries.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EnclavesCreated counts successfully allocated enclave slots.
	EnclavesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nitro_enclaves_created_total",
		Help: "Number of enclave slots allocated through the driver.",
	})

	// EnclavesReleased counts successfully released enclave slots.
	EnclavesReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nitro_enclaves_released_total",
		Help: "Number of enclave slots released back to the driver.",
	})

	// MemoryRegionsRegistered counts memory regions accepted by the driver.
	MemoryRegionsRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nitro_enclave_memory_regions_registered_total",
		Help: "Number of memory regions registered with enclave slots.",
	})

	// MemoryRegionFailures counts rejected memory region registrations.
	MemoryRegionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nitro_enclave_memory_region_failures_total",
		Help: "Number of memory region registrations rejected before or by the driver.",
	})

	// SocketWatchEvents counts filesystem events observed on control
	// sockets.
	SocketWatchEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nitro_enclave_socket_watch_events_total",
		Help: "Number of filesystem events observed on control socket paths.",
	})

	// SocketExternalRemovals counts external control socket deletions. The
	// process terminates right after incrementing, so a supervising scraper
	// will usually see this through the exit status instead.
	SocketExternalRemovals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nitro_enclave_socket_external_removals_total",
		Help: "Number of control sockets deleted by an external actor.",
	})
)
