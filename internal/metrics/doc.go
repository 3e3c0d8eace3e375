// Package metrics defines the Prometheus collectors exported by the daemon
// under the cloud_indexer_ namespace.
package metrics
