// Package handlers implements the management API: volume registration and
// removal, enable/disable, on-demand scans, progress resets, and the
// health/version endpoints. Configuration errors are the only failures
// returned synchronously; operational errors surface through the volume
// listing per the propagation policy.
package handlers
