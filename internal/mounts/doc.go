// Package mounts probes whether volume mount paths are currently accessible.
package mounts
