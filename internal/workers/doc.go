// Package workers sizes worker pools based on available CPU.
package workers
