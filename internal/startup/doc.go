// Package startup handles daemon initialization: environment-driven
// configuration, the startup banner and system information logging, state
// directory setup, the optional YAML volume bootstrap file, and structured
// logging of the initialization and shutdown sequences.
package startup
