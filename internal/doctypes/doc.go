// Package doctypes classifies files into indexable document types by
// extension, with content sniffing as a fallback.
package doctypes
