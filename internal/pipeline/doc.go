// Package pipeline converts scan candidates into search documents. It
// resolves the content adapter for each file's document type, applies the
// optional translation step, and upserts the resulting document into the
// search backend under the volume's index.
package pipeline
