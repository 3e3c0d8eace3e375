// Package search defines the search-backend side of the content/search
// pipeline contract, with an embedded Bleve implementation and an in-memory
// mock.
package search
