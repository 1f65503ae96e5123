// Package main serves as the entry point for the docindex application.
// It provides a multi-tenant system for indexing uploaded documents,
// generating embeddings, and keeping the metadata store and the vector
// index consistent.
package main

import "docindex/cmd"

func main() {
	cmd.Execute()
}
