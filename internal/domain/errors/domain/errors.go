// Package domain provides domain-specific error definitions and utilities.
package domain

import "errors"

// File-related errors.
var (
	ErrFileNotFound      = errors.New("file not found")
	ErrFileDeleted       = errors.New("file has been deleted")
	ErrFileProcessing    = errors.New("file is currently being processed")
	ErrEmptyFileContent  = errors.New("file content is empty")
	ErrNoTextExtracted   = errors.New("no text could be extracted from file")
	ErrEmbeddingNotFound = errors.New("embedding record not found")
)

// Tenant-related errors.
var (
	ErrTenantNotFound  = errors.New("tenant not found")
	ErrProjectNotFound = errors.New("project not found")
)

// Chunking parameter errors. These are programmer errors and fail fast.
var (
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
	ErrInvalidOverlap   = errors.New("overlap must be non-negative and smaller than chunk size")
)

// General domain errors.
var (
	ErrInvalidInput = errors.New("invalid input")
)
