package valueobject

import "fmt"

// FileStatus represents the processing status of an uploaded file.
type FileStatus string

// File status constants.
const (
	FileStatusPending    FileStatus = "PENDING"
	FileStatusProcessing FileStatus = "PROCESSING"
	FileStatusCompleted  FileStatus = "COMPLETED"
	FileStatusFailed     FileStatus = "FAILED"
	FileStatusRetrying   FileStatus = "RETRYING"
)

// validFileStatuses contains all valid file statuses.
var validFileStatuses = map[FileStatus]bool{
	FileStatusPending:    true,
	FileStatusProcessing: true,
	FileStatusCompleted:  true,
	FileStatusFailed:     true,
	FileStatusRetrying:   true,
}

// NewFileStatus creates a new FileStatus with validation.
func NewFileStatus(status string) (FileStatus, error) {
	s := FileStatus(status)
	if !validFileStatuses[s] {
		return "", fmt.Errorf("invalid file status: %s", status)
	}
	return s, nil
}

// String returns the string representation of the status.
func (s FileStatus) String() string {
	return string(s)
}

// IsTerminal returns true if this status represents a settled state.
// FAILED is settled but re-enterable through an explicit retry, which
// moves the file to RETRYING before processing resumes.
func (s FileStatus) IsTerminal() bool {
	return s == FileStatusCompleted || s == FileStatusFailed
}

// CanTransitionTo returns true if the status can transition to the target status.
// PROCESSING -> RETRYING covers forced retries of files stuck in PROCESSING.
func (s FileStatus) CanTransitionTo(target FileStatus) bool {
	transitions := map[FileStatus][]FileStatus{
		FileStatusPending: {
			FileStatusProcessing,
		},
		FileStatusProcessing: {
			FileStatusCompleted,
			FileStatusFailed,
			FileStatusRetrying,
		},
		FileStatusFailed: {
			FileStatusRetrying,
		},
		FileStatusRetrying: {
			FileStatusProcessing,
		},
		FileStatusCompleted: {},
	}

	validTransitions, exists := transitions[s]
	if !exists {
		return false
	}

	for _, validTarget := range validTransitions {
		if target == validTarget {
			return true
		}
	}
	return false
}

// AllFileStatuses returns all valid file statuses.
func AllFileStatuses() []FileStatus {
	statuses := make([]FileStatus, 0, len(validFileStatuses))
	for status := range validFileStatuses {
		statuses = append(statuses, status)
	}
	return statuses
}
