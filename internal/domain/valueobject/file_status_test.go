package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileStatus(t *testing.T) {
	for _, s := range []string{"PENDING", "PROCESSING", "COMPLETED", "FAILED", "RETRYING"} {
		status, err := NewFileStatus(s)
		require.NoError(t, err)
		assert.Equal(t, s, status.String())
	}

	_, err := NewFileStatus("INDEXED")
	require.Error(t, err)

	_, err = NewFileStatus("pending")
	require.Error(t, err, "status values are case sensitive")
}

func TestFileStatus_CanTransitionTo(t *testing.T) {
	allowed := []struct {
		from FileStatus
		to   FileStatus
	}{
		{FileStatusPending, FileStatusProcessing},
		{FileStatusProcessing, FileStatusCompleted},
		{FileStatusProcessing, FileStatusFailed},
		{FileStatusProcessing, FileStatusRetrying},
		{FileStatusFailed, FileStatusRetrying},
		{FileStatusRetrying, FileStatusProcessing},
	}

	allowedSet := make(map[[2]FileStatus]bool)
	for _, tr := range allowed {
		allowedSet[[2]FileStatus{tr.from, tr.to}] = true
	}

	for _, from := range AllFileStatuses() {
		for _, to := range AllFileStatuses() {
			want := allowedSet[[2]FileStatus{from, to}]
			assert.Equal(t, want, from.CanTransitionTo(to),
				"transition %s -> %s", from, to)
		}
	}
}

func TestFileStatus_CompletedIsTerminal(t *testing.T) {
	for _, to := range AllFileStatuses() {
		assert.False(t, FileStatusCompleted.CanTransitionTo(to),
			"COMPLETED must not transition to %s", to)
	}
}

func TestFileStatus_IsTerminal(t *testing.T) {
	assert.True(t, FileStatusCompleted.IsTerminal())
	assert.True(t, FileStatusFailed.IsTerminal())
	assert.False(t, FileStatusPending.IsTerminal())
	assert.False(t, FileStatusProcessing.IsTerminal())
	assert.False(t, FileStatusRetrying.IsTerminal())
}
