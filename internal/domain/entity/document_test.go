package entity

import (
	"testing"

	"docindex/internal/domain/valueobject"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDocument(t *testing.T) *Document {
	t.Helper()
	return NewDocument(uuid.New(), uuid.New(), "report.txt", "text/plain", 2048)
}

func TestNewDocument(t *testing.T) {
	doc := newTestDocument(t)

	assert.NotEqual(t, uuid.Nil, doc.ID())
	assert.Equal(t, valueobject.FileStatusPending, doc.Status())
	assert.Equal(t, 0, doc.ChunkCount())
	assert.Nil(t, doc.ErrorMessage())
	assert.Nil(t, doc.StartedAt())
	assert.Nil(t, doc.CompletedAt())
	assert.False(t, doc.IsDeleted())
}

func TestDocument_SuccessfulRun(t *testing.T) {
	doc := newTestDocument(t)

	require.NoError(t, doc.StartProcessing())
	assert.Equal(t, valueobject.FileStatusProcessing, doc.Status())
	assert.NotNil(t, doc.StartedAt())

	require.NoError(t, doc.Complete(17))
	assert.Equal(t, valueobject.FileStatusCompleted, doc.Status())
	assert.Equal(t, 17, doc.ChunkCount())
	assert.NotNil(t, doc.CompletedAt())
	assert.Nil(t, doc.ErrorMessage())
}

func TestDocument_FailedRunPreservesCause(t *testing.T) {
	doc := newTestDocument(t)

	require.NoError(t, doc.StartProcessing())
	require.NoError(t, doc.Fail("embedding provider quota exceeded"))

	assert.Equal(t, valueobject.FileStatusFailed, doc.Status())
	require.NotNil(t, doc.ErrorMessage())
	assert.Equal(t, "embedding provider quota exceeded", *doc.ErrorMessage())
	assert.NotNil(t, doc.CompletedAt())
}

func TestDocument_RetryAfterFailure(t *testing.T) {
	doc := newTestDocument(t)

	require.NoError(t, doc.StartProcessing())
	require.NoError(t, doc.Fail("transient network error"))
	require.NoError(t, doc.MarkRetrying())
	assert.Equal(t, valueobject.FileStatusRetrying, doc.Status())

	// A fresh processing run clears the previous failure.
	require.NoError(t, doc.StartProcessing())
	assert.Nil(t, doc.ErrorMessage())
	assert.Nil(t, doc.CompletedAt())

	require.NoError(t, doc.Complete(9))
	assert.Equal(t, 9, doc.ChunkCount())
}

func TestDocument_StuckProcessingCanBeForcedToRetry(t *testing.T) {
	doc := newTestDocument(t)

	require.NoError(t, doc.StartProcessing())
	require.NoError(t, doc.MarkRetrying())
	assert.Equal(t, valueobject.FileStatusRetrying, doc.Status())
}

func TestDocument_IllegalTransitions(t *testing.T) {
	doc := newTestDocument(t)

	err := doc.Complete(5)
	require.Error(t, err)
	var transitionErr *InvalidStatusTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, valueobject.FileStatusPending, transitionErr.From)
	assert.Equal(t, valueobject.FileStatusCompleted, transitionErr.To)

	require.NoError(t, doc.StartProcessing())
	require.NoError(t, doc.Complete(5))

	// COMPLETED is terminal.
	require.Error(t, doc.StartProcessing())
	require.Error(t, doc.Fail("boom"))
	require.Error(t, doc.MarkRetrying())
	assert.Equal(t, 5, doc.ChunkCount())
}

func TestDocument_SoftDelete(t *testing.T) {
	doc := newTestDocument(t)

	doc.SoftDelete()
	assert.True(t, doc.IsDeleted())
	assert.NotNil(t, doc.DeletedAt())
}

func TestRestoreDocument(t *testing.T) {
	id := uuid.New()
	tenantID := uuid.New()
	msg := "previous failure"
	original := NewDocument(tenantID, uuid.New(), "notes.md", "text/markdown", 512)

	restored := RestoreDocument(
		id,
		tenantID,
		original.ProjectID(),
		original.Name(),
		original.MimeType(),
		original.SizeBytes(),
		valueobject.FileStatusFailed,
		3,
		&msg,
		original.UploadedAt(),
		nil,
		nil,
		original.UpdatedAt(),
		nil,
	)

	assert.Equal(t, id, restored.ID())
	assert.Equal(t, valueobject.FileStatusFailed, restored.Status())
	assert.Equal(t, 3, restored.ChunkCount())
	require.NotNil(t, restored.ErrorMessage())
	assert.Equal(t, msg, *restored.ErrorMessage())

	// A restored FAILED document resumes the normal retry path.
	require.NoError(t, restored.MarkRetrying())
	require.NoError(t, restored.StartProcessing())
}
