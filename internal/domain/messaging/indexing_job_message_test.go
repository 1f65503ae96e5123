package messaging

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIndexingJobMessage(t *testing.T) {
	tenantID := uuid.New()
	fileID := uuid.New()

	msg := NewIndexingJobMessage(tenantID, fileID)

	require.NoError(t, msg.Validate())
	assert.Equal(t, tenantID, msg.TenantID)
	assert.Equal(t, fileID, msg.FileID)
	assert.NotEmpty(t, msg.EventID)
	assert.Empty(t, msg.RetryOrigin)

	// Each message gets its own event ID so the broker's dedup window
	// does not suppress an intentional retry of the same file.
	other := NewIndexingJobMessage(tenantID, fileID)
	assert.NotEqual(t, msg.EventID, other.EventID)
	assert.Equal(t, msg.DedupKey(), other.DedupKey())
}

func TestIndexingJobMessage_Validate(t *testing.T) {
	valid := NewIndexingJobMessage(uuid.New(), uuid.New())

	missingEvent := valid
	missingEvent.EventID = ""
	require.Error(t, missingEvent.Validate())

	missingTenant := valid
	missingTenant.TenantID = uuid.Nil
	require.Error(t, missingTenant.Validate())

	missingFile := valid
	missingFile.FileID = uuid.Nil
	require.Error(t, missingFile.Validate())
}

func TestIndexingJobMessage_DedupKey(t *testing.T) {
	tenantID := uuid.New()
	fileID := uuid.New()
	msg := NewIndexingJobMessage(tenantID, fileID)

	assert.Equal(t, tenantID.String()+"/"+fileID.String(), msg.DedupKey())
}
