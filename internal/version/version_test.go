package version

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_Defaults(t *testing.T) {
	SetBuildVars("", "", "")
	t.Cleanup(func() { SetBuildVars("", "", "") })

	info := Get()
	assert.Equal(t, DefaultVersion, info.Version)
	assert.Equal(t, DefaultCommit, info.Commit)
	assert.Equal(t, DefaultBuildTime, info.BuildTime)
	assert.True(t, info.IsDevelopment())
}

func TestGet_InjectedValues(t *testing.T) {
	SetBuildVars("v1.2.3", "abc123", "2026-01-01T00:00:00Z")
	t.Cleanup(func() { SetBuildVars("", "", "") })

	info := Get()
	assert.Equal(t, "v1.2.3", info.Version)
	assert.False(t, info.IsDevelopment())
}

func TestWrite_ShortAndFull(t *testing.T) {
	SetBuildVars("v1.2.3", "abc123", "2026-01-01T00:00:00Z")
	t.Cleanup(func() { SetBuildVars("", "", "") })

	var short bytes.Buffer
	require.NoError(t, Get().Write(&short, true))
	assert.Equal(t, "v1.2.3\n", short.String())

	var full bytes.Buffer
	require.NoError(t, Get().Write(&full, false))
	assert.Contains(t, full.String(), ApplicationName)
	assert.Contains(t, full.String(), "Commit: abc123")
}
