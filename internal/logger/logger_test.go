package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateForLog(t *testing.T) {
	assert.Equal(t, "", TruncateForLog("abc", 0))
	assert.Equal(t, "abc", TruncateForLog("  abc  ", 5))
	assert.Equal(t, "héll...", TruncateForLog("héllo world", 4))
}

func TestNew(t *testing.T) {
	l, err := New(true, true)
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.NotNil(t, OrNop(nil))
}
