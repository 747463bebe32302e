package counter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePrefix(t *testing.T) {
	assert.Equal(t, "", normalizePrefix(""))
	assert.Equal(t, "streamhub:", normalizePrefix("streamhub"))
	assert.Equal(t, "streamhub:", normalizePrefix("streamhub:"))
}

func TestScriptEmbedded(t *testing.T) {
	assert.Contains(t, incrScriptSrc, "INCR")
	assert.Contains(t, incrScriptSrc, "PEXPIRE")
}
