package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabel(t *testing.T) {
	assert.Equal(t, "Input Berkas", Label("1"))
	assert.Equal(t, "Sdh di TTD - Pertek", Label("22"))
	assert.Equal(t, "Usulan Dihapus", Label("99"))
}

func TestLabelUnknownFallsBackToCode(t *testing.T) {
	assert.Equal(t, "54", Label("54"))
	assert.Equal(t, "", Label(""))
	assert.Equal(t, "abc", Label("abc"))
}

func TestKnown(t *testing.T) {
	assert.True(t, Known("1"))
	assert.True(t, Known("76"))
	assert.False(t, Known("54"))
	assert.False(t, Known("77"))
	assert.False(t, Known(""))
}
