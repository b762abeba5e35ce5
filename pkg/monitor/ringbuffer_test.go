package monitor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingBuffer_CapsAtCapacity(t *testing.T) {
	r := newRingBuffer(3)
	for i := 0; i < 5; i++ {
		r.add(fmt.Sprintf("line-%d", i))
	}
	assert.Equal(t, []string{"line-2", "line-3", "line-4"}, r.snapshot())
}

func TestRingBuffer_SnapshotIsACopy(t *testing.T) {
	r := newRingBuffer(3)
	r.add("a")
	snap := r.snapshot()
	r.add("b")
	assert.Equal(t, []string{"a"}, snap)
}

func TestRingBuffer_Reset(t *testing.T) {
	r := newRingBuffer(3)
	r.add("a")
	r.reset()
	assert.Empty(t, r.snapshot())
}
