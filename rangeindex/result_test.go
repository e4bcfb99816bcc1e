package rangeindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultResizeZeroesBits(t *testing.T) {
	r := NewResult()
	r.Resize(0, 127)
	assert.Equal(t, int64(128), r.Size())
	for v := DocId(0); v < 128; v++ {
		assert.False(t, r.Test(v))
	}
}

func TestResultSetRangeAndTest(t *testing.T) {
	r := NewResult()
	r.Resize(0, 127)
	r.SetRange(5)
	r.SetRange(100)

	assert.True(t, r.Test(5))
	assert.True(t, r.Test(100))
	assert.False(t, r.Test(6))
}

func TestResultOrWordsAtOffset(t *testing.T) {
	r := NewResult()
	r.Resize(0, 191) // 3 words

	src := []uint64{0b101, 0, 0}
	r.orWords(src, 64) // src covers [64,191], word offset 1 into r

	assert.True(t, r.Test(64))
	assert.True(t, r.Test(66))
	assert.False(t, r.Test(65))
}

func TestResultAndWordsClipsOutsideSrcSpan(t *testing.T) {
	r := NewResult()
	r.Resize(0, 127)
	r.SetRange(0)
	r.SetRange(70)

	// src only spans the first word; the second word of r must be zeroed.
	src := []uint64{^uint64(0)}
	r.andWords(src, 0, 63)

	assert.True(t, r.Test(0))
	assert.False(t, r.Test(70))
}
