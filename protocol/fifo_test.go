package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFIFOWriteDiscard(t *testing.T) {
	f := NewFIFO(8)
	assert.Equal(t, 5, f.Write([]byte("hello")))
	assert.Equal(t, 3, f.Free())
	assert.Equal(t, 3, f.Write([]byte("world")), "truncated at capacity")
	assert.Equal(t, []byte("hellowor"), f.Bytes())

	f.Discard(5)
	assert.Equal(t, []byte("wor"), f.Bytes())
	assert.Equal(t, 5, f.Free())
}

func TestFIFOCompacts(t *testing.T) {
	f := NewFIFO(6)
	f.Write([]byte("abcdef"))
	f.Discard(4)
	assert.Equal(t, 4, f.Write([]byte("ghij")))
	assert.Equal(t, []byte("efghij"), f.Bytes(), "contiguous after compaction")
}

func TestFIFODiscardAll(t *testing.T) {
	f := NewFIFO(4)
	f.Write([]byte("ab"))
	f.Discard(10)
	assert.Zero(t, f.Len())
	assert.Equal(t, 4, f.Free())
	f.Write([]byte("c"))
	f.Reset()
	assert.Empty(t, f.Bytes())
}
