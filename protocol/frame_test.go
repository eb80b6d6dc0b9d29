package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFrame(t *testing.T, seq uint8, payload []byte) []byte {
	t.Helper()
	b, err := AppendFrame(nil, seq, payload)
	require.NoError(t, err)
	return b
}

func TestAppendFrameLayout(t *testing.T) {
	b := mustFrame(t, 0x13, []byte{0x01, 0x02})
	require.Len(t, b, 7)
	assert.Equal(t, byte(7), b[0])
	assert.Equal(t, byte(0x13), b[1])
	crc := CRC16(b[:4])
	assert.Equal(t, byte(crc>>8), b[4])
	assert.Equal(t, byte(crc), b[5])
	assert.Equal(t, byte(SyncByte), b[6])

	_, err := AppendFrame(nil, SeqDest, make([]byte, MaxPayload+1))
	assert.ErrorIs(t, err, ErrFrameTooLong)
}

func TestDeframerSplitInput(t *testing.T) {
	d := NewDeframer(128)
	b := mustFrame(t, 0x11, []byte{9, 8, 7})
	d.Write(b[:3])
	_, ok := d.Next()
	assert.False(t, ok)
	d.Write(b[3:])
	f, ok := d.Next()
	require.True(t, ok)
	assert.Equal(t, uint8(0x11), f.Seq)
	assert.Equal(t, []byte{9, 8, 7}, f.Payload)
}

func TestDeframerSkipsGarbage(t *testing.T) {
	d := NewDeframer(256)
	bad := mustFrame(t, 0x12, []byte{1})
	bad[2] ^= 0xFF // corrupt payload, CRC no longer matches

	var stream []byte
	stream = append(stream, 0x33, 0x00, SyncByte)
	stream = append(stream, bad...)
	stream = append(stream, mustFrame(t, 0x14, []byte{42})...)
	stream = append(stream, mustFrame(t, 0x15, nil)...)
	d.Write(stream)

	f, ok := d.Next()
	require.True(t, ok)
	assert.Equal(t, uint8(0x14), f.Seq)
	assert.Equal(t, []byte{42}, f.Payload)

	f, ok = d.Next()
	require.True(t, ok)
	assert.True(t, f.IsAck())

	_, ok = d.Next()
	assert.False(t, ok)
	assert.Equal(t, uint32(1), d.CRCErrors())
	assert.GreaterOrEqual(t, d.Resyncs(), uint32(2))
}

func TestNextSeqWraps(t *testing.T) {
	assert.Equal(t, uint8(0x11), NextSeq(0x10))
	assert.Equal(t, uint8(0x10), NextSeq(0x1F))
}
