package tts

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildWAV assembles a minimal PCM WAV stream for probing.
func buildWAV(byteRate uint32, dataLen int, truncate int) []byte {
	var buf []byte
	appendU32 := func(v uint32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		buf = append(buf, b[:]...)
	}

	buf = append(buf, "RIFF"...)
	appendU32(uint32(36 + dataLen))
	buf = append(buf, "WAVE"...)

	buf = append(buf, "fmt "...)
	appendU32(16)
	fmtBody := make([]byte, 16)
	binary.LittleEndian.PutUint16(fmtBody[0:2], 1)  // PCM
	binary.LittleEndian.PutUint16(fmtBody[2:4], 1)  // mono
	binary.LittleEndian.PutUint32(fmtBody[4:8], byteRate/2)
	binary.LittleEndian.PutUint32(fmtBody[8:12], byteRate)
	binary.LittleEndian.PutUint16(fmtBody[12:14], 2)
	binary.LittleEndian.PutUint16(fmtBody[14:16], 16)
	buf = append(buf, fmtBody...)

	buf = append(buf, "data"...)
	appendU32(uint32(dataLen))
	buf = append(buf, make([]byte, dataLen-truncate)...)

	return buf
}

func TestProbeWAVDuration(t *testing.T) {
	// 48000 bytes/s with 24000 bytes of samples is half a second.
	d, err := ProbeWAVDuration(buildWAV(48000, 24000, 0))
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, d)
}

func TestProbeWAVDurationTruncatedData(t *testing.T) {
	// Header promises 24000 bytes but only 12000 arrived.
	d, err := ProbeWAVDuration(buildWAV(48000, 24000, 12000))
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)
}

func TestProbeWAVDurationRejectsGarbage(t *testing.T) {
	_, err := ProbeWAVDuration([]byte("OggS this is not a wav"))
	assert.Error(t, err)

	_, err = ProbeWAVDuration(nil)
	assert.Error(t, err)
}

func TestProbeWAVDurationZeroByteRate(t *testing.T) {
	_, err := ProbeWAVDuration(buildWAV(0, 100, 0))
	assert.Error(t, err)
}

func TestProbeWAVDurationSkipsUnknownChunks(t *testing.T) {
	wav := buildWAV(48000, 24000, 0)

	// Splice a LIST chunk between the header and the fmt chunk.
	list := append([]byte("LIST"), 4, 0, 0, 0, 'I', 'N', 'F', 'O')
	spliced := append([]byte{}, wav[:12]...)
	spliced = append(spliced, list...)
	spliced = append(spliced, wav[12:]...)

	d, err := ProbeWAVDuration(spliced)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, d)
}
