package tts

import (
	"encoding/binary"
	"errors"
	"time"
)

var errNotWAV = errors.New("not a RIFF/WAVE stream")

// ProbeWAVDuration walks the RIFF chunk list of a WAV byte stream and
// computes the playable duration from the fmt byte rate and the data
// chunk size. It returns an error for truncated or non-WAV input.
func ProbeWAVDuration(data []byte) (time.Duration, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, errNotWAV
	}

	var byteRate uint32
	var dataSize uint32
	haveFmt := false
	haveData := false

	pos := 12
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		body := pos + 8

		switch chunkID {
		case "fmt ":
			if body+16 > len(data) {
				return 0, errors.New("truncated fmt chunk")
			}
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
			haveFmt = true
		case "data":
			dataSize = chunkSize
			if body+int(chunkSize) > len(data) {
				// Header promises more samples than are present; trust the bytes.
				dataSize = uint32(len(data) - body)
			}
			haveData = true
		}

		if haveFmt && haveData {
			break
		}

		// Chunks are word-aligned
		pos = body + int(chunkSize)
		if chunkSize%2 == 1 {
			pos++
		}
	}

	if !haveFmt || !haveData {
		return 0, errors.New("missing fmt or data chunk")
	}
	if byteRate == 0 {
		return 0, errors.New("fmt chunk has zero byte rate")
	}

	seconds := float64(dataSize) / float64(byteRate)
	return time.Duration(seconds * float64(time.Second)), nil
}
