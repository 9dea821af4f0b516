// Package audio generates the audio half of the sync test signal:
// a full-scale sawtooth made of an 8-bit counter shifted into the
// high byte of signed 16-bit little-endian mono samples.
package audio

import (
	"encoding/binary"

	"github.com/go-audio/audio"
)

// Period is the ramp length in samples.
const Period = 256

// sample returns the ramp value for a counter position.
func sample(counter uint8) int16 { return int16(uint16(counter) << 8) }

// Ramp fills buf with whole S16LE samples starting at counter and returns
// the counter for the next call. A trailing odd byte is left untouched.
func Ramp(buf []byte, counter uint8) uint8 {
	n := len(buf) / BytesPerSample
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(buf[i*BytesPerSample:], uint16(sample(counter)))
		counter++
	}
	return counter
}

// RampSamples is Ramp for already decoded samples.
func RampSamples(s []int16, counter uint8) uint8 {
	for i := range s {
		s[i] = sample(counter)
		counter++
	}
	return counter
}

// RampIntBuffer fills a go-audio buffer, every slot of Data gets one sample.
// The buffer format, if not set, becomes mono 16 bit.
func RampIntBuffer(buf *audio.IntBuffer, counter uint8) uint8 {
	if buf.SourceBitDepth == 0 {
		buf.SourceBitDepth = 16
	}
	if buf.Format == nil {
		buf.Format = &audio.Format{NumChannels: Channels}
	}
	for i := range buf.Data {
		buf.Data[i] = int(sample(counter))
		counter++
	}
	return counter
}

// Wraps returns how many times the ramp restarts from zero within the
// next n samples when starting at counter. The very first sample counts
// if counter is already at zero.
func Wraps(counter uint8, n int) int {
	if n <= 0 {
		return 0
	}
	first := (Period - int(counter)) % Period
	if first >= n {
		return 0
	}
	return 1 + (n-1-first)/Period
}
