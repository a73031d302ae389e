package notify

import (
	"bytes"
	"encoding/binary"
	"math"
	"sync"
)

const clipSampleRate = 22050

var (
	chimeOnce sync.Once
	chimeWAV  []byte
)

// ChimeWAV returns the two-tone chime as a 16-bit mono PCM WAV clip.
func ChimeWAV() []byte {
	chimeOnce.Do(func() {
		var samples []int16
		samples = appendTone(samples, 880, 0.15, 0.3)
		samples = appendTone(samples, 1320, 0.2, 0.3)
		chimeWAV = encodeWAV(samples, clipSampleRate)
	})
	return chimeWAV
}

func appendTone(dst []int16, freq, seconds, gain float64) []int16 {
	n := int(seconds * clipSampleRate)
	for i := 0; i < n; i++ {
		t := float64(i) / clipSampleRate
		// linear fade-out avoids a click at the end of each tone
		env := 1 - float64(i)/float64(n)
		v := math.Sin(2*math.Pi*freq*t) * gain * env
		dst = append(dst, int16(v*math.MaxInt16))
	}
	return dst
}

func encodeWAV(samples []int16, sampleRate int) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	dataSize := len(samples) * 2
	buf := bytes.NewBuffer(make([]byte, 0, 44+dataSize))

	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate*channels*bitsPerSample/8))
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels*bitsPerSample/8))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	_ = binary.Write(buf, binary.LittleEndian, samples)
	return buf.Bytes()
}
