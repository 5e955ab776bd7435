package audio

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/zaf/g711"
)

// WAV format tags we can read without ffmpeg.
const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
	wavFormatALaw  = 6
	wavFormatMuLaw = 7
)

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WAVE"
}

// DecodeWAV reads a WAV container into mono float32 samples in [-1, 1].
// Multi-channel audio is averaged to mono. PCM integer samples are
// normalized to floating point; A-law and mu-law payloads are expanded
// through the G.711 codec first.
func DecodeWAV(data []byte) ([]float32, int, error) {
	if !IsWAV(data) {
		return nil, 0, fmt.Errorf("%w: missing RIFF/WAVE header", ErrDecode)
	}

	var (
		formatTag     uint16
		channels      int
		sampleRate    int
		bitsPerSample int
		payload       []byte
		haveFmt       bool
	)

	// Walk the RIFF chunks; only fmt and data matter here.
	pos := 12
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+chunkSize > len(data) {
			chunkSize = len(data) - body
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, 0, fmt.Errorf("%w: short fmt chunk", ErrDecode)
			}
			formatTag = binary.LittleEndian.Uint16(data[body : body+2])
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			payload = data[body : body+chunkSize]
		}

		// Chunks are word-aligned
		pos = body + chunkSize
		if chunkSize%2 == 1 {
			pos++
		}
	}

	if !haveFmt || payload == nil {
		return nil, 0, fmt.Errorf("%w: missing fmt or data chunk", ErrDecode)
	}
	if channels < 1 || sampleRate <= 0 {
		return nil, 0, fmt.Errorf("%w: invalid fmt chunk (channels=%d rate=%d)", ErrDecode, channels, sampleRate)
	}

	// G.711 payloads expand to 16-bit linear PCM first
	switch formatTag {
	case wavFormatMuLaw:
		payload = g711.DecodeUlaw(payload)
		formatTag = wavFormatPCM
		bitsPerSample = 16
	case wavFormatALaw:
		payload = g711.DecodeAlaw(payload)
		formatTag = wavFormatPCM
		bitsPerSample = 16
	}

	interleaved, err := samplesFromPCM(payload, formatTag, bitsPerSample)
	if err != nil {
		return nil, 0, err
	}

	return mixToMono(interleaved, channels), sampleRate, nil
}

// samplesFromPCM converts raw sample bytes to float32 in [-1, 1].
func samplesFromPCM(payload []byte, formatTag uint16, bitsPerSample int) ([]float32, error) {
	switch {
	case formatTag == wavFormatPCM && bitsPerSample == 16:
		samples := make([]float32, len(payload)/2)
		for i := range samples {
			s := int16(binary.LittleEndian.Uint16(payload[i*2 : i*2+2]))
			samples[i] = float32(s) / 32768.0
		}
		return samples, nil

	case formatTag == wavFormatPCM && bitsPerSample == 8:
		// 8-bit WAV is unsigned
		samples := make([]float32, len(payload))
		for i, b := range payload {
			samples[i] = (float32(b) - 128.0) / 128.0
		}
		return samples, nil

	case formatTag == wavFormatPCM && bitsPerSample == 32:
		samples := make([]float32, len(payload)/4)
		for i := range samples {
			s := int32(binary.LittleEndian.Uint32(payload[i*4 : i*4+4]))
			samples[i] = float32(float64(s) / 2147483648.0)
		}
		return samples, nil

	case formatTag == wavFormatFloat && bitsPerSample == 32:
		samples := make([]float32, len(payload)/4)
		for i := range samples {
			bits := binary.LittleEndian.Uint32(payload[i*4 : i*4+4])
			samples[i] = math.Float32frombits(bits)
		}
		return samples, nil

	default:
		return nil, fmt.Errorf("%w: format tag %d with %d bits", ErrDecode, formatTag, bitsPerSample)
	}
}

// mixToMono averages interleaved channels into one.
func mixToMono(interleaved []float32, channels int) []float32 {
	if channels == 1 {
		return interleaved
	}
	mono := make([]float32, len(interleaved)/channels)
	for i := range mono {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// EncodeWAV writes mono float32 samples as a 16-bit PCM WAV container.
// This is the canonical representation handed to the network STT engines.
func EncodeWAV(samples []float32, sampleRate int) []byte {
	dataSize := len(samples) * 2
	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2)) // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], 2)                    // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16)                   // bits per sample

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		binary.LittleEndian.PutUint16(buf[44+i*2:46+i*2], uint16(int16(s*32767.0)))
	}

	return buf
}

// wavDuration computes duration from header math alone. Returns false for
// anything the direct reader cannot parse.
func wavDuration(data []byte) (float64, bool) {
	samples, rate, err := DecodeWAV(data)
	if err != nil || rate == 0 {
		return 0, false
	}
	return float64(len(samples)) / float64(rate), true
}
