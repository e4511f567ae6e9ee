// Package audio converts between the PCM16 little-endian byte frames carried
// on the wire and the float32 sample buffers used by capture and playback
// code. Wire frames are base64 text inside JSON envelopes.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"math"
)

// ErrMalformedFrame reports a frame whose payload is not valid base64 or
// whose decoded byte length is not a whole number of PCM16 samples.
var ErrMalformedFrame = errors.New("malformed audio frame")

const bytesPerSample = 2

// EncodeTransport wraps raw PCM16 bytes for a JSON envelope.
func EncodeTransport(pcm []byte) string {
	return base64.StdEncoding.EncodeToString(pcm)
}

// DecodeTransport unwraps a JSON envelope payload back into raw PCM16 bytes.
// A payload that is not base64, or that decodes to an odd byte count, is
// malformed and must be dropped by the caller rather than forwarded.
func DecodeTransport(data string) ([]byte, error) {
	pcm, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, ErrMalformedFrame
	}
	if len(pcm)%bytesPerSample != 0 {
		return nil, ErrMalformedFrame
	}
	return pcm, nil
}

// Float32ToPCM16 quantizes normalized samples to little-endian PCM16.
// Samples outside [-1, 1] saturate instead of wrapping.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(math.Round(float64(s) * 32767))
		binary.LittleEndian.PutUint16(out[i*bytesPerSample:], uint16(v))
	}
	return out
}

// PCM16ToFloat32 expands little-endian PCM16 bytes to normalized samples.
func PCM16ToFloat32(pcm []byte) ([]float32, error) {
	if len(pcm)%bytesPerSample != 0 {
		return nil, ErrMalformedFrame
	}
	out := make([]float32, len(pcm)/bytesPerSample)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(pcm[i*bytesPerSample:]))
		out[i] = float32(v) / 32767
	}
	return out, nil
}

// EncodeFrame converts normalized samples straight to a wire payload.
func EncodeFrame(samples []float32) string {
	return EncodeTransport(Float32ToPCM16(samples))
}

// DecodeFrame converts a wire payload straight to normalized samples.
func DecodeFrame(data string) ([]float32, error) {
	pcm, err := DecodeTransport(data)
	if err != nil {
		return nil, err
	}
	return PCM16ToFloat32(pcm)
}
