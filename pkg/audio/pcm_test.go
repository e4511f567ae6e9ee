package audio

import (
	"encoding/base64"
	"errors"
	"math"
	"testing"
)

func TestRoundTripWithinQuantizationStep(t *testing.T) {
	in := []float32{0, 0.25, -0.25, 0.5, -0.99, 1, -1, 0.123456}

	out, err := DecodeFrame(EncodeFrame(in))
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len=%d, want %d", len(out), len(in))
	}
	const step = 1.0 / 32767
	for i := range in {
		if diff := math.Abs(float64(in[i] - out[i])); diff > step {
			t.Fatalf("sample %d: in=%v out=%v diff=%v", i, in[i], out[i], diff)
		}
	}
}

func TestFloat32ToPCM16_Saturates(t *testing.T) {
	pcm := Float32ToPCM16([]float32{2.5, -3.0})
	samples, err := PCM16ToFloat32(pcm)
	if err != nil {
		t.Fatalf("PCM16ToFloat32() error = %v", err)
	}
	if samples[0] != 1 {
		t.Fatalf("positive overdrive = %v, want 1", samples[0])
	}
	if samples[1] != -1 {
		t.Fatalf("negative overdrive = %v, want -1", samples[1])
	}
}

func TestDecodeTransport_RejectsOddLength(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte{1, 2, 3})
	_, err := DecodeTransport(payload)
	if !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("err=%v, want ErrMalformedFrame", err)
	}
}

func TestDecodeTransport_RejectsBadBase64(t *testing.T) {
	_, err := DecodeTransport("not*base64*")
	if !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("err=%v, want ErrMalformedFrame", err)
	}
}

func TestDecodeTransport_EmptyFrame(t *testing.T) {
	pcm, err := DecodeTransport("")
	if err != nil {
		t.Fatalf("DecodeTransport() error = %v", err)
	}
	if len(pcm) != 0 {
		t.Fatalf("len=%d, want 0", len(pcm))
	}
}
