package sdk

import (
	"fmt"
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/navigo-ai/voicegate/pkg/gateway/live/protocol"
)

// Playback plays 24 kHz mono PCM16 through the default output device in
// strict arrival order. Flush drops everything queued, which is how a client
// honors an interruption notice.
type Playback struct {
	otoCtx *oto.Context
	buf    *pcmBuffer

	mu      sync.Mutex
	player  *oto.Player
	playing bool
	closed  bool
}

// NewPlayback opens the default output device at the gateway's outbound audio
// shape. Call Close to release it.
func NewPlayback() (*Playback, error) {
	// At 24kHz mono 16-bit: 4800 bytes is ~100ms. Small enough to keep
	// barge-in latency low, large enough to avoid glitches.
	opts := &oto.NewContextOptions{
		SampleRate:   protocol.OutputSampleRateHz,
		ChannelCount: protocol.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   4800,
	}
	otoCtx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	<-ready

	return &Playback{
		otoCtx: otoCtx,
		buf:    newPCMBuffer(protocol.OutputSampleRateHz * 4),
	}, nil
}

// Write queues one assistant audio chunk. The player starts on first write.
func (p *Playback) Write(pcm []byte) {
	p.buf.Append(pcm)

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing && !p.closed {
		p.playing = true
		p.player = p.otoCtx.NewPlayer(p)
		p.player.Play()
	}
}

// Read implements io.Reader for oto.Player. Returns silence while the queue
// is empty after Close so oto can drain gracefully.
func (p *Playback) Read(out []byte) (int, error) {
	n, err := p.buf.Read(out)
	if err == io.EOF {
		for i := range out {
			out[i] = 0
		}
		return len(out), nil
	}
	return n, err
}

// Flush discards queued audio and resets the device so stale assistant audio
// never plays over the user's next utterance.
func (p *Playback) Flush() {
	p.buf.Flush()

	p.mu.Lock()
	if p.player != nil && p.playing {
		p.playing = false
		player := p.player
		p.player = nil
		p.mu.Unlock()

		player.Pause()
		player.Reset()
		player.Close()
		return
	}
	p.mu.Unlock()
}

func (p *Playback) Close() {
	p.mu.Lock()
	p.closed = true
	player := p.player
	p.player = nil
	p.mu.Unlock()

	p.buf.Close()
	if player != nil {
		player.Close()
	}
}

// Pending reports how many queued bytes have not yet been handed to the
// device.
func (p *Playback) Pending() int {
	return p.buf.Len()
}
