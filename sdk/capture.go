package sdk

import (
	"fmt"

	"github.com/gen2brain/malgo"

	"github.com/navigo-ai/voicegate/pkg/gateway/live/protocol"
)

// Capture reads 16 kHz mono PCM16 from the default microphone.
type Capture struct {
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	buf      *pcmBuffer
}

// NewCapture opens the default capture device at the gateway's inbound audio
// shape. Call Close to release the device.
func NewCapture() (*Capture, error) {
	ctxConfig := malgo.ContextConfig{}
	ctxConfig.ThreadPriority = malgo.ThreadPriorityRealtime

	malgoCtx, err := malgo.InitContext(nil, ctxConfig, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	c := &Capture{
		malgoCtx: malgoCtx,
		buf:      newPCMBuffer(protocol.InputSampleRateHz * 2),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = protocol.Channels
	deviceConfig.SampleRate = protocol.InputSampleRateHz
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInputSamples []byte, _ uint32) {
			c.buf.Append(pInputSamples)
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = malgoCtx.Uninit()
		return nil, fmt.Errorf("init microphone: %w", err)
	}
	c.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = malgoCtx.Uninit()
		return nil, fmt.Errorf("start microphone: %w", err)
	}

	return c, nil
}

// Read blocks until microphone data is available. Returns io.EOF after Close.
func (c *Capture) Read(p []byte) (int, error) {
	return c.buf.Read(p)
}

func (c *Capture) Close() {
	if c.device != nil {
		c.device.Stop()
		c.device.Uninit()
		c.device = nil
	}
	if c.malgoCtx != nil {
		_ = c.malgoCtx.Uninit()
		c.malgoCtx = nil
	}
	c.buf.Close()
}
