//go:build sdl2

package hostglue

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/kestrel-systems/psxcore/psx/gpu"
	"github.com/veandco/go-sdl2/sdl"
)

// SDL2Backend presents the GPU's VRAM snapshot as a window texture and
// queues SPU samples to an SDL audio device on each Update, grounded on
// go-jeebie's backend/sdl2.go SDL2Backend: an SDL window/renderer/texture
// triple, generalized from the Game Boy's fixed 160x144 framebuffer to the
// PS1's 1024x512 VRAM plane (displayed 1:1, letting the OS window manager
// scale/crop to the active display area).
type SDL2Backend struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
	running  bool

	audioDevice sdl.AudioDeviceID
	sampleFn    func(n int) []int16
}

// NewSDL2Backend constructs an uninitialized SDL2 backend. sampleFn is
// called from Update to drain interleaved stereo PCM (typically
// spu.SPU.GetSamples), which is then queued to the audio device.
func NewSDL2Backend(sampleFn func(n int) []int16) *SDL2Backend {
	return &SDL2Backend{sampleFn: sampleFn}
}

// Init implements Backend.
func (s *SDL2Backend) Init(config Config) error {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_AUDIO | sdl.INIT_EVENTS); err != nil {
		return fmt.Errorf("hostglue: sdl2 init: %w", err)
	}

	window, err := sdl.CreateWindow(
		config.Title,
		sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		gpu.VRAMWidth, gpu.VRAMHeight,
		sdl.WINDOW_SHOWN,
	)
	if err != nil {
		sdl.Quit()
		return fmt.Errorf("hostglue: create window: %w", err)
	}
	s.window = window

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		window.Destroy()
		sdl.Quit()
		return fmt.Errorf("hostglue: create renderer: %w", err)
	}
	s.renderer = renderer

	texture, err := renderer.CreateTexture(sdl.PIXELFORMAT_ABGR1555, sdl.TEXTUREACCESS_STREAMING, gpu.VRAMWidth, gpu.VRAMHeight)
	if err != nil {
		renderer.Destroy()
		window.Destroy()
		sdl.Quit()
		return fmt.Errorf("hostglue: create texture: %w", err)
	}
	s.texture = texture

	if s.sampleFn != nil {
		if err := s.openAudio(); err != nil {
			slog.Warn("sdl2 audio unavailable", "err", err)
		}
	}

	s.running = true
	return nil
}

func (s *SDL2Backend) openAudio() error {
	spec := &sdl.AudioSpec{
		Freq:     44100,
		Format:   sdl.AUDIO_S16LSB,
		Channels: 2,
		Samples:  1024,
		Callback: sdl.AudioCallback(nil),
	}
	dev, err := sdl.OpenAudioDevice("", false, spec, nil, 0)
	if err != nil {
		return err
	}
	s.audioDevice = dev
	sdl.PauseAudioDevice(dev, false)
	return nil
}

// Update implements Backend.
func (s *SDL2Backend) Update(frame *Frame) ([]InputEvent, error) {
	if !s.running {
		return nil, nil
	}

	var events []InputEvent
	for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
		switch e := ev.(type) {
		case *sdl.QuitEvent:
			s.running = false
			events = append(events, InputEvent{Action: ActionQuit})
		case *sdl.KeyboardEvent:
			if e.Type == sdl.KEYDOWN && e.Keysym.Sym == sdl.K_ESCAPE {
				s.running = false
				events = append(events, InputEvent{Action: ActionQuit})
			}
		}
	}

	if s.audioDevice != 0 && s.sampleFn != nil {
		samples := s.sampleFn(4096)
		if len(samples) > 0 {
			sdl.QueueAudio(s.audioDevice, int16SliceToBytes(samples))
		}
	}

	s.renderFrame(frame)
	return events, nil
}

func (s *SDL2Backend) renderFrame(frame *Frame) {
	if len(frame.VRAM) != gpu.VRAMWidth*gpu.VRAMHeight {
		return
	}
	s.texture.Update(nil, unsafe.Pointer(&frame.VRAM[0]), gpu.VRAMWidth*2)
	s.renderer.Clear()
	s.renderer.Copy(s.texture, nil, nil)
	s.renderer.Present()
}

func int16SliceToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// Cleanup implements Backend.
func (s *SDL2Backend) Cleanup() error {
	if s.audioDevice != 0 {
		sdl.CloseAudioDevice(s.audioDevice)
	}
	if s.texture != nil {
		s.texture.Destroy()
	}
	if s.renderer != nil {
		s.renderer.Destroy()
	}
	if s.window != nil {
		s.window.Destroy()
	}
	sdl.Quit()
	return nil
}
