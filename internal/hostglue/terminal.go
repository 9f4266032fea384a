package hostglue

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/kestrel-systems/psxcore/psx/debug"
	"github.com/kestrel-systems/psxcore/psx/gpu"
)

const (
	minTermWidth  = 80
	minTermHeight = 24
	registerPaneH = 12
	vramDownsampleX = 4
	vramDownsampleY = 4
)

// TerminalBackend implements Backend using tcell, grounded on go-jeebie's
// jeebie/backend/terminal.Backend: a tcell.Screen owning a captured log
// buffer and a per-frame render pass split into borders/game-area/debug
// panes, adapted from the Game Boy's 160x144 four-shade framebuffer to a
// downsampled 1024x512 15-bit VRAM snapshot.
type TerminalBackend struct {
	screen    tcell.Screen
	running   bool
	logBuffer *LogBuffer
	config    Config
}

// NewTerminalBackend constructs an uninitialized terminal backend.
func NewTerminalBackend() *TerminalBackend {
	return &TerminalBackend{}
}

// Init implements Backend.
func (t *TerminalBackend) Init(config Config) error {
	t.config = config

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("hostglue: terminal init: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("hostglue: terminal init: %w", err)
	}
	t.screen = screen
	t.running = true

	t.logBuffer = NewLogBuffer(200)
	handler := NewLogBufferHandler(t.logBuffer, slog.LevelDebug)
	slog.SetDefault(slog.New(handler))

	t.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	t.screen.Clear()

	go t.handleSignals()

	return nil
}

func (t *TerminalBackend) handleSignals() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals
	t.running = false
}

// Update implements Backend.
func (t *TerminalBackend) Update(frame *Frame) ([]InputEvent, error) {
	var events []InputEvent

	for t.screen.HasPendingEvent() {
		switch ev := t.screen.PollEvent().(type) {
		case *tcell.EventKey:
			events = append(events, t.translateKey(ev)...)
		case *tcell.EventResize:
			t.screen.Sync()
		}
	}
	for _, e := range events {
		if e.Action == ActionQuit {
			t.running = false
		}
	}
	if !t.running {
		return events, nil
	}

	t.render(frame)
	t.screen.Show()

	return events, nil
}

func (t *TerminalBackend) translateKey(ev *tcell.EventKey) []InputEvent {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return []InputEvent{{Action: ActionQuit}}
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return []InputEvent{{Action: ActionQuit}}
		case ' ':
			return []InputEvent{{Action: ActionPauseToggle}}
		case 'n':
			return []InputEvent{{Action: ActionStepInstruction}}
		case 'f':
			return []InputEvent{{Action: ActionStepFrame}}
		case 'd':
			return []InputEvent{{Action: ActionDebugToggle}}
		}
	}
	return nil
}

// Cleanup implements Backend.
func (t *TerminalBackend) Cleanup() error {
	if t.screen != nil {
		t.screen.Fini()
	}
	return nil
}

func (t *TerminalBackend) render(frame *Frame) {
	termWidth, termHeight := t.screen.Size()
	if termWidth < minTermWidth || termHeight < minTermHeight {
		t.screen.Clear()
		msg := fmt.Sprintf("Terminal too small! Need at least %dx%d", minTermWidth, minTermHeight)
		style := tcell.StyleDefault.Foreground(tcell.ColorRed)
		for i, ch := range msg {
			t.screen.SetContent(i, termHeight/2, ch, nil, style)
		}
		return
	}

	t.screen.Clear()

	vramCols := (gpu.VRAMWidth / vramDownsampleX)
	dividerX := vramCols + 1
	if dividerX > termWidth-10 {
		dividerX = termWidth - 10
	}

	t.drawVRAM(frame, dividerX)
	t.drawDivider(dividerX, termHeight)

	rightX := dividerX + 2
	rightWidth := termWidth - rightX
	if t.config.ShowDebug && frame.Debug != nil {
		t.drawRegisters(rightX, 0, rightWidth, registerPaneH, frame.Debug)
		t.drawLogs(rightX, registerPaneH+1, rightWidth, termHeight-registerPaneH-1)
	} else {
		t.drawLogs(rightX, 0, rightWidth, termHeight)
	}
}

func (t *TerminalBackend) drawDivider(x, height int) {
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	for y := 0; y < height; y++ {
		t.screen.SetContent(x, y, '│', nil, style)
	}
}

// drawVRAM renders a downsampled view of the GPU's VRAM snapshot as
// half-block characters, two VRAM rows of the downsampled grid per
// terminal row, grounded on go-jeebie's terminal.Backend.drawGameBoy.
func (t *TerminalBackend) drawVRAM(frame *Frame, maxCols int) {
	if len(frame.VRAM) == 0 {
		return
	}
	cols := gpu.VRAMWidth / vramDownsampleX
	if cols > maxCols {
		cols = maxCols
	}
	rows := gpu.VRAMHeight / vramDownsampleY

	for row := 0; row < rows; row += 2 {
		for col := 0; col < cols; col++ {
			top := t.sampleVRAM(frame.VRAM, col, row)
			bottom := uint16(0)
			if row+1 < rows {
				bottom = t.sampleVRAM(frame.VRAM, col, row+1)
			}

			topColor, topShade := PixelToColor(top)
			bottomColor, bottomShade := PixelToColor(bottom)

			ch := ShadeChar(topShade, bottomShade)
			style := tcell.StyleDefault.Foreground(topColor).Background(bottomColor)
			t.screen.SetContent(col, row/2, ch, nil, style)
		}
	}
}

// drawLogs renders the most recent captured log lines, grounded on
// go-jeebie's terminal.Backend.drawLogs.
func (t *TerminalBackend) drawLogs(x, y, width, height int) {
	if t.logBuffer == nil || width <= 0 || height <= 0 {
		return
	}
	entries := t.logBuffer.GetRecent(height)

	debugStyle := tcell.StyleDefault.Foreground(tcell.ColorGray)
	infoStyle := tcell.StyleDefault.Foreground(tcell.ColorBlue)
	warnStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	errStyle := tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)

	for i, entry := range entries {
		if i >= height {
			break
		}
		style := infoStyle
		switch entry.Level {
		case slog.LevelDebug:
			style = debugStyle
		case slog.LevelWarn:
			style = warnStyle
		case slog.LevelError:
			style = errStyle
		}
		line := entry.Message
		if len(line) > width {
			line = line[:width]
		}
		for j, ch := range line {
			if j >= width {
				break
			}
			t.screen.SetContent(x+j, y+i, ch, nil, style)
		}
	}
}

func (t *TerminalBackend) sampleVRAM(vram []uint16, col, row int) uint16 {
	x := col * vramDownsampleX
	y := row * vramDownsampleY
	idx := y*gpu.VRAMWidth + x
	if idx < 0 || idx >= len(vram) {
		return 0
	}
	return vram[idx]
}

func (t *TerminalBackend) drawRegisters(x, y, width, height int, snap *debug.Snapshot) {
	if width <= 0 || height <= 0 {
		return
	}
	lines := []string{
		fmt.Sprintf("PC: 0x%08X  Cycles: %d", snap.CPU.PC, snap.CPU.Cycles),
		fmt.Sprintf("HI: 0x%08X  LO: 0x%08X", snap.CPU.HI, snap.CPU.LO),
		fmt.Sprintf("SR: 0x%08X  Cause: 0x%08X", snap.CPU.Status, snap.CPU.Cause),
		fmt.Sprintf("Tris: %d (tex %d, semi %d)", snap.DrawList.TriangleCount, snap.DrawList.TexturedCount, snap.DrawList.SemiTransCount),
		fmt.Sprintf("CDROM stat: 0x%02X  irq: %02X/%02X", snap.CDROM.Status, snap.CDROM.IRQFlags, snap.CDROM.IRQEnable),
		fmt.Sprintf("LBA: %d  data: %d", snap.CDROM.CurrentLBA, snap.CDROM.DataFIFOLen),
		fmt.Sprintf("IMask: 0x%08X IStat: 0x%08X", snap.IMask, snap.IStat),
		fmt.Sprintf("Frame: %d", snap.FrameNum),
	}

	style := tcell.StyleDefault.Foreground(tcell.ColorBlue)
	for i, line := range lines {
		if y+i >= y+height {
			break
		}
		for j, ch := range line {
			if j >= width {
				break
			}
			t.screen.SetContent(x+j, y+i, ch, nil, style)
		}
	}
}
