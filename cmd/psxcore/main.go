package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/kestrel-systems/psxcore/internal/hostglue"
	"github.com/kestrel-systems/psxcore/psx"
	"github.com/kestrel-systems/psxcore/psx/timing"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "psxcore"
	app.Description = "A PlayStation 1 emulator core"
	app.Usage = "psxcore [options] <EXE or disc image>"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "exe", Usage: "Path to a PS-X EXE or ELF32 executable to load directly"},
		cli.StringFlag{Name: "disc", Usage: "Path to a CUE/BIN or ISO disc image"},
		cli.StringFlag{Name: "bios", Usage: "Path to a BIOS ROM image"},
		cli.BoolFlag{Name: "fastboot", Usage: "Boot the inserted disc's SYSTEM.CNF executable directly, skipping the BIOS splash"},
		cli.BoolFlag{Name: "hle", Usage: "Enable HLE BIOS call interception"},
		cli.BoolFlag{Name: "auto-imask", Usage: "Unmask VBlank, CD-ROM and timer interrupts if I_MASK is still zero after 2,000,000 cycles"},
		cli.StringFlag{Name: "stop-pc", Usage: "Pause execution once PC reaches this address (hex, e.g. 0x80030000)"},
		cli.StringFlag{Name: "wav-dump", Usage: "Write mixed SPU output to this WAV file path"},
		cli.BoolFlag{Name: "headless", Usage: "Run without a presentation surface"},
		cli.BoolFlag{Name: "sdl2", Usage: "Use the SDL2 backend instead of the terminal/headless default"},
		cli.BoolFlag{Name: "debug", Usage: "Show the debug overlay (registers, disassembly, CD-ROM state)"},
		cli.IntFlag{Name: "frames", Usage: "Number of frames to run in headless mode (0 = unbounded)"},
		cli.IntFlag{Name: "snapshot-interval", Usage: "Save VRAM snapshots every N frames in headless mode (0 = disabled)"},
		cli.StringFlag{Name: "snapshot-dir", Usage: "Directory to save VRAM snapshots", Value: "snapshots"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		slog.Error("psxcore exited with error", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	exePath := c.String("exe")
	discPath := c.String("disc")
	if exePath == "" && discPath == "" {
		if c.NArg() > 0 {
			discPath = c.Args().Get(0)
		} else {
			cli.ShowAppHelp(c)
			return errors.New("no executable or disc image provided")
		}
	}

	opts := psx.Options{
		Logger:          slog.Default(),
		EnableHLE:       c.Bool("hle"),
		AutoEnableIMask: c.Bool("auto-imask"),
		WavDumpPath:     c.String("wav-dump"),
	}
	if stopPC := c.String("stop-pc"); stopPC != "" {
		var v uint32
		if _, err := fmt.Sscanf(stopPC, "0x%x", &v); err != nil {
			return fmt.Errorf("invalid --stop-pc %q: %w", stopPC, err)
		}
		opts.StopOnPC = &v
	}

	core := psx.New(opts)

	if biosPath := c.String("bios"); biosPath != "" {
		data, err := os.ReadFile(biosPath)
		if err != nil {
			return fmt.Errorf("reading bios: %w", err)
		}
		core.SetBIOS(data)
	}

	if discPath != "" {
		if err := core.InsertDisc(discPath); err != nil {
			return fmt.Errorf("inserting disc: %w", err)
		}
	}

	switch {
	case exePath != "":
		data, err := os.ReadFile(exePath)
		if err != nil {
			return fmt.Errorf("reading executable: %w", err)
		}
		if err := core.LoadExecutable(data); err != nil {
			return fmt.Errorf("loading executable: %w", err)
		}
	case c.Bool("fastboot"):
		if err := core.FastBoot(); err != nil {
			return fmt.Errorf("fast-boot: %w", err)
		}
	case discPath == "":
		return errors.New("nothing to run: provide --exe or --disc")
	}

	backend, err := selectBackend(c, core)
	if err != nil {
		return err
	}

	config := hostglue.Config{Title: "psxcore", ShowDebug: c.Bool("debug")}
	if err := backend.Init(config); err != nil {
		return fmt.Errorf("initializing backend: %w", err)
	}
	defer backend.Cleanup()

	var limiter timing.Limiter
	if c.Bool("headless") || !hostglue.StdoutIsTerminal() {
		limiter = timing.NewNoOpLimiter()
	} else {
		limiter = timing.NewAdaptiveLimiter(slog.Default(), timing.FPSNTSC)
	}

	return runLoop(core, backend, limiter, config)
}

func selectBackend(c *cli.Context, core *psx.Core) (hostglue.Backend, error) {
	sampleFn := func(n int) []int16 { return core.SPU().GetSamples(n) }

	if c.Bool("sdl2") {
		return hostglue.NewSDL2Backend(sampleFn), nil
	}

	if c.Bool("headless") || !hostglue.StdoutIsTerminal() {
		snapshot := hostglue.SnapshotConfig{
			Enabled:   c.Int("snapshot-interval") > 0,
			Interval:  c.Int("snapshot-interval"),
			Directory: c.String("snapshot-dir"),
		}
		return hostglue.NewHeadlessBackend(c.Int("frames"), snapshot), nil
	}

	return hostglue.NewTerminalBackend(), nil
}

func runLoop(core *psx.Core, backend hostglue.Backend, limiter timing.Limiter, config hostglue.Config) error {
	for {
		limiter.WaitForNextFrame()

		core.RunUntilFrame()

		vram, writeSeq := core.GPU().Snapshot()
		frame := &hostglue.Frame{VRAM: vram, WriteSeq: writeSeq}
		if config.ShowDebug {
			frame.Debug = core.ExtractDebugData()
		}

		events, err := backend.Update(frame)
		if err != nil {
			return fmt.Errorf("backend update: %w", err)
		}

		for _, ev := range events {
			switch ev.Action {
			case hostglue.ActionQuit:
				return nil
			case hostglue.ActionPauseToggle:
				if core.GetRunState() == psx.RunPaused {
					core.SetRunState(psx.RunRunning)
				} else {
					core.SetRunState(psx.RunPaused)
				}
			case hostglue.ActionStepInstruction:
				core.RequestStepInstruction()
			case hostglue.ActionStepFrame:
				core.RequestStepFrame()
			case hostglue.ActionDebugToggle:
				config.ShowDebug = !config.ShowDebug
			}
		}
	}
}
