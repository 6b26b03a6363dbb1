package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli"

	"github.com/embermoth/dmgcore/internal/console"
	"github.com/embermoth/dmgcore/internal/render/terminal"
)

func main() {
	app := cli.NewApp()
	app.Name = "dmgcore"
	app.Description = "A cycle-driven Game Boy emulator core"
	app.Usage = "dmgcore [options] <ROM file>"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rom",
			Usage: "Path to the ROM file",
		},
		cli.BoolFlag{
			Name:  "headless",
			Usage: "Run the core without a terminal display",
		},
		cli.IntFlag{
			Name:  "frames",
			Usage: "Number of frames to run in headless mode (required for headless)",
			Value: 0,
		},
		cli.IntFlag{
			Name:  "snapshot-interval",
			Usage: "Save frame snapshots every N frames in headless mode (0 = disabled)",
			Value: 0,
		},
		cli.StringFlag{
			Name:  "snapshot-dir",
			Usage: "Directory to save frame snapshots (default: temp directory)",
		},
		cli.BoolFlag{
			Name:  "trace",
			Usage: "Log per-instruction CPU state at debug level",
		},
		cli.StringFlag{
			Name:  "boot-rom",
			Usage: "Path to a boot ROM image (optional; the core starts post-boot when omitted)",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "Minimum log level: debug, info, warn, error",
			Value: "info",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		slog.Error("dmgcore exited with an error", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	level, err := parseLogLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	romPath := c.String("rom")
	if romPath == "" {
		if c.NArg() > 0 {
			romPath = c.Args().Get(0)
		} else {
			cli.ShowAppHelp(c)
			return errors.New("no ROM path provided")
		}
	}

	dmg := console.New()

	rom, err := os.ReadFile(romPath)
	if err != nil {
		return fmt.Errorf("reading ROM: %w", err)
	}
	if err := dmg.InsertCartridge(rom); err != nil {
		return err
	}

	if bootPath := c.String("boot-rom"); bootPath != "" {
		boot, err := os.ReadFile(bootPath)
		if err != nil {
			return fmt.Errorf("reading boot ROM: %w", err)
		}
		dmg.SetBootROM(boot)
		dmg.Reset(false)
	} else {
		dmg.Reset(true)
	}

	trace := c.Bool("trace")

	if c.Bool("headless") {
		return runHeadless(dmg, c, romPath, trace)
	}
	return runTerminal(dmg, trace)
}

func parseLogLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}

func runHeadless(dmg *console.Console, c *cli.Context, romPath string, trace bool) error {
	frames := c.Int("frames")
	if frames <= 0 {
		return errors.New("headless mode requires --frames with a positive value")
	}

	snapshotInterval := c.Int("snapshot-interval")
	snapshotDir := c.String("snapshot-dir")
	if snapshotInterval > 0 {
		if snapshotDir == "" {
			dir, err := os.MkdirTemp("", "dmgcore-snapshots-*")
			if err != nil {
				return fmt.Errorf("creating snapshot directory: %w", err)
			}
			snapshotDir = dir
		} else if err := os.MkdirAll(snapshotDir, 0o755); err != nil {
			return fmt.Errorf("creating snapshot directory: %w", err)
		}
	}

	romName := strings.TrimSuffix(filepath.Base(romPath), filepath.Ext(romPath))
	slog.Info("running headless", "frames", frames, "snapshot_interval", snapshotInterval)

	for i := 0; i < frames; i++ {
		runFrame(dmg, trace)
		if dmg.CPUError() != nil {
			return fmt.Errorf("CPU halted with an error at frame %d: %w", i, dmg.CPUError())
		}

		if snapshotInterval > 0 && (i+1)%snapshotInterval == 0 {
			path := filepath.Join(snapshotDir, fmt.Sprintf("%s_frame_%d.txt", romName, i+1))
			if err := saveFrameSnapshot(dmg, path); err != nil {
				slog.Error("failed to save snapshot", "frame", i+1, "error", err)
			}
		}
	}

	if output := dmg.SerialOutput(); len(output) > 0 {
		fmt.Fprintf(os.Stdout, "%s\n", output)
	}
	slog.Info("headless run completed", "frames", frames)
	return nil
}

func runTerminal(dmg *console.Console, trace bool) error {
	view, err := terminal.New()
	if err != nil {
		return err
	}
	defer view.Close()

	for !view.Quit() {
		buttons, dpad := view.PollInput()
		dmg.SetInput(buttons, dpad)

		runFrame(dmg, trace)
		if dmg.CPUError() != nil {
			slog.Error("CPU halted with an error", "error", dmg.CPUError())
			return dmg.CPUError()
		}

		view.Render(dmg.Framebuffer())
	}
	return nil
}

// runFrame clocks the console until a frame completes or the CPU latches a
// fatal error, whichever comes first. With tracing on, one line is logged
// per instruction fetch (detected by a PC change) rather than per T-cycle.
func runFrame(dmg *console.Console, trace bool) {
	dmg.ClearFrameCompleted()
	lastPC := dmg.CPU().PC()
	for !dmg.FrameCompleted() {
		dmg.Clock()
		if dmg.CPUError() != nil {
			return
		}
		if trace {
			if pc := dmg.CPU().PC(); pc != lastPC {
				regs := dmg.CPU().Snapshot()
				slog.Debug("step", "pc", fmt.Sprintf("0x%04X", pc), "a", regs.A, "flags", dmg.CPU().FlagString())
				lastPC = pc
			}
		}
	}
}

func saveFrameSnapshot(dmg *console.Console, path string) error {
	fb := dmg.Framebuffer()

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	shadeChars := []rune{'░', '▒', '▓', '█'}
	fmt.Fprintf(file, "# dmgcore frame snapshot, 160x144\n")
	for y := 0; y < 144; y++ {
		for x := 0; x < 160; x++ {
			fmt.Fprintf(file, "%c", shadeChars[fb[y*160+x]&0x03])
		}
		fmt.Fprintln(file)
	}
	return nil
}
