// Package console assembles the CPU, PPU, timer, cartridge, and the
// remaining memory-mapped devices (work RAM, high RAM, joypad, serial
// stub, audio register stub, boot-ROM overlay, OAM-DMA) into the DMG bus:
// the address decoder the distilled spec calls "the console".
package console

import (
	"fmt"
	"log/slog"

	"github.com/embermoth/dmgcore/internal/addr"
	"github.com/embermoth/dmgcore/internal/audio"
	"github.com/embermoth/dmgcore/internal/cartridge"
	"github.com/embermoth/dmgcore/internal/cpu"
	"github.com/embermoth/dmgcore/internal/serial"
	"github.com/embermoth/dmgcore/internal/timer"
	"github.com/embermoth/dmgcore/internal/video"
)

// region classifies the high byte of an address into one of the spans the
// bus dispatches differently, the same way the region-map table the
// teacher's MMU builds once at construction time does.
type region uint8

const (
	regionROM region = iota
	regionVRAM
	regionExtRAM
	regionWRAM
	regionEcho
	regionOAM
	regionIO
)

var regionMap [256]region

func init() {
	for i := 0x00; i <= 0x7F; i++ {
		regionMap[i] = regionROM
	}
	for i := 0x80; i <= 0x9F; i++ {
		regionMap[i] = regionVRAM
	}
	for i := 0xA0; i <= 0xBF; i++ {
		regionMap[i] = regionExtRAM
	}
	for i := 0xC0; i <= 0xDF; i++ {
		regionMap[i] = regionWRAM
	}
	for i := 0xE0; i <= 0xFD; i++ {
		regionMap[i] = regionEcho
	}
	regionMap[0xFE] = regionOAM
	regionMap[0xFF] = regionIO
}

// Console is the DMG bus: it owns every device except the cartridge, which
// it only borrows a handle to, and drives the fixed PPU -> Timer -> CPU
// ordering within each Clock() call.
type Console struct {
	cpu   *cpu.CPU
	ppu   *video.PPU
	timer *timer.Timer
	audio *audio.Stub
	sio   *serial.Port

	cart *cartridge.Cartridge

	workRAM [0x2000]byte
	hram    [0x7F]byte

	ifReg byte
	ieReg byte

	bootROM       []byte
	bootOverlayOn bool

	p1Select    byte // bits 4-5 only, as written by the ROM
	buttonsMask byte // bit clear = pressed: A,B,Select,Start in bits 0-3
	dpadMask    byte // bit clear = pressed: Right,Left,Up,Down in bits 0-3

	dmaSource byte // last value written to 0xFF46, read back verbatim

	logger *slog.Logger
}

// New constructs a Console with no cartridge inserted.
func New() *Console {
	c := &Console{
		buttonsMask: 0x0F,
		dpadMask:    0x0F,
		logger:      slog.Default(),
	}
	c.cpu = cpu.New(c)
	c.timer = timer.New(c)
	c.ppu = video.New(c)
	c.audio = audio.New()
	c.sio = serial.New(c)
	c.Reset(true)
	return c
}

// InsertCartridge loads a ROM image and selects its mapper.
func (c *Console) InsertCartridge(rom []byte) error {
	cart, err := cartridge.Load(rom)
	if err != nil {
		return fmt.Errorf("console: failed to load cartridge: %w", err)
	}
	c.cart = cart
	c.logger.Info("cartridge loaded", "title", cart.Header.Title, "type", fmt.Sprintf("0x%02X", uint8(cart.Header.CartridgeType)))
	return nil
}

// SetBootROM installs an optional boot ROM image, visible at 0x0000-0x00FF
// until a write to the overlay latch (0xFF50) disables it.
func (c *Console) SetBootROM(data []byte) {
	c.bootROM = data
}

// Reset restores the console to its power-on state. When skipBoot is true
// (no boot ROM installed, or the caller wants to start at the cartridge's
// entry point directly) the CPU and I/O registers are initialized to their
// documented post-boot values instead of running from PC=0x0000.
func (c *Console) Reset(skipBoot bool) {
	c.ifReg = 0
	c.ieReg = 0
	c.p1Select = 0x30
	c.bootOverlayOn = len(c.bootROM) > 0 && !skipBoot
	c.sio.Reset()
	c.audio.Reset()

	if skipBoot {
		var checksum byte
		if c.cart != nil {
			checksum = c.cart.Header.HeaderChecksum
		}
		c.cpu.InitPostBoot(checksum)
		c.timer.Reset(0xABCC)
		c.ppu.Reset()
		c.ifReg = 0xE1
	} else {
		c.cpu.Reset()
		c.timer.Reset(0)
		c.ppu.Reset()
	}
}

// Clock advances the console by one T-cycle, ticking PPU then Timer then
// (unless halted) the CPU, in that fixed order.
func (c *Console) Clock() {
	c.ppu.Tick()
	c.timer.Tick()
	c.cpu.Clock()
}

// Step runs the console for n T-cycles.
func (c *Console) Step(n int) {
	for i := 0; i < n; i++ {
		c.Clock()
	}
}

// SetInput updates the joypad's button and d-pad masks. Each is a 4-bit
// mask with bit set = pressed, the host-facing convention; internally the
// joypad register uses the active-low hardware convention (bit clear =
// pressed), so the masks are inverted once here and a newly-pressed button
// requests the Joypad interrupt, matching real hardware's selection-line
// wake-up behavior.
func (c *Console) SetInput(buttons, dpad uint8) {
	newButtons := ^buttons & 0x0F
	newDpad := ^dpad & 0x0F

	buttonsPressed := c.buttonsMask &^ newButtons
	dpadPressed := c.dpadMask &^ newDpad
	if buttonsPressed != 0 || dpadPressed != 0 {
		c.RequestInterrupt(addr.Joypad)
	}

	c.buttonsMask = newButtons
	c.dpadMask = newDpad
}

// Framebuffer returns the most recently rendered frame.
func (c *Console) Framebuffer() *video.Framebuffer { return c.ppu.Framebuffer() }

// FrameCompleted reports whether a frame finished since the last clear.
func (c *Console) FrameCompleted() bool { return c.ppu.FrameCompleted() }

// ClearFrameCompleted clears the frame-completed flag.
func (c *Console) ClearFrameCompleted() { c.ppu.ClearFrameCompleted() }

// SerialOutput returns every byte the ROM has written out over the serial
// stub so far.
func (c *Console) SerialOutput() []byte { return c.sio.Output() }

// CPUError returns the fatal error the CPU latched, if any (an
// unimplemented opcode), or nil.
func (c *Console) CPUError() error { return c.cpu.Err() }

// Halted reports whether the CPU is in the HALT state.
func (c *Console) Halted() bool { return c.cpu.Halted() }

// CPU exposes the CPU for snapshotting/tracing by a host.
func (c *Console) CPU() *cpu.CPU { return c.cpu }

// RequestInterrupt sets the named interrupt's bit in IF. CPU, PPU, Timer,
// and the serial stub all reach this through their respective minimal
// capability interfaces.
func (c *Console) RequestInterrupt(i addr.Interrupt) {
	c.ifReg |= 1 << uint8(i)
}

// Read dispatches a CPU-visible memory read to the owning device.
func (c *Console) Read(address uint16) byte {
	if c.bootOverlayOn && address < uint16(len(c.bootROM)) && address <= 0x00FF {
		return c.bootROM[address]
	}

	switch regionMap[address>>8] {
	case regionROM, regionExtRAM:
		if c.cart == nil {
			return 0xFF
		}
		return c.cart.Read(address)
	case regionVRAM:
		return c.ppu.Read(address)
	case regionWRAM:
		return c.workRAM[address-0xC000]
	case regionEcho:
		return c.workRAM[address-0xE000]
	case regionOAM:
		if address > addr.OAMEnd {
			return 0
		}
		return c.ppu.Read(address)
	case regionIO:
		return c.readIO(address)
	}
	return 0xFF
}

func (c *Console) readIO(address uint16) byte {
	switch {
	case address == addr.P1:
		return c.readJoypad()
	case address == addr.SB || address == addr.SC:
		return c.sio.Read(address)
	case address == addr.DIV || address == addr.TIMA || address == addr.TMA || address == addr.TAC:
		return c.timer.Read(address)
	case address == addr.IF:
		return c.ifReg | 0xE0
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		return c.audio.Read(address)
	case address == addr.LCDC || address == addr.STAT || address == addr.SCY || address == addr.SCX ||
		address == addr.LY || address == addr.LYC || address == addr.BGP || address == addr.OBP0 ||
		address == addr.OBP1 || address == addr.WY || address == addr.WX:
		return c.ppu.Read(address)
	case address == addr.DMA:
		return c.dmaSource
	case address == addr.BootROMDisable:
		if c.bootOverlayOn {
			return 0
		}
		return 1
	case address == addr.IE:
		return c.ieReg
	case address >= 0xFF80 && address <= 0xFFFE:
		return c.hram[address-0xFF80]
	default:
		return 0xFF
	}
}

// Write dispatches a CPU-visible memory write to the owning device.
func (c *Console) Write(address uint16, value byte) {
	switch regionMap[address>>8] {
	case regionROM, regionExtRAM:
		if c.cart == nil {
			return
		}
		c.cart.Write(address, value)
	case regionVRAM:
		c.ppu.Write(address, value)
	case regionWRAM:
		c.workRAM[address-0xC000] = value
	case regionEcho:
		c.workRAM[address-0xE000] = value
	case regionOAM:
		if address <= addr.OAMEnd {
			c.ppu.Write(address, value)
		}
	case regionIO:
		c.writeIO(address, value)
	}
}

func (c *Console) writeIO(address uint16, value byte) {
	switch {
	case address == addr.P1:
		c.p1Select = value & 0x30
	case address == addr.SB || address == addr.SC:
		c.sio.Write(address, value)
	case address == addr.DIV || address == addr.TIMA || address == addr.TMA || address == addr.TAC:
		c.timer.Write(address, value)
	case address == addr.IF:
		c.ifReg = value & 0x1F
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		c.audio.Write(address, value)
	case address == addr.LCDC || address == addr.STAT || address == addr.SCY || address == addr.SCX ||
		address == addr.LY || address == addr.LYC || address == addr.BGP || address == addr.OBP0 ||
		address == addr.OBP1 || address == addr.WY || address == addr.WX:
		c.ppu.Write(address, value)
	case address == addr.DMA:
		c.startOAMDMA(value)
	case address == addr.BootROMDisable:
		c.bootOverlayOn = false
	case address == addr.IE:
		c.ieReg = value
	case address >= 0xFF80 && address <= 0xFFFE:
		c.hram[address-0xFF80] = value
	}
}

// readJoypad computes P1's live value from the selection bits the ROM last
// wrote and the current button/d-pad state. Bit clear means pressed; bits
// 6-7 always read back set.
func (c *Console) readJoypad() byte {
	result := byte(0xC0) | c.p1Select

	selectDpad := c.p1Select&0x10 == 0
	selectButtons := c.p1Select&0x20 == 0

	switch {
	case selectButtons && !selectDpad:
		result |= c.buttonsMask
	case selectDpad && !selectButtons:
		result |= c.dpadMask
	case selectButtons && selectDpad:
		result |= c.buttonsMask & c.dpadMask
	default:
		result |= 0x0F
	}
	return result
}

// startOAMDMA performs the atomic 160-byte copy from (value << 8) into OAM.
// Real hardware spreads this across 160 M-cycles and locks out most of the
// bus meanwhile; this core performs it instantaneously, a simplification
// noted in the design document.
func (c *Console) startOAMDMA(value byte) {
	c.dmaSource = value
	source := uint16(value) << 8
	for i := uint16(0); i < 0xA0; i++ {
		c.ppu.WriteOAMByte(uint8(i), c.Read(source+i))
	}
}

// ReadWord reads a little-endian 16-bit value.
func (c *Console) ReadWord(address uint16) uint16 {
	lo := c.Read(address)
	hi := c.Read(address + 1)
	return uint16(hi)<<8 | uint16(lo)
}

// WriteWord writes a little-endian 16-bit value.
func (c *Console) WriteWord(address uint16, value uint16) {
	c.Write(address, byte(value))
	c.Write(address+1, byte(value>>8))
}
