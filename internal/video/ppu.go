// Package video implements the DMG pixel processing unit: the scanline
// state machine, VRAM/OAM storage, and the background/window/sprite
// rasterizer that produces one 160x144 framebuffer per frame.
package video

import "github.com/embermoth/dmgcore/internal/addr"

// Mode is one of the PPU's four scanline states.
type Mode uint8

const (
	ModeHBlank Mode = 0
	ModeVBlank Mode = 1
	ModeOAMScan Mode = 2
	ModeDraw    Mode = 3
)

const (
	dotsPerScanline  = 456
	scanlinesPerFrame = 154
	oamScanDots      = 80
	drawDots         = 172 // mode 3 modeled as a fixed-length refinement, per spec design notes
	vblankStartLine  = 144
)

// InterruptRequester is the capability the PPU needs from its host: a way
// to raise VBlank and STAT in IF.
type InterruptRequester interface {
	RequestInterrupt(i addr.Interrupt)
}

// PPU owns VRAM, OAM, the LCD control/status registers, and the scanline
// rasterizer.
type PPU struct {
	vram [0x2000]byte
	oam  [0xA0]byte

	lcdc, stat byte
	scy, scx   byte
	ly, lyc    byte
	bgp, obp0, obp1 byte
	wy, wx     byte

	mode       Mode
	dot        int
	statLine   bool // debounced OR of enabled STAT interrupt sources
	frameDone  bool

	fb Framebuffer

	irq InterruptRequester
}

// New constructs a PPU that raises interrupts through irq.
func New(irq InterruptRequester) *PPU {
	p := &PPU{irq: irq}
	p.mode = ModeOAMScan
	return p
}

// Reset returns the PPU to its post-boot register state.
func (p *PPU) Reset() {
	p.lcdc = 0x91
	p.stat = 0x85
	p.scy, p.scx = 0, 0
	p.ly, p.lyc = 0, 0
	p.bgp = 0xFC
	p.obp0, p.obp1 = 0xFF, 0xFF
	p.wy, p.wx = 0, 0
	p.mode = ModeOAMScan
	p.dot = 0
	p.statLine = false
	p.frameDone = false
}

func (p *PPU) lcdcBit(n uint8) bool { return p.lcdc&(1<<n) != 0 }

// Framebuffer returns the most recently completed frame.
func (p *PPU) Framebuffer() *Framebuffer { return &p.fb }

// FrameCompleted reports whether a frame finished since the last call to
// ClearFrameCompleted.
func (p *PPU) FrameCompleted() bool { return p.frameDone }

// ClearFrameCompleted resets the frame-completed flag.
func (p *PPU) ClearFrameCompleted() { p.frameDone = false }

// Read satisfies reads in the VRAM, OAM, and PPU-register address ranges.
func (p *PPU) Read(address uint16) byte {
	switch {
	case address >= 0x8000 && address <= 0x9FFF:
		return p.vram[address-0x8000]
	case address >= addr.OAMStart && address <= addr.OAMEnd:
		return p.oam[address-addr.OAMStart]
	}
	switch address {
	case addr.LCDC:
		return p.lcdc
	case addr.STAT:
		return p.stat | 0x80
	case addr.SCY:
		return p.scy
	case addr.SCX:
		return p.scx
	case addr.LY:
		return p.ly
	case addr.LYC:
		return p.lyc
	case addr.BGP:
		return p.bgp
	case addr.OBP0:
		return p.obp0
	case addr.OBP1:
		return p.obp1
	case addr.WY:
		return p.wy
	case addr.WX:
		return p.wx
	}
	return 0xFF
}

// Write satisfies writes in the VRAM, OAM, and PPU-register address ranges.
func (p *PPU) Write(address uint16, value byte) {
	switch {
	case address >= 0x8000 && address <= 0x9FFF:
		p.vram[address-0x8000] = value
		return
	case address >= addr.OAMStart && address <= addr.OAMEnd:
		p.oam[address-addr.OAMStart] = value
		return
	}
	switch address {
	case addr.LCDC:
		wasOn := p.lcdcBit(7)
		p.lcdc = value
		if wasOn && !p.lcdcBit(7) {
			p.disableLCD()
		}
	case addr.STAT:
		p.stat = (p.stat & 0x07) | (value &^ 0x07)
	case addr.SCY:
		p.scy = value
	case addr.SCX:
		p.scx = value
	case addr.LY:
		// read-only on real hardware
	case addr.LYC:
		p.lyc = value
		p.updateLYCFlag()
	case addr.BGP:
		p.bgp = value
	case addr.OBP0:
		p.obp0 = value
	case addr.OBP1:
		p.obp1 = value
	case addr.WY:
		p.wy = value
	case addr.WX:
		p.wx = value
	}
}

// WriteOAMByte is used by the console's OAM-DMA routine to copy bytes
// directly into OAM, bypassing the address-range dispatch above.
func (p *PPU) WriteOAMByte(offset uint8, value byte) {
	p.oam[offset] = value
}

func (p *PPU) disableLCD() {
	p.ly = 0
	p.dot = 0
	p.mode = ModeOAMScan
	p.statLine = false
	for i := range p.fb {
		p.fb[i] = 0
	}
}

// Tick advances the PPU by one dot (one T-cycle).
func (p *PPU) Tick() {
	if !p.lcdcBit(7) {
		return
	}

	p.dot++

	switch p.mode {
	case ModeOAMScan:
		if p.dot >= oamScanDots {
			p.mode = ModeDraw
		}
	case ModeDraw:
		if p.dot >= oamScanDots+drawDots {
			p.renderScanline()
			p.mode = ModeHBlank
		}
	case ModeHBlank:
		if p.dot >= dotsPerScanline {
			p.advanceLine()
		}
	case ModeVBlank:
		if p.dot >= dotsPerScanline {
			p.advanceLine()
		}
	}

	p.updateSTATInterrupt()
}

func (p *PPU) advanceLine() {
	p.dot = 0
	p.ly++

	if p.ly == vblankStartLine {
		p.mode = ModeVBlank
		p.irq.RequestInterrupt(addr.VBlank)
	} else if p.ly >= scanlinesPerFrame {
		p.ly = 0
		p.mode = ModeOAMScan
		p.frameDone = true
	} else if p.mode != ModeVBlank {
		p.mode = ModeOAMScan
	}

	p.updateLYCFlag()
}

func (p *PPU) updateLYCFlag() {
	if p.ly == p.lyc {
		p.stat |= 0x04
	} else {
		p.stat &^= 0x04
	}
}

// updateSTATInterrupt implements the rising-edge debounce: the interrupt
// line is the OR of every enabled STAT source, and fires only when that OR
// transitions from false to true.
func (p *PPU) updateSTATInterrupt() {
	line := (p.stat&0x40 != 0 && p.stat&0x04 != 0) || // LY==LYC
		(p.stat&0x20 != 0 && p.mode == ModeOAMScan) ||
		(p.stat&0x10 != 0 && p.mode == ModeVBlank) ||
		(p.stat&0x08 != 0 && p.mode == ModeHBlank)

	if line && !p.statLine {
		p.irq.RequestInterrupt(addr.STATInterrupt)
	}
	p.statLine = line

	p.stat = (p.stat &^ 0x03) | byte(p.mode)
}
