package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embermoth/dmgcore/internal/addr"
)

// minimalROM builds a header-valid 32KiB ROM-only cartridge image, enough
// to exercise bus dispatch without any mapper-specific behavior.
func minimalROM() []byte {
	rom := make([]byte, 32*1024)
	rom[0x0148] = 0x00 // 32KiB
	rom[0x0149] = 0x00 // no RAM
	copy(rom[0x0134:0x0134+8], []byte("DMGCORE"))
	return rom
}

func newTestConsole(t *testing.T) *Console {
	t.Helper()
	c := New()
	require.NoError(t, c.InsertCartridge(minimalROM()))
	return c
}

func TestWorkRAMEchoMirrorsWRAM(t *testing.T) {
	c := newTestConsole(t)
	c.Write(0xC010, 0x42)
	assert.Equal(t, byte(0x42), c.Read(0xE010), "echo region should mirror work RAM")

	c.Write(0xE020, 0x99)
	assert.Equal(t, byte(0x99), c.Read(0xC020), "writes through echo should land in work RAM")
}

func TestHighRAMReadWrite(t *testing.T) {
	c := newTestConsole(t)
	c.Write(0xFF80, 0x11)
	c.Write(0xFFFE, 0x22)
	assert.Equal(t, byte(0x11), c.Read(0xFF80))
	assert.Equal(t, byte(0x22), c.Read(0xFFFE))
}

func TestInterruptEnableAndFlagRegisters(t *testing.T) {
	c := newTestConsole(t)
	c.Write(addr.IE, 0x1F)
	assert.Equal(t, byte(0x1F), c.Read(addr.IE))

	c.Write(addr.IF, 0x00) // clear the post-boot VBlank request
	c.RequestInterrupt(addr.Timer)
	assert.Equal(t, byte(0x04|0xE0), c.Read(addr.IF), "IF upper 3 bits always read set")
}

func TestJoypadActiveLowSelection(t *testing.T) {
	c := newTestConsole(t)
	// Press A (bit 0 of buttons) and Down (bit 3 of d-pad).
	c.SetInput(0b0001, 0b1000)

	// Select buttons only (bit 5 = 0, bit 4 = 1).
	c.Write(addr.P1, 0x10)
	got := c.Read(addr.P1)
	assert.Equal(t, byte(0), got&0x01, "bit 0 (A) should read low: pressed")
	assert.Equal(t, byte(0x02), got&0x02, "bit 1 (B) should read high: not pressed")

	// Select d-pad only (bit 4 = 0, bit 5 = 1).
	c.Write(addr.P1, 0x20)
	got = c.Read(addr.P1)
	assert.Equal(t, byte(0), got&0x08, "bit 3 (Down) should read low: pressed")
	assert.Equal(t, byte(0x01), got&0x01, "bit 0 (Right) should read high: not pressed")
}

func TestJoypadPressRequestsInterrupt(t *testing.T) {
	c := newTestConsole(t)
	c.SetInput(0, 0)
	c.ifReg = 0

	c.SetInput(0b0001, 0)
	assert.NotZero(t, c.ifReg&(1<<uint8(addr.Joypad)), "newly pressed button should request the joypad interrupt")
}

func TestOAMDMACopiesAtomically(t *testing.T) {
	c := newTestConsole(t)
	for i := uint16(0); i < 0xA0; i++ {
		c.workRAM[0xD000-0xC000+i] = byte(i + 1)
	}

	c.Write(addr.DMA, 0xD0)

	for i := uint16(0); i < 0xA0; i++ {
		assert.Equal(t, byte(i+1), c.Read(addr.OAMStart+i), "OAM byte %d should match source", i)
	}
}

func TestBootOverlayLatchDisablesAfterWrite(t *testing.T) {
	c := New()
	boot := make([]byte, 0x100)
	boot[0x00] = 0xAA
	c.SetBootROM(boot)
	require.NoError(t, c.InsertCartridge(minimalROM()))
	c.Reset(false)

	assert.Equal(t, byte(0xAA), c.Read(0x0000), "boot ROM should be visible before the overlay latch is written")

	c.Write(addr.BootROMDisable, 1)
	assert.NotEqual(t, byte(0xAA), c.Read(0x0000), "cartridge ROM should be visible once the overlay is disabled")

	c.Write(addr.BootROMDisable, 0)
	assert.NotEqual(t, byte(0xAA), c.Read(0x0000), "the overlay latch should not re-enable once cleared")
}

func TestClockOrderAdvancesTimerAndPPU(t *testing.T) {
	c := newTestConsole(t)
	c.Write(addr.TAC, 0x05) // timer enabled, fastest rate
	for i := 0; i < 456; i++ {
		c.Clock()
	}
	assert.NotZero(t, c.Read(addr.LY), "LY should have advanced after one scanline's worth of clocks")
	assert.NotZero(t, c.Read(addr.TIMA), "TIMA should have advanced after one scanline's worth of clocks")
}

func TestRunsUntilCPUErrorOrFrame(t *testing.T) {
	c := newTestConsole(t)
	c.ClearFrameCompleted()
	for i := 0; i < 70224 && !c.FrameCompleted(); i++ {
		c.Clock()
	}
	assert.True(t, c.FrameCompleted(), "a full frame of clocks should complete exactly one frame")
	assert.NoError(t, c.CPUError())
}
