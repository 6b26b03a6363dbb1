package cpu

import (
	"testing"

	"github.com/embermoth/dmgcore/internal/addr"
)

// flatBus is a minimal 64KiB Bus used to unit-test the CPU in isolation.
type flatBus struct {
	mem  [0x10000]byte
	ie   byte
	ifl  byte
	reqs []addr.Interrupt
}

func newFlatBus() *flatBus { return &flatBus{} }

func (b *flatBus) Read(a uint16) byte {
	switch a {
	case addr.IE:
		return b.ie
	case addr.IF:
		return b.ifl | 0xE0
	}
	return b.mem[a]
}

func (b *flatBus) Write(a uint16, v byte) {
	switch a {
	case addr.IE:
		b.ie = v
	case addr.IF:
		b.ifl = v & 0x1F
	default:
		b.mem[a] = v
	}
}

func (b *flatBus) RequestInterrupt(i addr.Interrupt) {
	b.reqs = append(b.reqs, i)
	b.ifl |= 1 << uint8(i)
}

func newTestCPU() (*CPU, *flatBus) {
	bus := newFlatBus()
	c := New(bus)
	return c, bus
}

// load writes program bytes starting at address at.
func (b *flatBus) load(at uint16, program ...byte) {
	copy(b.mem[at:], program)
}

func stepInstruction(c *CPU) {
	// Clock the CPU until it reaches the next fetch boundary.
	c.Clock()
	for c.instructionCycles > 0 {
		c.Clock()
	}
}

func TestAddFlags(t *testing.T) {
	// For all (a,b): Z=(result==0), N=0, H=carry from bit 3, C=carry from bit 7.
	cases := []struct{ a, b byte }{
		{0x0F, 0x01}, {0xFF, 0x01}, {0x00, 0x00}, {0x80, 0x80}, {0x3A, 0xC6},
	}
	for _, tc := range cases {
		c, bus := newTestCPU()
		bus.load(0, 0x3E, tc.a, 0x06, tc.b, 0x80) // LD A,a ; LD B,b ; ADD A,B
		stepInstruction(c)
		stepInstruction(c)
		stepInstruction(c)

		wantZ := (tc.a+tc.b) == 0
		wantH := (tc.a&0xF)+(tc.b&0xF) > 0xF
		wantC := uint16(tc.a)+uint16(tc.b) > 0xFF

		s := c.Snapshot()
		if (s.A == 0) != wantZ || c.regs.flag(flagZ) != wantZ {
			t.Errorf("a=%#x b=%#x: Z flag wrong", tc.a, tc.b)
		}
		if c.regs.flag(flagN) {
			t.Errorf("a=%#x b=%#x: N should be clear after ADD", tc.a, tc.b)
		}
		if c.regs.flag(flagH) != wantH {
			t.Errorf("a=%#x b=%#x: H flag wrong", tc.a, tc.b)
		}
		if c.regs.flag(flagC) != wantC {
			t.Errorf("a=%#x b=%#x: C flag wrong", tc.a, tc.b)
		}
	}
}

func TestSubFlags(t *testing.T) {
	cases := []struct{ a, b byte }{
		{0x10, 0x01}, {0x00, 0x01}, {0x5, 0x5}, {0xFF, 0x0F},
	}
	for _, tc := range cases {
		c, bus := newTestCPU()
		bus.load(0, 0x3E, tc.a, 0x06, tc.b, 0x90) // LD A,a ; LD B,b ; SUB B
		stepInstruction(c)
		stepInstruction(c)
		stepInstruction(c)

		wantZ := tc.a == tc.b
		wantH := (tc.a & 0xF) < (tc.b & 0xF)
		wantC := tc.a < tc.b

		if c.regs.flag(flagZ) != wantZ {
			t.Errorf("a=%#x b=%#x: Z flag wrong", tc.a, tc.b)
		}
		if !c.regs.flag(flagN) {
			t.Errorf("a=%#x b=%#x: N should be set after SUB", tc.a, tc.b)
		}
		if c.regs.flag(flagH) != wantH {
			t.Errorf("a=%#x b=%#x: H flag wrong", tc.a, tc.b)
		}
		if c.regs.flag(flagC) != wantC {
			t.Errorf("a=%#x b=%#x: C flag wrong", tc.a, tc.b)
		}
	}
}

func TestDAARoundTrip(t *testing.T) {
	// A=0x15; B=0x27; ADD A,B; DAA -> A=0x42, C=0, Z=0.
	c, bus := newTestCPU()
	bus.load(0, 0x3E, 0x15, 0x06, 0x27, 0x80, 0x27) // LD A,0x15 ; LD B,0x27 ; ADD A,B ; DAA
	stepInstruction(c)
	stepInstruction(c)
	stepInstruction(c)
	stepInstruction(c)

	if c.regs.a != 0x42 {
		t.Fatalf("A = %#02x, want 0x42", c.regs.a)
	}
	if c.regs.flag(flagC) {
		t.Fatalf("C should be clear")
	}
	if c.regs.flag(flagZ) {
		t.Fatalf("Z should be clear")
	}
}

func TestSwapIsIdentity(t *testing.T) {
	for a := 0; a < 256; a++ {
		c, bus := newTestCPU()
		bus.load(0, 0x3E, byte(a), 0xCB, 0x37, 0xCB, 0x37) // LD A,a; SWAP A; SWAP A
		stepInstruction(c)
		stepInstruction(c)
		stepInstruction(c)
		if c.regs.a != byte(a) {
			t.Fatalf("SWAP A twice: got %#02x, want %#02x", c.regs.a, a)
		}
	}
}

func TestCplIsIdentity(t *testing.T) {
	c, bus := newTestCPU()
	bus.load(0, 0x3E, 0x5A, 0x2F, 0x2F) // LD A,0x5A; CPL; CPL
	stepInstruction(c)
	stepInstruction(c)
	stepInstruction(c)
	if c.regs.a != 0x5A {
		t.Fatalf("CPL twice: got %#02x, want 0x5a", c.regs.a)
	}
}

func TestRlcThenRrcIsIdentity(t *testing.T) {
	for a := 0; a < 256; a++ {
		c, bus := newTestCPU()
		bus.load(0, 0x3E, byte(a), 0x07, 0x0F) // LD A,a; RLCA; RRCA
		stepInstruction(c)
		stepInstruction(c)
		stepInstruction(c)
		if c.regs.a != byte(a) {
			t.Fatalf("RLCA then RRCA: got %#02x, want %#02x", c.regs.a, a)
		}
	}
}

func TestPushPopRoundTrip(t *testing.T) {
	c, bus := newTestCPU()
	c.regs.sp = 0xFFFE
	c.regs.setBC(0x1234)
	bus.load(0, 0xC5, 0xC1) // PUSH BC ; POP BC (into BC again, trivially the same)
	stepInstruction(c)
	stepInstruction(c)
	if c.regs.bc() != 0x1234 {
		t.Fatalf("PUSH/POP BC: got %#04x, want 0x1234", c.regs.bc())
	}

	// PUSH AF; POP AF masks the low nibble of F to zero.
	c2, bus2 := newTestCPU()
	c2.regs.sp = 0xFFFE
	c2.regs.setAF(0x12FF)
	bus2.load(0, 0xF5, 0xF1)
	stepInstruction(c2)
	stepInstruction(c2)
	if c2.regs.af() != 0x12F0 {
		t.Fatalf("PUSH/POP AF: got %#04x, want 0x12f0", c2.regs.af())
	}
}

func TestEIDelaysOneInstruction(t *testing.T) {
	c, bus := newTestCPU()
	bus.ie = 0x01
	bus.load(0, 0xFB, 0x00, 0x00) // EI ; NOP ; NOP
	stepInstruction(c)            // executes EI, arms imePending
	if c.ime {
		t.Fatalf("IME should still be false immediately after EI")
	}
	stepInstruction(c) // executes the NOP right after EI
	if !c.ime {
		t.Fatalf("IME should be true after the instruction following EI")
	}
}

func TestRETIEnablesIMEImmediately(t *testing.T) {
	c, bus := newTestCPU()
	c.regs.sp = 0xFFFC
	bus.load(0xFFFC, 0x00, 0x01) // return address 0x0100 on the stack
	bus.load(0, 0xD9)            // RETI
	stepInstruction(c)
	if !c.ime {
		t.Fatalf("RETI should enable IME with no delay")
	}
	if c.regs.pc != 0x0100 {
		t.Fatalf("RETI should pop PC, got %#04x", c.regs.pc)
	}
}

func TestHaltWakesOnPendingRegardlessOfIME(t *testing.T) {
	c, bus := newTestCPU()
	bus.ie = 0x04 // Timer
	c.ime = false
	bus.load(0, 0x76, 0x00, 0x00) // HALT ; NOP ; NOP
	stepInstruction(c)
	if !c.halted {
		t.Fatalf("expected CPU to be halted")
	}

	// Clock a few times with no pending interrupt: should stay halted at the same PC.
	for i := 0; i < 3; i++ {
		c.Clock()
	}
	if !c.halted {
		t.Fatalf("expected CPU to remain halted with no pending interrupt")
	}

	// Now raise the Timer interrupt in IF; CPU should wake on the next tick.
	bus.ifl = 0x04
	stepInstruction(c)
	if c.halted {
		t.Fatalf("expected CPU to wake from HALT once IE & IF != 0")
	}
	// IME is false, so no ISR should run: the CPU should fetch and execute
	// the NOP right after HALT (address 0x0001), landing PC at 0x0002,
	// instead of jumping to the Timer vector at 0x0050.
	if c.regs.pc != 0x0002 {
		t.Fatalf("expected PC to resume after HALT without servicing the interrupt, got %#04x", c.regs.pc)
	}
}
