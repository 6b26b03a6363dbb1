// Package cpu implements the Sharp SM83 fetch/decode/execute core: the
// 256 primary and 256 CB-prefixed opcodes, the four-flag ALU, and the
// interrupt service sequence.
package cpu

import (
	"fmt"

	"github.com/embermoth/dmgcore/internal/addr"
)

// Bus is everything the CPU needs from its console to do its job. It never
// owns the bus, only holds a capability reference into it.
type Bus interface {
	Read(address uint16) byte
	Write(address uint16, value byte)
	RequestInterrupt(i addr.Interrupt)
}

// UnimplementedOpcodeError is reported when the decoder reaches a byte with
// no defined semantics (the 11 illegal SM83 opcodes). It should never occur
// once a ROM sticks to documented instructions.
type UnimplementedOpcodeError struct {
	Opcode uint16 // 0x00-0xFF for primary opcodes, 0xCB00-0xCBFF for CB-prefixed
	PC     uint16
}

func (e *UnimplementedOpcodeError) Error() string {
	if e.Opcode > 0xFF {
		return fmt.Sprintf("cpu: unimplemented CB opcode 0x%02X at PC=0x%04X", e.Opcode&0xFF, e.PC)
	}
	return fmt.Sprintf("cpu: unimplemented opcode 0x%02X at PC=0x%04X", e.Opcode, e.PC)
}

// CPU is the SM83 register file plus control state, driven one T-cycle at a
// time via Clock.
type CPU struct {
	regs registers

	bus Bus

	ime        bool // master interrupt enable
	imePending bool // EI arms this; promoted to ime after the *next* instruction
	halted     bool

	instructionCycles int // T-cycles remaining before the next fetch boundary
	totalCycles       uint64

	// err latches the first unimplemented-opcode fault so the host can
	// surface it; the core is a closed simulator with no recoverable
	// runtime errors, so we stop advancing once this is set.
	err error
}

// New returns a CPU wired to bus with all state zeroed (PC=0x0000, IME off).
// Use InitPostBoot to jump straight to the post-boot-ROM state instead.
func New(bus Bus) *CPU {
	return &CPU{bus: bus}
}

// Reset clears all registers and control state and sets PC=0x0000, IME=false,
// matching a cold boot that will execute the boot ROM from scratch.
func (c *CPU) Reset() {
	c.regs.reset()
	c.ime = false
	c.imePending = false
	c.halted = false
	c.instructionCycles = 0
	c.totalCycles = 0
	c.err = nil
}

// InitPostBoot loads the documented post-boot-ROM register values so
// execution can start directly at the cartridge entry point (0x0100)
// without running the real boot ROM. headerChecksum is byte 0x014D of the
// cartridge header; it selects AF's post-boot value: 0x01B0 normally, and
// 0x0100 when the checksum byte is zero.
func (c *CPU) InitPostBoot(headerChecksum byte) {
	c.regs.reset()
	af := uint16(0x01B0)
	if headerChecksum == 0 {
		af = 0x0100
	}
	c.regs.setAF(af)
	c.regs.setBC(0x0013)
	c.regs.setDE(0x00D8)
	c.regs.setHL(0x014D)
	c.regs.sp = 0xFFFE
	c.regs.pc = 0x0100
	c.ime = false
	c.imePending = false
	c.halted = false
	c.instructionCycles = 0
	c.totalCycles = 0
	c.err = nil
}

// Clock advances the CPU by exactly one T-cycle. It performs no bus access
// while instructionCycles > 0: the whole cost of the previous fetch is paid
// out one tick at a time before the next fetch boundary is reached.
func (c *CPU) Clock() {
	if c.err != nil {
		return
	}

	if c.instructionCycles == 0 {
		c.atFetchBoundary()
	}

	if c.instructionCycles > 0 {
		c.instructionCycles--
	}
}

func (c *CPU) atFetchBoundary() {
	pending := c.pendingInterrupts()

	if c.halted {
		if pending != 0 {
			c.halted = false
		} else {
			// Still halted: no bus access, but we still occupy this tick.
			c.instructionCycles = 1
			return
		}
	}

	if c.ime && pending != 0 {
		c.serviceInterrupt(pending)
		c.instructionCycles = 20
		return
	}

	if c.imePending {
		c.imePending = false
		c.ime = true
	}

	cycles := c.fetchDecodeExecute()
	c.totalCycles += uint64(cycles)
	c.instructionCycles = cycles
}

// pendingInterrupts returns IE & IF & 0x1F, the set of interrupts that are
// both enabled and requested.
func (c *CPU) pendingInterrupts() uint8 {
	ie := c.bus.Read(addr.IE)
	iflag := c.bus.Read(addr.IF)
	return ie & iflag & 0x1F
}

// serviceInterrupt runs the five-M-cycle ISR handshake: a discarded read at
// PC, pushing PC onto the stack, clearing IME, clearing the serviced bit in
// IF, and jumping to the interrupt's vector. pending must be nonzero.
func (c *CPU) serviceInterrupt(pending uint8) {
	c.bus.Read(c.regs.pc) // discarded bus read, matches real hardware's timing

	for i := uint8(0); i < 5; i++ {
		if pending&(1<<i) == 0 {
			continue
		}
		c.pushStack(c.regs.pc)
		c.ime = false

		iflag := c.bus.Read(addr.IF)
		c.bus.Write(addr.IF, iflag&^(1<<i))

		c.regs.pc = addr.Interrupt(i).Vector()
		return
	}
}

func (c *CPU) pushStack(value uint16) {
	c.regs.sp--
	c.bus.Write(c.regs.sp, byte(value>>8))
	c.regs.sp--
	c.bus.Write(c.regs.sp, byte(value))
}

func (c *CPU) popStack() uint16 {
	low := c.bus.Read(c.regs.sp)
	c.regs.sp++
	high := c.bus.Read(c.regs.sp)
	c.regs.sp++
	return uint16(high)<<8 | uint16(low)
}

// fetchDecodeExecute fetches the opcode at PC, advances PC, executes it
// fully (the CPU model executes an instruction's effects atomically and
// then "pays" for it one tick at a time via instructionCycles), and
// returns its total T-cycle cost including any taken-branch bonus.
func (c *CPU) fetchDecodeExecute() int {
	opcode := c.bus.Read(c.regs.pc)
	c.regs.pc++

	if opcode == 0xCB {
		cb := c.bus.Read(c.regs.pc)
		c.regs.pc++
		return c.executeCB(cb)
	}

	return c.execute(opcode)
}

// Err returns the first unimplemented-opcode fault encountered, or nil.
func (c *CPU) Err() error { return c.err }

// Halted reports whether the CPU is currently in the HALT state.
func (c *CPU) Halted() bool { return c.halted }

// IME reports the master interrupt enable flip-flop.
func (c *CPU) IME() bool { return c.ime }

// PC returns the program counter.
func (c *CPU) PC() uint16 { return c.regs.pc }

// SP returns the stack pointer.
func (c *CPU) SP() uint16 { return c.regs.sp }

// TotalCycles returns the number of T-cycles of instructions retired so far.
func (c *CPU) TotalCycles() uint64 { return c.totalCycles }

// Registers snapshots the register file for debug/test inspection.
type Registers struct {
	A, F, B, C, D, E, H, L byte
	SP, PC                 uint16
}

// Snapshot returns the current register values.
func (c *CPU) Snapshot() Registers {
	return Registers{
		A: c.regs.a, F: c.regs.f,
		B: c.regs.b, C: c.regs.c,
		D: c.regs.d, E: c.regs.e,
		H: c.regs.h, L: c.regs.l,
		SP: c.regs.sp, PC: c.regs.pc,
	}
}

// FlagString renders the Z/N/H/C flags for debug output, e.g. "Z-HC".
func (c *CPU) FlagString() string { return c.regs.flagString() }
