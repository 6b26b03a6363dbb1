package cpu

// The primary and CB-prefixed opcode spaces both decompose into the classic
// SM83/Z80 bitfields: x = opcode>>6 (group), y = (opcode>>3)&7 (sub-op or
// register), z = opcode&7 (register/operand), p = y>>1, q = y&1. Tables
// indexed by these fields let most of the grid (loads, ALU, rotates, bit
// ops) share one implementation instead of 256 hand-written cases; the
// irregular corners (control flow, 16-bit loads, misc column 0x00-0x3F) are
// switched on explicitly.

// r8 returns the value of register z (0=B,1=C,2=D,3=E,4=H,5=L,6=(HL),7=A).
func (c *CPU) r8(z byte) byte {
	switch z {
	case 0:
		return c.regs.b
	case 1:
		return c.regs.c
	case 2:
		return c.regs.d
	case 3:
		return c.regs.e
	case 4:
		return c.regs.h
	case 5:
		return c.regs.l
	case 6:
		return c.bus.Read(c.regs.hl())
	case 7:
		return c.regs.a
	}
	panic("r8: z out of range")
}

func (c *CPU) setR8(z byte, v byte) {
	switch z {
	case 0:
		c.regs.b = v
	case 1:
		c.regs.c = v
	case 2:
		c.regs.d = v
	case 3:
		c.regs.e = v
	case 4:
		c.regs.h = v
	case 5:
		c.regs.l = v
	case 6:
		c.bus.Write(c.regs.hl(), v)
	case 7:
		c.regs.a = v
	default:
		panic("setR8: z out of range")
	}
}

// rp16 returns the 16-bit pair for p (0=BC,1=DE,2=HL,3=SP), used by the
// LD rp,nn / ADD HL,rp / INC rp / DEC rp groups.
func (c *CPU) rp16(p byte) uint16 {
	switch p {
	case 0:
		return c.regs.bc()
	case 1:
		return c.regs.de()
	case 2:
		return c.regs.hl()
	case 3:
		return c.regs.sp
	}
	panic("rp16: p out of range")
}

func (c *CPU) setRP16(p byte, v uint16) {
	switch p {
	case 0:
		c.regs.setBC(v)
	case 1:
		c.regs.setDE(v)
	case 2:
		c.regs.setHL(v)
	case 3:
		c.regs.sp = v
	default:
		panic("setRP16: p out of range")
	}
}

// rp2 returns the 16-bit pair for p used by PUSH/POP (AF instead of SP).
func (c *CPU) rp2(p byte) uint16 {
	if p == 3 {
		return c.regs.af()
	}
	return c.rp16(p)
}

func (c *CPU) setRP2(p byte, v uint16) {
	if p == 3 {
		c.regs.setAF(v)
		return
	}
	c.setRP16(p, v)
}

// condition evaluates cc[y] for y=0..3: NZ, Z, NC, C.
func (c *CPU) condition(y byte) bool {
	switch y {
	case 0:
		return !c.regs.flag(flagZ)
	case 1:
		return c.regs.flag(flagZ)
	case 2:
		return !c.regs.flag(flagC)
	case 3:
		return c.regs.flag(flagC)
	}
	panic("condition: y out of range")
}

// immediate8 reads the byte at PC and advances it.
func (c *CPU) immediate8() byte {
	v := c.bus.Read(c.regs.pc)
	c.regs.pc++
	return v
}

// immediate16 reads a little-endian word at PC and advances it by two.
func (c *CPU) immediate16() uint16 {
	low := c.immediate8()
	high := c.immediate8()
	return uint16(high)<<8 | uint16(low)
}

func (c *CPU) signedImmediate8() int8 {
	return int8(c.immediate8())
}
