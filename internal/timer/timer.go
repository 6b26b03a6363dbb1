// Package timer implements the DMG's 16-bit internal divider and the
// TIMA/TMA/TAC programmable timer built on top of it.
package timer

import (
	"github.com/embermoth/dmgcore/internal/addr"
	"github.com/embermoth/dmgcore/internal/bit"
)

// tacLookup maps TAC's clock-select bits (0-1) to the bit position of the
// internal divider watched for a falling edge. Per Pan Docs:
//
//	00 -> bit 9 (4096 Hz)
//	01 -> bit 3 (262144 Hz)
//	10 -> bit 5 (65536 Hz)
//	11 -> bit 7 (16384 Hz)
var tacLookup = [4]uint16{9, 3, 5, 7}

// InterruptRequester is the single capability the timer needs from its
// host: a way to raise the Timer interrupt bit in IF.
type InterruptRequester interface {
	RequestInterrupt(i addr.Interrupt)
}

// Timer holds the 16-bit internal divider and the three programmable
// registers layered on top of it.
type Timer struct {
	divInternal  uint16
	lastWatched  bool
	overflowWait int // T-cycles left before TMA reload becomes visible
	pendingIRQ   bool

	tima, tma, tac byte

	irq InterruptRequester
}

// New constructs a Timer that raises interrupts through irq.
func New(irq InterruptRequester) *Timer {
	return &Timer{irq: irq}
}

// Reset restores the timer to its post-boot state: div_internal seeded and
// TIMA/TMA/TAC cleared, as if freshly powered on.
func (t *Timer) Reset(seed uint16) {
	t.divInternal = seed
	t.lastWatched = false
	t.overflowWait = 0
	t.pendingIRQ = false
	t.tima, t.tma, t.tac = 0, 0, 0
}

// Tick advances the timer by one T-cycle. Console.Clock() calls this once
// per tick, ahead of the CPU, so a Timer interrupt raised this tick is
// already visible in IF when the CPU checks it.
func (t *Timer) Tick() {
	if t.pendingIRQ {
		t.irq.RequestInterrupt(addr.Timer)
		t.pendingIRQ = false
	}

	t.divInternal++

	if t.overflowWait > 0 {
		t.overflowWait--
		if t.overflowWait == 0 {
			t.tima = t.tma
			t.irq.RequestInterrupt(addr.Timer)
		}
		return
	}

	if !bit.IsSet(2, t.tac) {
		t.lastWatched = false
		return
	}

	watched := bit.IsSet16(tacLookup[t.tac&0x03], t.divInternal)
	if t.lastWatched && !watched {
		t.incrementTIMA()
	}
	t.lastWatched = watched
}

func (t *Timer) incrementTIMA() {
	t.tima++
	if t.tima == 0 {
		// TMA reload and the interrupt request become visible 4 T-cycles
		// after the overflow, not immediately.
		t.overflowWait = 4
	}
}

// Read returns the value of one of the four timer registers.
func (t *Timer) Read(address uint16) byte {
	switch address {
	case addr.DIV:
		return byte(t.divInternal >> 8)
	case addr.TIMA:
		return t.tima
	case addr.TMA:
		return t.tma
	case addr.TAC:
		return t.tac | 0xF8
	}
	return 0xFF
}

// Write updates one of the four timer registers. Any write to DIV resets
// the internal divider to zero, which can itself produce a falling edge
// on the previously watched bit.
func (t *Timer) Write(address uint16, value byte) {
	switch address {
	case addr.DIV:
		if bit.IsSet(2, t.tac) && t.lastWatched {
			t.incrementTIMA()
		}
		t.divInternal = 0
		t.lastWatched = false
	case addr.TIMA:
		t.tima = value
	case addr.TMA:
		t.tma = value
	case addr.TAC:
		t.tac = value & 0x07
	}
}
