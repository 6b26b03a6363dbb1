// Package serial implements a minimal stand-in for the DMG's link-cable
// port: it captures the bytes a ROM writes out, without modeling an actual
// external clock source or a second machine on the other end.
package serial

import "github.com/embermoth/dmgcore/internal/addr"

// InterruptRequester is the capability the stub needs from its host: a way
// to raise the Serial interrupt once a byte has "transferred".
type InterruptRequester interface {
	RequestInterrupt(i addr.Interrupt)
}

// Port captures bytes written to SB while a transfer is requested with the
// internal clock (SC=0x81), the pattern Blargg's test ROMs use to report
// pass/fail banners. No actual bit-shifting or external clock timing is
// modeled.
type Port struct {
	sb, sc byte
	irq    InterruptRequester
	output []byte
}

// New constructs a Port that raises interrupts through irq.
func New(irq InterruptRequester) *Port {
	return &Port{irq: irq}
}

// Reset clears the captured output and both registers.
func (p *Port) Reset() {
	p.sb, p.sc = 0, 0
	p.output = p.output[:0]
}

// Read returns the value of SB or SC.
func (p *Port) Read(address uint16) byte {
	switch address {
	case addr.SB:
		return p.sb
	case addr.SC:
		return p.sc | 0x7E
	}
	return 0xFF
}

// Write updates SB or SC. A write of 0x81 to SC (start bit + internal
// clock) completes the transfer immediately: the buffered SB byte is
// appended to the output log and the Serial interrupt is requested.
func (p *Port) Write(address uint16, value byte) {
	switch address {
	case addr.SB:
		p.sb = value
	case addr.SC:
		p.sc = value
		if value == 0x81 {
			p.output = append(p.output, p.sb)
			p.sc &^= 0x80
			p.irq.RequestInterrupt(addr.Serial)
		}
	}
}

// Output returns every byte captured so far, in the order they were
// written.
func (p *Port) Output() []byte {
	return p.output
}
