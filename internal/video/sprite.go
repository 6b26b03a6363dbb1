package video

// sprite is one parsed OAM entry, already adjusted from hardware's
// Y+16/X+8 offsets to real screen coordinates.
type sprite struct {
	y, x      int
	tileIndex byte
	flags     byte
	oamIndex  int
}

func (s sprite) paletteOBP1() bool { return s.flags&0x10 != 0 }
func (s sprite) flipX() bool       { return s.flags&0x20 != 0 }
func (s sprite) flipY() bool       { return s.flags&0x40 != 0 }
func (s sprite) behindBG() bool    { return s.flags&0x80 != 0 }

// spritePriorityBuffer resolves DMG sprite-to-pixel ownership: lower X
// wins, ties broken by lower OAM index. Avoids sorting the scanline's
// sprite list by precomputing, per pixel, which sprite is allowed to draw.
type spritePriorityBuffer struct {
	ownerIndex [FramebufferWidth]int
	ownerX     [FramebufferWidth]int
}

func (b *spritePriorityBuffer) clear() {
	for i := range b.ownerIndex {
		b.ownerIndex[i] = -1
		b.ownerX[i] = 0xFF
	}
}

func (b *spritePriorityBuffer) tryClaim(pixelX, oamIndex, spriteX int) {
	if pixelX < 0 || pixelX >= FramebufferWidth {
		return
	}
	current := b.ownerIndex[pixelX]
	switch {
	case current == -1:
	case spriteX < b.ownerX[pixelX]:
	case spriteX == b.ownerX[pixelX] && oamIndex < current:
	default:
		return
	}
	b.ownerIndex[pixelX] = oamIndex
	b.ownerX[pixelX] = spriteX
}

func (b *spritePriorityBuffer) owner(pixelX int) int {
	if pixelX < 0 || pixelX >= FramebufferWidth {
		return -1
	}
	return b.ownerIndex[pixelX]
}

// scanSprites collects up to 10 sprites overlapping the given scanline, in
// OAM order, and resolves per-pixel priority among them.
func (p *PPU) scanSprites(ly int) ([]sprite, *spritePriorityBuffer) {
	height := 8
	if p.lcdcBit(2) {
		height = 16
	}

	var found []sprite
	var buf spritePriorityBuffer
	buf.clear()

	for i := 0; i < 40 && len(found) < 10; i++ {
		base := i * 4
		rawY := int(p.oam[base])
		y := rawY - 16
		if !(y <= ly && ly < y+height) {
			continue
		}
		rawX := int(p.oam[base+1])
		s := sprite{
			y:         y,
			x:         rawX - 8,
			tileIndex: p.oam[base+2],
			flags:     p.oam[base+3],
			oamIndex:  i,
		}
		found = append(found, s)
		for px := 0; px < 8; px++ {
			buf.tryClaim(s.x+px, s.oamIndex, s.x)
		}
	}

	return found, &buf
}
