package video

// renderScanline rasterizes the background, window, and sprites for the
// current LY into the framebuffer. Called once per scanline, at the
// HBlank boundary, rather than pixel-by-pixel, per the spec's scanline
// renderer model (a FIFO implementation would be a stricter refinement).
func (p *PPU) renderScanline() {
	ly := int(p.ly)
	if ly >= FramebufferHeight {
		return
	}

	var bgColorIndex [FramebufferWidth]int

	if p.lcdcBit(0) {
		p.renderBackground(ly, &bgColorIndex)
		if p.lcdcBit(5) {
			p.renderWindow(ly, &bgColorIndex)
		}
	} else {
		for x := 0; x < FramebufferWidth; x++ {
			p.fb.set(x, ly, 0)
		}
	}

	if p.lcdcBit(1) {
		p.renderSprites(ly, &bgColorIndex)
	}
}

func (p *PPU) renderBackground(ly int, bgColorIndex *[FramebufferWidth]int) {
	mapBase := uint16(0x9800)
	if p.lcdcBit(3) {
		mapBase = 0x9C00
	}

	row := ((ly + int(p.scy)) & 0xFF) / 8
	tileY := (ly + int(p.scy)) & 7

	for colIndex := 0; colIndex < 20; colIndex++ {
		col := (colIndex + int(p.scx)/8) & 0x1F
		tileID := p.vram[mapBase-0x8000+uint16(row*32+col)]
		tr := p.fetchTileRow(tileID, tileY)

		for px := 0; px < 8; px++ {
			idx := tr.pixel(px, false)
			x := colIndex*8 + px - int(p.scx)%8
			if x < 0 || x >= FramebufferWidth {
				continue
			}
			bgColorIndex[x] = idx
			p.fb.set(x, ly, p.mapPalette(p.bgp, idx))
		}
	}
}

func (p *PPU) renderWindow(ly int, bgColorIndex *[FramebufferWidth]int) {
	wy := int(p.wy)
	wx := int(p.wx) - 7
	if ly < wy {
		return
	}

	mapBase := uint16(0x9800)
	if p.lcdcBit(6) {
		mapBase = 0x9C00
	}

	windowLine := ly - wy
	row := windowLine / 8
	tileY := windowLine & 7

	for colIndex := 0; colIndex*8+wx < FramebufferWidth; colIndex++ {
		tileID := p.vram[mapBase-0x8000+uint16(row*32+colIndex)]
		tr := p.fetchTileRow(tileID, tileY)

		for px := 0; px < 8; px++ {
			x := wx + colIndex*8 + px
			if x < 0 || x >= FramebufferWidth {
				continue
			}
			idx := tr.pixel(px, false)
			bgColorIndex[x] = idx
			p.fb.set(x, ly, p.mapPalette(p.bgp, idx))
		}
	}
}

func (p *PPU) renderSprites(ly int, bgColorIndex *[FramebufferWidth]int) {
	sprites, priority := p.scanSprites(ly)

	// Render in reverse OAM order so earlier (lower-index) entries end up
	// drawn last and win overlapping pixels where the priority buffer
	// doesn't otherwise decide, matching DMG's X-then-OAM-index priority.
	for i := len(sprites) - 1; i >= 0; i-- {
		s := sprites[i]
		height := 8
		if p.lcdcBit(2) {
			height = 16
		}

		rowInSprite := ly - s.y
		if s.flipY() {
			rowInSprite = height - 1 - rowInSprite
		}

		tileIndex := s.tileIndex
		if height == 16 {
			tileIndex &^= 0x01
			if rowInSprite >= 8 {
				tileIndex |= 0x01
				rowInSprite -= 8
			}
		}

		tr := p.fetchTileRowAbsolute(0x8000+uint16(tileIndex)*16, rowInSprite)

		palette := p.obp0
		if s.paletteOBP1() {
			palette = p.obp1
		}

		for px := 0; px < 8; px++ {
			x := s.x + px
			if x < 0 || x >= FramebufferWidth {
				continue
			}
			if priority.owner(x) != s.oamIndex {
				continue
			}
			idx := tr.pixel(px, s.flipX())
			if idx == 0 {
				continue
			}
			if s.behindBG() && bgColorIndex[x] != 0 {
				continue
			}
			p.fb.set(x, ly, p.mapPalette(palette, idx))
		}
	}
}

// fetchTileRow resolves a background/window tile ID through LCDC's
// addressing-mode bit (unsigned from 0x8000, or signed from 0x9000) and
// reads the row at tileY.
func (p *PPU) fetchTileRow(tileID byte, tileY int) tileRow {
	var base uint16
	if p.lcdcBit(4) {
		base = 0x8000 + uint16(tileID)*16
	} else {
		base = uint16(0x9000 + int32(int8(tileID))*16)
	}
	return p.fetchTileRowAbsolute(base, tileY)
}

func (p *PPU) fetchTileRowAbsolute(tileBase uint16, tileY int) tileRow {
	addr := tileBase - 0x8000 + uint16(tileY*2)
	return tileRow{low: p.vram[addr], high: p.vram[addr+1]}
}

func (p *PPU) mapPalette(palette byte, colorIndex int) Shade {
	return Shade((palette >> (uint(colorIndex) * 2)) & 0x03)
}
