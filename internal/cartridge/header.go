package cartridge

import (
	"fmt"
	"strings"
)

// Header offsets within the ROM image, per the DMG boot protocol.
const (
	titleAddr          = 0x0134
	titleLength        = 16
	cartridgeTypeAddr  = 0x0147
	romSizeCodeAddr    = 0x0148
	ramSizeCodeAddr    = 0x0149
	headerChecksumAddr = 0x014D
	// HeaderEnd is the first byte past the parsed header.
	HeaderEnd = 0x0150
)

// romSizes maps the ROM size code at 0x0148 to the ROM image size in bytes.
var romSizes = [9]int{
	32 * 1024, 64 * 1024, 128 * 1024, 256 * 1024, 512 * 1024,
	1024 * 1024, 2 * 1024 * 1024, 4 * 1024 * 1024, 8 * 1024 * 1024,
}

// ramSizes maps the RAM size code at 0x0149 to the external RAM size in bytes.
var ramSizes = [6]int{0, 0, 8 * 1024, 32 * 1024, 128 * 1024, 64 * 1024}

// Type identifies the mapper family encoded in the cartridge header byte.
type Type uint8

const (
	TypeROMOnly   Type = 0x00
	TypeMBC1      Type = 0x01
	TypeMBC1RAM   Type = 0x02
	TypeMBC1RAMBT Type = 0x03
	TypeMBC2      Type = 0x05
	TypeMBC2Batt  Type = 0x06
	TypeMBC3RTCBt Type = 0x0F
	TypeMBC3RTCR  Type = 0x10
	TypeMBC3      Type = 0x11
	TypeMBC3RAM   Type = 0x12
	TypeMBC3RAMBt Type = 0x13
	TypeMBC5      Type = 0x19
	TypeMBC5RAM   Type = 0x1A
	TypeMBC5RAMBt Type = 0x1B
)

// Header is the subset of the cartridge header (0x0100-0x014F) the core
// parses; everything else (entry point stub, Nintendo logo, licensee codes,
// global checksum) is outside the core's concern. The header checksum byte
// is kept because it selects the post-boot value of AF.
type Header struct {
	Title          string
	CartridgeType  Type
	ROMSizeCode    byte
	RAMSizeCode    byte
	ROMSize        int
	RAMSize        int
	HeaderChecksum byte
}

// ParseHeader reads the header fields out of a ROM image and validates the
// declared ROM size against the image's actual length.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderEnd {
		return Header{}, fmt.Errorf("cartridge: truncated ROM, need at least %d bytes, got %d", HeaderEnd, len(data))
	}

	romCode := data[romSizeCodeAddr]
	if int(romCode) >= len(romSizes) {
		return Header{}, fmt.Errorf("cartridge: invalid ROM size code 0x%02X", romCode)
	}
	romSize := romSizes[romCode]
	if len(data) < romSize {
		return Header{}, fmt.Errorf("cartridge: truncated ROM, header declares %d bytes, image has %d", romSize, len(data))
	}

	ramCode := data[ramSizeCodeAddr]
	if int(ramCode) >= len(ramSizes) {
		return Header{}, fmt.Errorf("cartridge: invalid RAM size code 0x%02X", ramCode)
	}

	h := Header{
		Title:          cleanTitle(data[titleAddr : titleAddr+titleLength]),
		CartridgeType:  Type(data[cartridgeTypeAddr]),
		ROMSizeCode:    romCode,
		RAMSizeCode:    ramCode,
		ROMSize:        romSize,
		RAMSize:        ramSizes[ramCode],
		HeaderChecksum: data[headerChecksumAddr],
	}
	return h, nil
}

// cleanTitle strips trailing NUL padding and surrounding whitespace from the
// 16-byte title field; other non-printable bytes are kept.
func cleanTitle(raw []byte) string {
	end := len(raw)
	for end > 0 && raw[end-1] == 0 {
		end--
	}
	return strings.TrimSpace(string(raw[:end]))
}
