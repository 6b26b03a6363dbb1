package cartridge

import "fmt"

// UnsupportedMapperError is returned when a cartridge header names a mapper
// family this core does not implement.
type UnsupportedMapperError struct {
	Type Type
}

func (e *UnsupportedMapperError) Error() string {
	return fmt.Sprintf("cartridge: unsupported mapper type 0x%02X", uint8(e.Type))
}

// Cartridge wraps a parsed header together with the mapper it selects, and
// is the thing the bus actually talks to for the ROM (0x0000-0x7FFF) and
// external RAM (0xA000-0xBFFF) windows.
type Cartridge struct {
	Header Header
	mapper Mapper
}

// Load parses the header out of rom and constructs the mapper the header's
// cartridge type byte calls for.
func Load(rom []byte) (*Cartridge, error) {
	header, err := ParseHeader(rom)
	if err != nil {
		return nil, err
	}

	mapper, err := newMapper(header, rom)
	if err != nil {
		return nil, err
	}

	return &Cartridge{Header: header, mapper: mapper}, nil
}

func newMapper(h Header, rom []byte) (Mapper, error) {
	switch h.CartridgeType {
	case TypeROMOnly:
		return NewNoMBC(rom), nil
	case TypeMBC1, TypeMBC1RAM, TypeMBC1RAMBT:
		return NewMBC1(rom, h.RAMSize), nil
	case TypeMBC2, TypeMBC2Batt:
		return NewMBC2(rom), nil
	case TypeMBC3RTCBt, TypeMBC3RTCR:
		return NewMBC3(rom, h.RAMSize, true), nil
	case TypeMBC3, TypeMBC3RAM, TypeMBC3RAMBt:
		return NewMBC3(rom, h.RAMSize, false), nil
	case TypeMBC5, TypeMBC5RAM, TypeMBC5RAMBt:
		return NewMBC5(rom, h.RAMSize), nil
	default:
		return nil, &UnsupportedMapperError{Type: h.CartridgeType}
	}
}

// Owns reports whether address falls within a range the cartridge is
// responsible for (ROM or external RAM), as opposed to console-owned
// memory the bus must handle itself.
func Owns(address uint16) bool {
	return address <= 0x7FFF || (address >= 0xA000 && address <= 0xBFFF)
}

// Read resolves a ROM or external-RAM address through the selected mapper.
// The caller is expected to have checked Owns(address) first.
func (c *Cartridge) Read(address uint16) byte {
	return c.mapper.Read(address)
}

// Write forwards a ROM or external-RAM address to the selected mapper,
// which may treat it as a banking-register write rather than real storage.
func (c *Cartridge) Write(address uint16, value byte) {
	c.mapper.Write(address, value)
}
