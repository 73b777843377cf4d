package region

import (
	"encoding/binary"
	"fmt"

	"github.com/spaolacci/murmur3"

	"github.com/yndnr/picoretain/internal/core/domain"
)

// Header constants.
const (
	Magic         uint16 = 0x5A52
	FormatVersion uint16 = 1
	HeaderSize           = 12
)

// Status describes what a region header says about its body.
type Status int

const (
	StatusValid Status = iota
	StatusEmpty
	StatusBadMagic
	StatusBadVersion
	StatusBadLength
	StatusBadChecksum
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusEmpty:
		return "empty"
	case StatusBadMagic:
		return "bad_magic"
	case StatusBadVersion:
		return "bad_version"
	case StatusBadLength:
		return "bad_length"
	case StatusBadChecksum:
		return "bad_checksum"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Header is the decoded region header.
type Header struct {
	Magic    uint16 `json:"magic" yaml:"magic"`
	Version  uint16 `json:"version" yaml:"version"`
	Length   uint32 `json:"length" yaml:"length"`
	Checksum uint32 `json:"checksum" yaml:"checksum"`
}

// ReadHeader decodes the header at the start of region without checking it.
func ReadHeader(region []byte) (Header, error) {
	if len(region) < HeaderSize {
		return Header{}, domain.ErrTruncatedData.WithDetailsf(
			"region of %d bytes has no room for a header", len(region))
	}
	return Header{
		Magic:    binary.LittleEndian.Uint16(region[0:2]),
		Version:  binary.LittleEndian.Uint16(region[2:4]),
		Length:   binary.LittleEndian.Uint32(region[4:8]),
		Checksum: binary.LittleEndian.Uint32(region[8:12]),
	}, nil
}

// Check classifies the region header.
func Check(region []byte) Status {
	h, err := ReadHeader(region)
	if err != nil {
		return StatusBadLength
	}
	switch {
	case h == (Header{}):
		return StatusEmpty
	case h.Magic != Magic:
		return StatusBadMagic
	case h.Version != FormatVersion:
		return StatusBadVersion
	case int(h.Length) > len(region)-HeaderSize:
		return StatusBadLength
	}
	body := region[HeaderSize : HeaderSize+int(h.Length)]
	if murmur3.Sum32(body) != h.Checksum {
		return StatusBadChecksum
	}
	return StatusValid
}

// Seal copies body behind the header and then writes the header. The header
// is written last so an interrupted seal never looks valid.
func Seal(region, body []byte) error {
	if len(region) < HeaderSize || len(body) > len(region)-HeaderSize {
		return domain.ErrRegionOverflow.WithDetailsf(
			"body of %d bytes, region of %d bytes", len(body), len(region))
	}
	Invalidate(region)
	copy(region[HeaderSize:], body)
	binary.LittleEndian.PutUint16(region[0:2], Magic)
	binary.LittleEndian.PutUint16(region[2:4], FormatVersion)
	binary.LittleEndian.PutUint32(region[4:8], uint32(len(body)))
	binary.LittleEndian.PutUint32(region[8:12], murmur3.Sum32(body))
	return nil
}

// Open validates the header and returns the body. The body aliases region.
// Any mismatch is reported as ErrTruncatedData so the caller discards the
// region.
func Open(region []byte) ([]byte, error) {
	if st := Check(region); st != StatusValid {
		return nil, domain.ErrTruncatedData.WithDetailsf("region header %s", st)
	}
	h, _ := ReadHeader(region)
	return region[HeaderSize : HeaderSize+int(h.Length)], nil
}

// Invalidate zeroes the header so the region reads as empty.
func Invalidate(region []byte) {
	n := HeaderSize
	if len(region) < n {
		n = len(region)
	}
	clear(region[:n])
}
