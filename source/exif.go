package source

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
)

// ErrNoMetadata is returned when an image carries no ImageDescription.
var ErrNoMetadata = errors.New("source: no image description")

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// ReadDescription returns the EXIF ImageDescription embedded in a JPEG (APP1)
// or PNG (eXIf chunk).
func ReadDescription(data []byte) (string, error) {
	payload := data
	if bytes.HasPrefix(data, pngSignature) {
		chunk, ok := pngChunk(data, "eXIf")
		if !ok {
			return "", ErrNoMetadata
		}
		payload = chunk
	}

	x, err := exif.Decode(bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoMetadata, err)
	}
	tag, err := x.Get(exif.ImageDescription)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoMetadata, err)
	}
	desc, err := tag.StringVal()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoMetadata, err)
	}
	return strings.TrimRight(desc, "\x00 "), nil
}

// pngChunk walks the chunk list and returns the first chunk of the given type.
func pngChunk(data []byte, typ string) ([]byte, bool) {
	off := len(pngSignature)
	for off+8 <= len(data) {
		n := int(binary.BigEndian.Uint32(data[off:]))
		name := string(data[off+4 : off+8])
		start := off + 8
		end := start + n
		if n < 0 || end+4 > len(data) {
			return nil, false
		}
		if name == typ {
			return data[start:end], true
		}
		if name == "IEND" {
			break
		}
		off = end + 4
	}
	return nil, false
}

// exifBlock builds a minimal little-endian TIFF structure holding one
// ImageDescription entry in IFD0.
func exifBlock(desc string) []byte {
	const (
		tagImageDescription = 0x010e
		typeASCII           = 2
		ifdOffset           = 8
		valueOffset         = ifdOffset + 2 + 12 + 4
	)
	val := append([]byte(desc), 0)

	var b bytes.Buffer
	b.WriteString("II*\x00")
	le := binary.LittleEndian
	_ = binary.Write(&b, le, uint32(ifdOffset))
	_ = binary.Write(&b, le, uint16(1))
	_ = binary.Write(&b, le, uint16(tagImageDescription))
	_ = binary.Write(&b, le, uint16(typeASCII))
	_ = binary.Write(&b, le, uint32(len(val)))
	if len(val) <= 4 {
		var inline [4]byte
		copy(inline[:], val)
		b.Write(inline[:])
	} else {
		_ = binary.Write(&b, le, uint32(valueOffset))
	}
	_ = binary.Write(&b, le, uint32(0))
	if len(val) > 4 {
		b.Write(val)
	}
	return b.Bytes()
}

// withJPEGDescription splices an APP1 Exif segment directly after SOI.
func withJPEGDescription(jpg []byte, desc string) ([]byte, error) {
	if len(jpg) < 2 || jpg[0] != 0xff || jpg[1] != 0xd8 {
		return nil, errors.New("source: not a jpeg stream")
	}
	payload := append([]byte("Exif\x00\x00"), exifBlock(desc)...)
	if len(payload)+2 > 0xffff {
		return nil, errors.New("source: description too long for APP1")
	}

	out := make([]byte, 0, len(jpg)+len(payload)+4)
	out = append(out, jpg[:2]...)
	out = append(out, 0xff, 0xe1)
	out = binary.BigEndian.AppendUint16(out, uint16(len(payload)+2))
	out = append(out, payload...)
	out = append(out, jpg[2:]...)
	return out, nil
}

// withPNGDescription inserts an eXIf chunk directly after IHDR.
func withPNGDescription(pngData []byte, desc string) ([]byte, error) {
	const ihdrEnd = 8 + 4 + 4 + 13 + 4
	if !bytes.HasPrefix(pngData, pngSignature) || len(pngData) < ihdrEnd {
		return nil, errors.New("source: not a png stream")
	}
	body := exifBlock(desc)

	chunk := binary.BigEndian.AppendUint32(nil, uint32(len(body)))
	chunk = append(chunk, "eXIf"...)
	chunk = append(chunk, body...)
	chunk = binary.BigEndian.AppendUint32(chunk, crc32.ChecksumIEEE(chunk[4:]))

	out := make([]byte, 0, len(pngData)+len(chunk))
	out = append(out, pngData[:ihdrEnd]...)
	out = append(out, chunk...)
	out = append(out, pngData[ihdrEnd:]...)
	return out, nil
}
