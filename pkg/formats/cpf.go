package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"math/bits"
	"os"

	pmath "github.com/Faultbox/pointbake/pkg/math"
)

// 3CPF layout constants.
const (
	CPFMagic      = "3CPF"
	CPFVersion    = 1
	CPFHeaderSize = 20

	// CPFColorStride is the size of one point's RGB color.
	CPFColorStride = 3
	// CPFPositionStride is the size of one point's position in one frame.
	CPFPositionStride = 12
)

// 3CPF format errors.
var (
	ErrInvalidCPFMagic       = errors.New("invalid 3CPF magic: expected '3CPF'")
	ErrUnsupportedCPFVersion = errors.New("unsupported 3CPF version")
	ErrTruncatedCPFData      = errors.New("truncated 3CPF data")
	ErrCPFSizeMismatch       = errors.New("3CPF payload size does not match header counts")
	ErrCPFChecksumMismatch   = errors.New("3CPF checksum mismatch")
)

// CPFHeader is the fixed 20-byte header of a 3CPF file.
type CPFHeader struct {
	Version    uint32
	Checksum   uint32
	PointCount uint32
	FrameCount uint32
}

// CPF is a decoded 3CPF animated point cloud.
type CPF struct {
	Header CPFHeader
	// Colors holds 3 bytes per point in point order.
	Colors []byte
	// Frames holds 12 bytes per point per frame, frame-major.
	Frames []byte
}

// CPFSize returns the exact encoded size for the given counts. It does not
// guard against overflow; sizes read from a header are checked by ParseCPF.
func CPFSize(pointCount, frameCount int) int {
	return CPFHeaderSize + CPFColorStride*pointCount + CPFPositionStride*pointCount*frameCount
}

// CPFChecksum returns the CRC-32 of the color section followed by the frame section.
func CPFChecksum(colors, frames []byte) uint32 {
	h := crc32.NewIEEE()
	h.Write(colors)
	h.Write(frames)
	return h.Sum32()
}

// AppendCPFPosition appends one little-endian float32 position to buf.
func AppendCPFPosition(buf []byte, p pmath.Vec3) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(p.X))
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(p.Y))
	return binary.LittleEndian.AppendUint32(buf, math.Float32bits(p.Z))
}

// cpfSections returns the color and frame section sizes implied by the
// header counts. ok is false when the frame section does not fit in 64 bits.
func cpfSections(pointCount, frameCount uint32) (colors, frames uint64, ok bool) {
	colors = CPFColorStride * uint64(pointCount)
	hi, lo := bits.Mul64(CPFPositionStride*uint64(pointCount), uint64(frameCount))
	return colors, lo, hi == 0
}

func checkCPFSections(colors, frames []byte, pointCount, frameCount uint32) error {
	wantColors, wantFrames, ok := cpfSections(pointCount, frameCount)
	if uint64(len(colors)) != wantColors {
		return fmt.Errorf("%w: %d color bytes for %d points", ErrCPFSizeMismatch, len(colors), pointCount)
	}
	if !ok || uint64(len(frames)) != wantFrames {
		return fmt.Errorf("%w: %d frame bytes for %d points over %d frames", ErrCPFSizeMismatch, len(frames), pointCount, frameCount)
	}
	return nil
}

// WriteCPF writes a complete 3CPF stream. The checksum is computed over the
// payload before any header byte is written.
func WriteCPF(w io.Writer, colors, frames []byte, pointCount, frameCount uint32) error {
	if err := checkCPFSections(colors, frames, pointCount, frameCount); err != nil {
		return err
	}

	header := CPFHeader{
		Version:    CPFVersion,
		Checksum:   CPFChecksum(colors, frames),
		PointCount: pointCount,
		FrameCount: frameCount,
	}

	if _, err := io.WriteString(w, CPFMagic); err != nil {
		return fmt.Errorf("writing magic: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := w.Write(colors); err != nil {
		return fmt.Errorf("writing colors: %w", err)
	}
	if _, err := w.Write(frames); err != nil {
		return fmt.Errorf("writing frames: %w", err)
	}
	return nil
}

// EncodeCPF returns the 3CPF encoding of the given sections.
func EncodeCPF(colors, frames []byte, pointCount, frameCount uint32) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, CPFHeaderSize+len(colors)+len(frames)))
	if err := WriteCPF(buf, colors, frames, pointCount, frameCount); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseCPF parses and verifies a 3CPF file from raw bytes.
func ParseCPF(data []byte) (*CPF, error) {
	if len(data) < CPFHeaderSize {
		return nil, ErrTruncatedCPFData
	}

	if string(data[0:4]) != CPFMagic {
		return nil, ErrInvalidCPFMagic
	}

	var header CPFHeader
	if err := binary.Read(bytes.NewReader(data[4:CPFHeaderSize]), binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: reading header", ErrTruncatedCPFData)
	}

	if header.Version != CPFVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedCPFVersion, header.Version)
	}

	// Counts are untrusted; compare in uint64 before slicing.
	payload := uint64(len(data) - CPFHeaderSize)
	colorSize, frameSize, ok := cpfSections(header.PointCount, header.FrameCount)
	if !ok || colorSize > payload || frameSize > payload-colorSize {
		return nil, fmt.Errorf("%w: have %d bytes for %d points over %d frames",
			ErrTruncatedCPFData, len(data), header.PointCount, header.FrameCount)
	}
	if extra := payload - colorSize - frameSize; extra > 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCPFSizeMismatch, extra)
	}

	colorEnd := CPFHeaderSize + int(colorSize)
	cpf := &CPF{
		Header: header,
		Colors: data[CPFHeaderSize:colorEnd],
		Frames: data[colorEnd:],
	}

	if sum := crc32.ChecksumIEEE(data[CPFHeaderSize:]); sum != header.Checksum {
		return nil, fmt.Errorf("%w: header 0x%08x, payload 0x%08x", ErrCPFChecksumMismatch, header.Checksum, sum)
	}

	return cpf, nil
}

// ParseCPFFile parses a 3CPF file from disk.
func ParseCPFFile(path string) (*CPF, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading 3CPF file: %w", err)
	}
	return ParseCPF(data)
}

// Size returns the encoded size of the file in bytes.
func (c *CPF) Size() int64 {
	return int64(CPFHeaderSize + len(c.Colors) + len(c.Frames))
}

// Color returns the RGB color of point i.
func (c *CPF) Color(i int) [3]byte {
	off := i * CPFColorStride
	return [3]byte{c.Colors[off], c.Colors[off+1], c.Colors[off+2]}
}

// Position returns the position of point i in frame f.
func (c *CPF) Position(f, i int) pmath.Vec3 {
	off := (f*int(c.Header.PointCount) + i) * CPFPositionStride
	return pmath.Vec3{
		X: math.Float32frombits(binary.LittleEndian.Uint32(c.Frames[off:])),
		Y: math.Float32frombits(binary.LittleEndian.Uint32(c.Frames[off+4:])),
		Z: math.Float32frombits(binary.LittleEndian.Uint32(c.Frames[off+8:])),
	}
}

// Bounds returns the axis-aligned bounds of every position in every frame.
func (c *CPF) Bounds() (min, max pmath.Vec3) {
	frames := int(c.Header.FrameCount)
	points := int(c.Header.PointCount)
	if frames == 0 || points == 0 {
		return pmath.Vec3{}, pmath.Vec3{}
	}

	min = c.Position(0, 0)
	max = min
	for f := 0; f < frames; f++ {
		for i := 0; i < points; i++ {
			p := c.Position(f, i)
			min = min.Min(p)
			max = max.Max(p)
		}
	}
	return min, max
}
