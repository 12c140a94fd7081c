package genotype

import (
	"encoding/binary"
	"fmt"
)

// Binary matrix format constants
const (
	MatrixMagic   uint32 = 0x47544D31 // "GTM1"
	MatrixVersion uint16 = 0x0100

	matrixHeaderSize = 12
)

// Kind tells what a serialized matrix holds
type Kind uint16

const (
	KindGenotype  Kind = 0x1
	KindBestState Kind = 0x2
)

// EncodeMatrix writes a matrix as a 12-byte little-endian header followed by
// one signed byte per entry, row major.
//
// Header layout: magic (4) | version (2) | kind (2) | rows (2) | cols (2)
func EncodeMatrix(m Matrix, kind Kind) ([]byte, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	rows, cols := m.Rows(), m.Cols()
	if rows > 0xFFFF || cols > 0xFFFF {
		return nil, fmt.Errorf("matrix %dx%d too large to encode", rows, cols)
	}

	buf := make([]byte, matrixHeaderSize, matrixHeaderSize+rows*cols)
	binary.LittleEndian.PutUint32(buf[0:4], MatrixMagic)
	binary.LittleEndian.PutUint16(buf[4:6], MatrixVersion)
	binary.LittleEndian.PutUint16(buf[6:8], uint16(kind))
	binary.LittleEndian.PutUint16(buf[8:10], uint16(rows))
	binary.LittleEndian.PutUint16(buf[10:12], uint16(cols))

	for r := range m {
		for _, v := range m[r] {
			if v < -128 || v > 127 {
				return nil, fmt.Errorf("matrix value %d does not fit a signed byte", v)
			}
			buf = append(buf, byte(int8(v)))
		}
	}
	return buf, nil
}

// DecodeMatrix reads the EncodeMatrix format
func DecodeMatrix(data []byte) (Matrix, Kind, error) {
	if len(data) < matrixHeaderSize {
		return nil, 0, fmt.Errorf("matrix data too short: %d bytes", len(data))
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != MatrixMagic {
		return nil, 0, fmt.Errorf("invalid matrix magic: 0x%08X", magic)
	}
	if version := binary.LittleEndian.Uint16(data[4:6]); version != MatrixVersion {
		return nil, 0, fmt.Errorf("unsupported matrix version: 0x%04X", version)
	}
	kind := Kind(binary.LittleEndian.Uint16(data[6:8]))
	rows := int(binary.LittleEndian.Uint16(data[8:10]))
	cols := int(binary.LittleEndian.Uint16(data[10:12]))

	payload := data[matrixHeaderSize:]
	if len(payload) != rows*cols {
		return nil, 0, fmt.Errorf("matrix payload has %d bytes, expected %d", len(payload), rows*cols)
	}

	m := NewMatrix(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			m[r][c] = int(int8(payload[r*cols+c]))
		}
	}
	return m, kind, nil
}
