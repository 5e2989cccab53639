package streamkit

import (
	"encoding/binary"
	"io"
	"math"
	"slices"
)

// BinaryReader decodes fixed-size values from a stream in a chosen byte
// order. A nil order selects the host byte order.
//
// A value cut short by the end of the stream fails with io.ErrUnexpectedEOF;
// io.EOF is only returned when no byte of the value was available.
type BinaryReader struct {
	r     Reader
	order binary.ByteOrder
	buf   [8]byte
}

// NewBinaryReader returns a BinaryReader reading from r.
func NewBinaryReader(r Reader, order binary.ByteOrder) *BinaryReader {
	if order == nil {
		order = binary.NativeEndian
	}
	return &BinaryReader{r: r, order: order}
}

func (br *BinaryReader) fill(n int) ([]byte, error) {
	b := br.buf[:n]
	if _, err := io.ReadFull(br.r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (br *BinaryReader) ReadUint8() (uint8, error) {
	b, err := br.fill(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (br *BinaryReader) ReadUint16() (uint16, error) {
	b, err := br.fill(2)
	if err != nil {
		return 0, err
	}
	return br.order.Uint16(b), nil
}

func (br *BinaryReader) ReadUint32() (uint32, error) {
	b, err := br.fill(4)
	if err != nil {
		return 0, err
	}
	return br.order.Uint32(b), nil
}

func (br *BinaryReader) ReadUint64() (uint64, error) {
	b, err := br.fill(8)
	if err != nil {
		return 0, err
	}
	return br.order.Uint64(b), nil
}

func (br *BinaryReader) ReadInt8() (int8, error) {
	v, err := br.ReadUint8()
	return int8(v), err
}

func (br *BinaryReader) ReadInt16() (int16, error) {
	v, err := br.ReadUint16()
	return int16(v), err
}

func (br *BinaryReader) ReadInt32() (int32, error) {
	v, err := br.ReadUint32()
	return int32(v), err
}

func (br *BinaryReader) ReadInt64() (int64, error) {
	v, err := br.ReadUint64()
	return int64(v), err
}

func (br *BinaryReader) ReadFloat32() (float32, error) {
	v, err := br.ReadUint32()
	return math.Float32frombits(v), err
}

func (br *BinaryReader) ReadFloat64() (float64, error) {
	v, err := br.ReadUint64()
	return math.Float64frombits(v), err
}

func (br *BinaryReader) ReadBool() (bool, error) {
	v, err := br.ReadUint8()
	return v != 0, err
}

// readBytesChunk caps how much ReadBytes allocates ahead of the data, so a
// corrupt length prefix cannot force a huge allocation.
const readBytesChunk = 64 * 1024

// ReadBytes reads exactly n bytes.
func (br *BinaryReader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, NewError("read", "", ErrInvalidRange, nil)
	}
	b := make([]byte, 0, min(n, readBytesChunk))
	for len(b) < n {
		if len(b) == cap(b) {
			b = slices.Grow(b, min(n-len(b), cap(b)))
		}
		k := min(n, cap(b))
		m, err := io.ReadFull(br.r, b[len(b):k])
		b = b[:len(b)+m]
		if err != nil {
			if err == io.EOF && len(b) > 0 {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
	return b, nil
}

// ReadUvarint decodes an unsigned LEB128 varint.
func (br *BinaryReader) ReadUvarint() (uint64, error) {
	return binary.ReadUvarint(byteReader{br})
}

// Read decodes a fixed-size value or slice of fixed-size values into data,
// as binary.Read does.
func (br *BinaryReader) Read(data any) error {
	return binary.Read(br.r, br.order, data)
}

type byteReader struct{ br *BinaryReader }

func (b byteReader) ReadByte() (byte, error) { return b.br.ReadUint8() }

// BinaryWriter encodes fixed-size values to a stream in a chosen byte
// order. A nil order selects the host byte order.
type BinaryWriter struct {
	w     Writer
	order binary.ByteOrder
	buf   [binary.MaxVarintLen64]byte
}

// NewBinaryWriter returns a BinaryWriter writing to w.
func NewBinaryWriter(w Writer, order binary.ByteOrder) *BinaryWriter {
	if order == nil {
		order = binary.NativeEndian
	}
	return &BinaryWriter{w: w, order: order}
}

func (bw *BinaryWriter) flush(n int) error {
	_, err := WriteAll(bw.w, bw.buf[:n])
	return err
}

func (bw *BinaryWriter) WriteUint8(v uint8) error {
	bw.buf[0] = v
	return bw.flush(1)
}

func (bw *BinaryWriter) WriteUint16(v uint16) error {
	bw.order.PutUint16(bw.buf[:2], v)
	return bw.flush(2)
}

func (bw *BinaryWriter) WriteUint32(v uint32) error {
	bw.order.PutUint32(bw.buf[:4], v)
	return bw.flush(4)
}

func (bw *BinaryWriter) WriteUint64(v uint64) error {
	bw.order.PutUint64(bw.buf[:8], v)
	return bw.flush(8)
}

func (bw *BinaryWriter) WriteInt8(v int8) error   { return bw.WriteUint8(uint8(v)) }
func (bw *BinaryWriter) WriteInt16(v int16) error { return bw.WriteUint16(uint16(v)) }
func (bw *BinaryWriter) WriteInt32(v int32) error { return bw.WriteUint32(uint32(v)) }
func (bw *BinaryWriter) WriteInt64(v int64) error { return bw.WriteUint64(uint64(v)) }

func (bw *BinaryWriter) WriteFloat32(v float32) error {
	return bw.WriteUint32(math.Float32bits(v))
}

func (bw *BinaryWriter) WriteFloat64(v float64) error {
	return bw.WriteUint64(math.Float64bits(v))
}

func (bw *BinaryWriter) WriteBool(v bool) error {
	if v {
		return bw.WriteUint8(1)
	}
	return bw.WriteUint8(0)
}

// WriteBytes writes p in full.
func (bw *BinaryWriter) WriteBytes(p []byte) error {
	_, err := WriteAll(bw.w, p)
	return err
}

// WriteUvarint encodes v as an unsigned LEB128 varint.
func (bw *BinaryWriter) WriteUvarint(v uint64) error {
	n := binary.PutUvarint(bw.buf[:], v)
	return bw.flush(n)
}

// Write encodes data as binary.Write does.
func (bw *BinaryWriter) Write(data any) error {
	return binary.Write(bw.w, bw.order, data)
}
