package wire

import (
	"bytes"
	"encoding/binary"
)

// Writer accumulates encoded bytes during record serialization.
type Writer struct {
	buf *bytes.Buffer
}

// NewWriter creates a new Writer.
func NewWriter() *Writer {
	return &Writer{buf: &bytes.Buffer{}}
}

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Byte writes a single byte.
func (w *Writer) Byte(b byte) {
	w.buf.WriteByte(b)
}

// WriteBytes writes a byte slice.
func (w *Writer) WriteBytes(data []byte) {
	w.buf.Write(data)
}

// PutUint writes v as a width-byte unsigned integer in the given byte order.
func (w *Writer) PutUint(order binary.ByteOrder, width int, v uint64) {
	var buf [8]byte
	PutUint(buf[:width], order, v)
	w.buf.Write(buf[:width])
}

// ZeroPadTo writes zero bytes until the writer holds n bytes. It does
// nothing when n bytes were already written.
func (w *Writer) ZeroPadTo(n int) {
	for w.buf.Len() < n {
		w.buf.WriteByte(0)
	}
}
