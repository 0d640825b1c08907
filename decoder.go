package framesocket

import (
	"encoding/binary"
	"errors"
)

// ErrFrameTooLarge is returned when a frame header declares a payload longer
// than the decoder's configured maximum. The stream cannot be resynchronized
// after this error and the connection should be closed.
var ErrFrameTooLarge = errors.New("frame too large")

// Decoder reassembles frames from an arbitrarily chunked byte stream.
//
// A Decoder owns the connection buffer of exactly one stream and is not safe
// for concurrent use.
type Decoder struct {
	buf       []byte
	maxLength uint32
}

// NewDecoder creates a Decoder that rejects frames whose declared payload
// length exceeds maxLength. A maxLength of zero or less leaves only the
// limit imposed by the 32-bit length field.
func NewDecoder(maxLength int) *Decoder {
	d := &Decoder{maxLength: MaxPayloadLength}
	if maxLength > 0 && uint64(maxLength) < MaxPayloadLength {
		d.maxLength = uint32(maxLength)
	}
	return d
}

// Feed appends p to the connection buffer and extracts every frame that is
// now complete, in arrival order. consumed is the number of buffered bytes
// that were turned into frames by this call. A trailing partial frame,
// header included, is retained for the next call.
//
// When a header declares a payload above the configured maximum, Feed
// returns the frames decoded before it together with ErrFrameTooLarge.
func (d *Decoder) Feed(p []byte) (frames []Frame, consumed int, err error) {
	d.buf = append(d.buf, p...)

	off := 0
	for len(d.buf)-off >= HeaderSize {
		typ := d.buf[off]
		length := binary.BigEndian.Uint32(d.buf[off+1 : off+HeaderSize])
		if length > d.maxLength {
			err = ErrFrameTooLarge
			break
		}

		if uint64(len(d.buf)-off) < HeaderSize+uint64(length) {
			break
		}
		end := off + HeaderSize + int(length)

		payload := make([]byte, length)
		copy(payload, d.buf[off+HeaderSize:end])
		frames = append(frames, Frame{Type: typ, Payload: payload})
		off = end
	}

	d.compact(off)
	return frames, off, err
}

// compact drops the first n bytes of the buffer.
func (d *Decoder) compact(n int) {
	if n == 0 {
		return
	}
	if n == len(d.buf) {
		d.buf = d.buf[:0]
		return
	}
	remaining := copy(d.buf, d.buf[n:])
	d.buf = d.buf[:remaining]
}

// Buffered returns the number of bytes held for a frame that is not yet complete.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset discards any buffered bytes.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}
