package framesocket

import "fmt"

// HeaderSize is the number of bytes preceding every payload on the wire:
// one type byte followed by a 4-byte big-endian payload length.
const HeaderSize = 5

// MaxPayloadLength is the largest payload the 32-bit length field can declare.
const MaxPayloadLength = 1<<32 - 1

// Frame is one complete type+length+payload unit extracted from the stream.
type Frame struct {
	Type    byte
	Payload []byte
}

// NewFrame returns a frame of the given type carrying payload.
func NewFrame(typ byte, payload []byte) Frame {
	return Frame{Type: typ, Payload: payload}
}

// Length returns the length of the frame payload.
func (f Frame) Length() int {
	return len(f.Payload)
}

// Size returns the number of bytes the frame occupies on the wire.
func (f Frame) Size() int {
	return HeaderSize + len(f.Payload)
}

// MarshalBinary encodes the frame into its wire form.
func (f Frame) MarshalBinary() ([]byte, error) {
	return Encode(f.Type, f.Payload)
}

func (f Frame) String() string {
	return fmt.Sprintf("frame(type=0x%02x, length=%d)", f.Type, len(f.Payload))
}
