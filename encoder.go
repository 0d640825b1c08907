package framesocket

import (
	"encoding/binary"
	"errors"
)

// ErrPayloadTooLarge is returned when a payload does not fit the 32-bit length field.
var ErrPayloadTooLarge = errors.New("payload exceeds 32-bit length field")

// Encode produces the wire form of a frame: the type byte, the big-endian
// payload length and the payload verbatim.
func Encode(typ byte, payload []byte) ([]byte, error) {
	return AppendFrame(make([]byte, 0, HeaderSize+len(payload)), typ, payload)
}

// AppendFrame appends the wire form of a frame to dst and returns the extended buffer.
func AppendFrame(dst []byte, typ byte, payload []byte) ([]byte, error) {
	if err := checkPayloadLength(uint64(len(payload))); err != nil {
		return dst, err
	}

	dst = append(dst, typ)
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...), nil
}

func checkPayloadLength(n uint64) error {
	if n > MaxPayloadLength {
		return ErrPayloadTooLarge
	}
	return nil
}
