package framesocket

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"reflect"
	"testing"
)

func mustEncode(t *testing.T, typ byte, payload []byte) []byte {
	t.Helper()
	data, err := Encode(typ, payload)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return data
}

func encodeAll(t *testing.T, frames []Frame) []byte {
	t.Helper()
	var stream []byte
	for _, f := range frames {
		stream = append(stream, mustEncode(t, f.Type, f.Payload)...)
	}
	return stream
}

// normalize turns nil payloads into empty ones so frames compare by content.
func normalize(frames []Frame) []Frame {
	out := make([]Frame, len(frames))
	for i, f := range frames {
		out[i] = Frame{Type: f.Type, Payload: append([]byte{}, f.Payload...)}
	}
	return out
}

func testFrames() []Frame {
	return []Frame{
		{Type: 0x04, Payload: []byte(`{"username":"testuser","password":"testpass"}`)},
		{Type: 0x99, Payload: []byte("ignored")},
		{Type: 0x00, Payload: nil},
		{Type: 0x03, Payload: bytes.Repeat([]byte{0xAB}, 300)},
		{Type: 0xFF, Payload: []byte{0}},
	}
}

func TestDecoder_RoundTrip(t *testing.T) {
	for _, f := range testFrames() {
		d := NewDecoder(0)

		frames, consumed, err := d.Feed(mustEncode(t, f.Type, f.Payload))
		if err != nil {
			t.Fatalf("Feed failed: %v", err)
		}

		if !reflect.DeepEqual(normalize(frames), normalize([]Frame{f})) {
			t.Errorf("decoded %v, want %v", frames, f)
		}
		if consumed != f.Size() {
			t.Errorf("consumed = %d, want %d", consumed, f.Size())
		}
		if d.Buffered() != 0 {
			t.Errorf("Buffered = %d, want 0", d.Buffered())
		}
	}
}

func TestDecoder_ZeroLengthPayload(t *testing.T) {
	d := NewDecoder(0)

	frames, consumed, err := d.Feed([]byte{0x04, 0, 0, 0, 0})
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}

	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if frames[0].Type != 0x04 || len(frames[0].Payload) != 0 {
		t.Errorf("got %v, want empty frame of type 0x04", frames[0])
	}
	if consumed != HeaderSize {
		t.Errorf("consumed = %d, want %d", consumed, HeaderSize)
	}
}

func TestDecoder_PartialFrameRetention(t *testing.T) {
	f := Frame{Type: 0x04, Payload: []byte(`{"username":"a","password":"b"}`)}
	data := mustEncode(t, f.Type, f.Payload)

	for k := 1; k < len(data); k++ {
		d := NewDecoder(0)

		frames, consumed, err := d.Feed(data[:k])
		if err != nil {
			t.Fatalf("k=%d: Feed failed: %v", k, err)
		}
		if len(frames) != 0 || consumed != 0 {
			t.Fatalf("k=%d: got %d frames, consumed %d; want none", k, len(frames), consumed)
		}
		if d.Buffered() != k {
			t.Fatalf("k=%d: Buffered = %d", k, d.Buffered())
		}

		frames, consumed, err = d.Feed(data[k:])
		if err != nil {
			t.Fatalf("k=%d: second Feed failed: %v", k, err)
		}
		if !reflect.DeepEqual(normalize(frames), normalize([]Frame{f})) {
			t.Fatalf("k=%d: decoded %v, want %v", k, frames, f)
		}
		if consumed != len(data) {
			t.Fatalf("k=%d: consumed = %d, want %d", k, consumed, len(data))
		}
	}
}

func TestDecoder_ChunkingInvariance(t *testing.T) {
	want := testFrames()
	stream := encodeAll(t, want)

	// Every single split point.
	for split := 1; split < len(stream); split++ {
		d := NewDecoder(0)
		first, _, _ := d.Feed(stream[:split])
		second, _, _ := d.Feed(stream[split:])
		got := append(first, second...)
		if !reflect.DeepEqual(normalize(got), normalize(want)) {
			t.Fatalf("split=%d: decoded %v, want %v", split, got, want)
		}
	}

	// Random chunk sequences, including single-byte feeds.
	rng := rand.New(rand.NewSource(1))
	for round := 0; round < 200; round++ {
		d := NewDecoder(0)
		var got []Frame
		total := 0

		for off := 0; off < len(stream); {
			n := 1 + rng.Intn(16)
			if round%10 == 0 {
				n = 1
			}
			if off+n > len(stream) {
				n = len(stream) - off
			}
			frames, consumed, err := d.Feed(stream[off : off+n])
			if err != nil {
				t.Fatalf("round %d: Feed failed: %v", round, err)
			}
			got = append(got, frames...)
			total += consumed
			off += n
		}

		if !reflect.DeepEqual(normalize(got), normalize(want)) {
			t.Fatalf("round %d: decoded %v, want %v", round, got, want)
		}
		if total != len(stream) || d.Buffered() != 0 {
			t.Fatalf("round %d: consumed %d of %d, %d buffered", round, total, len(stream), d.Buffered())
		}
	}
}

func TestDecoder_CoalescedFrames(t *testing.T) {
	want := []Frame{
		{Type: 0x04, Payload: []byte(`{"username":"a","password":"b"}`)},
		{Type: 0x04, Payload: []byte(`{"username":"","password":"x"}`)},
	}
	stream := encodeAll(t, want)
	// A trailing partial header stays buffered.
	stream = append(stream, 0x04, 0x00)

	d := NewDecoder(0)
	frames, consumed, err := d.Feed(stream)
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}

	if !reflect.DeepEqual(normalize(frames), normalize(want)) {
		t.Errorf("decoded %v, want %v", frames, want)
	}
	if consumed != len(stream)-2 {
		t.Errorf("consumed = %d, want %d", consumed, len(stream)-2)
	}
	if d.Buffered() != 2 {
		t.Errorf("Buffered = %d, want 2", d.Buffered())
	}
}

func TestDecoder_PayloadDoesNotAliasBuffer(t *testing.T) {
	d := NewDecoder(0)

	frames, _, err := d.Feed(mustEncode(t, 0x01, []byte("first")))
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}

	if _, _, err := d.Feed(mustEncode(t, 0x02, []byte("XXXXX"))); err != nil {
		t.Fatalf("Feed failed: %v", err)
	}

	if string(frames[0].Payload) != "first" {
		t.Errorf("payload changed to %q after next Feed", frames[0].Payload)
	}
}

func TestDecoder_FrameTooLarge(t *testing.T) {
	d := NewDecoder(16)

	ok := mustEncode(t, 0x04, []byte("small"))
	header := make([]byte, HeaderSize)
	header[0] = 0x04
	binary.BigEndian.PutUint32(header[1:], 17)

	frames, consumed, err := d.Feed(append(ok, header...))
	if err != ErrFrameTooLarge {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
	if len(frames) != 1 || string(frames[0].Payload) != "small" {
		t.Errorf("frames before the oversized header should be returned, got %v", frames)
	}
	if consumed != len(ok) {
		t.Errorf("consumed = %d, want %d", consumed, len(ok))
	}
}

func TestDecoder_LargestDeclaredLengthWaits(t *testing.T) {
	d := NewDecoder(0)

	header := []byte{0x04, 0xFF, 0xFF, 0xFF, 0xFF}
	frames, consumed, err := d.Feed(append(header, []byte("partial")...))
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if len(frames) != 0 || consumed != 0 {
		t.Errorf("got %d frames, consumed %d; want none", len(frames), consumed)
	}
	if d.Buffered() != HeaderSize+len("partial") {
		t.Errorf("Buffered = %d, want %d", d.Buffered(), HeaderSize+len("partial"))
	}
}

func TestDecoder_MaxLengthBoundary(t *testing.T) {
	d := NewDecoder(4)

	frames, _, err := d.Feed(mustEncode(t, 0x04, []byte("four")))
	if err != nil {
		t.Fatalf("payload at the cap should be accepted: %v", err)
	}
	if len(frames) != 1 {
		t.Errorf("got %d frames, want 1", len(frames))
	}
}

func TestDecoder_Reset(t *testing.T) {
	d := NewDecoder(0)
	d.Feed([]byte{0x04, 0, 0})

	d.Reset()
	if d.Buffered() != 0 {
		t.Errorf("Buffered = %d after Reset, want 0", d.Buffered())
	}

	frames, _, err := d.Feed(mustEncode(t, 0x03, []byte("{}")))
	if err != nil || len(frames) != 1 {
		t.Errorf("Feed after Reset = %v, %v", frames, err)
	}
}

func TestNewDecoder_DefaultCap(t *testing.T) {
	if d := NewDecoder(0); d.maxLength != MaxPayloadLength {
		t.Errorf("maxLength = %d, want %d", d.maxLength, uint32(MaxPayloadLength))
	}
	if d := NewDecoder(-1); d.maxLength != MaxPayloadLength {
		t.Errorf("maxLength = %d, want %d", d.maxLength, uint32(MaxPayloadLength))
	}
	if d := NewDecoder(1024); d.maxLength != 1024 {
		t.Errorf("maxLength = %d, want 1024", d.maxLength)
	}
}
