package login

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Message types of the login exchange.
const (
	// TypeResponse marks a LoginResponse frame (server to client).
	TypeResponse byte = 0x03
	// TypeRequest marks a LoginRequest frame (client to server).
	TypeRequest byte = 0x04
)

// Response messages.
const (
	MessageSuccess            = "Login successful"
	MessageInvalidCredentials = "Invalid credentials"
	MessageInvalidFormat      = "Invalid request format"
)

// UserIDPrefix is prepended to the username to form the user id of a successful login.
const UserIDPrefix = "user_"

// ErrInvalidFormat is returned when a request payload is not a UTF-8 JSON object.
var ErrInvalidFormat = errors.New("invalid request format")

// Request is the payload of a LoginRequest frame.
type Request struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Response is the payload of a LoginResponse frame.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

// DecodeRequest parses a LoginRequest payload. The payload must be valid
// UTF-8 holding a JSON object; absent or non-string fields decode as "".
func DecodeRequest(payload []byte) (Request, error) {
	if !utf8.Valid(payload) {
		return Request{}, errors.Wrap(ErrInvalidFormat, "payload is not valid UTF-8")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return Request{}, errors.Wrap(ErrInvalidFormat, err.Error())
	}
	if fields == nil {
		return Request{}, errors.Wrap(ErrInvalidFormat, "payload is not a JSON object")
	}

	return Request{
		Username: stringField(fields, "username"),
		Password: stringField(fields, "password"),
	}, nil
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Encode serializes the request as a LoginRequest payload.
func (r Request) Encode() ([]byte, error) {
	return marshal(r)
}

// Encode serializes the response as a LoginResponse payload.
func (r Response) Encode() ([]byte, error) {
	return marshal(r)
}

// DecodeResponse parses a LoginResponse payload.
func DecodeResponse(payload []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return Response{}, errors.Wrap(err, "decode login response")
	}
	return resp, nil
}

// marshal encodes v as compact JSON without HTML escaping.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, errors.Wrap(err, "encode login payload")
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
