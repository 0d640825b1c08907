package login

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zereker/framesocket"
)

func quietHandler(opts ...Option) *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(append([]Option{WithLogger(logger)}, opts...)...)
}

func serve(t *testing.T, h *Handler, payload string) framesocket.Frame {
	t.Helper()
	resp, err := h.ServeFrame(context.Background(), framesocket.NewFrame(TypeRequest, []byte(payload)))
	require.NoError(t, err)
	require.NotNil(t, resp)
	return *resp
}

func TestHandler_ServeFrame(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{
			name:    "accepted",
			payload: `{"username":"testuser","password":"testpass"}`,
			want:    `{"success":true,"message":"Login successful","userId":"user_testuser"}`,
		},
		{
			name:    "empty username",
			payload: `{"username":"","password":"x"}`,
			want:    `{"success":false,"message":"Invalid credentials","userId":""}`,
		},
		{
			name:    "missing password",
			payload: `{"username":"alice"}`,
			want:    `{"success":false,"message":"Invalid credentials","userId":""}`,
		},
		{
			name:    "not json",
			payload: `not-json`,
			want:    `{"success":false,"message":"Invalid request format","userId":""}`,
		},
		{
			name:    "json array",
			payload: `[1,2]`,
			want:    `{"success":false,"message":"Invalid request format","userId":""}`,
		},
	}

	h := quietHandler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := serve(t, h, tt.payload)
			assert.Equal(t, TypeResponse, resp.Type)
			assert.Equal(t, tt.want, string(resp.Payload))
		})
	}
}

func TestHandler_InvalidUTF8(t *testing.T) {
	resp := serve(t, quietHandler(), string([]byte{0xc3, 0x28}))
	assert.Equal(t, TypeResponse, resp.Type)
	assert.JSONEq(t, `{"success":false,"message":"Invalid request format","userId":""}`, string(resp.Payload))
}

func TestHandler_CustomValidator(t *testing.T) {
	var seen []string
	v := ValidatorFunc(func(_ context.Context, username, password string) bool {
		seen = append(seen, username+":"+password)
		return username == "admin" && password == "secret"
	})
	h := quietHandler(WithValidator(v))

	assert.Equal(t, Response{Success: true, Message: MessageSuccess, UserID: "user_admin"},
		h.Login(context.Background(), []byte(`{"username":"admin","password":"secret"}`)))
	assert.Equal(t, Response{Message: MessageInvalidCredentials},
		h.Login(context.Background(), []byte(`{"username":"admin","password":"guess"}`)))

	// Malformed payloads never reach the validator.
	h.Login(context.Background(), []byte(`oops`))
	assert.Equal(t, []string{"admin:secret", "admin:guess"}, seen)
}

func TestNonEmpty(t *testing.T) {
	ctx := context.Background()
	assert.True(t, NonEmpty.Validate(ctx, "u", "p"))
	assert.False(t, NonEmpty.Validate(ctx, "", "p"))
	assert.False(t, NonEmpty.Validate(ctx, "u", ""))
	assert.False(t, NonEmpty.Validate(ctx, "", ""))
}

type routeRecorder map[byte]framesocket.FrameHandler

func (r routeRecorder) Handle(typ byte, h framesocket.FrameHandler) {
	r[typ] = h
}

func TestRegister(t *testing.T) {
	routes := routeRecorder{}
	h := quietHandler()

	Register(routes, h)

	require.Len(t, routes, 1)
	assert.Same(t, h, routes[TypeRequest])
}
