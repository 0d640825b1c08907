// Package login implements the login exchange: a LoginRequest frame carrying
// JSON credentials is answered with a LoginResponse frame.
package login

import (
	"context"
	"log/slog"

	"github.com/Zereker/framesocket"
)

// Handler answers LoginRequest frames. Every request gets exactly one
// LoginResponse frame, including requests whose payload cannot be decoded.
type Handler struct {
	validator Validator
	logger    framesocket.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithValidator replaces the credential check. The default is NonEmpty.
func WithValidator(v Validator) Option {
	return func(h *Handler) {
		h.validator = v
	}
}

// WithLogger sets the logger.
func WithLogger(logger framesocket.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler creates a login Handler.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		validator: NonEmpty,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router is the subset of a dispatcher needed to register the login route.
type Router interface {
	Handle(typ byte, h framesocket.FrameHandler)
}

// Register routes LoginRequest frames on r to h.
func Register(r Router, h *Handler) {
	r.Handle(TypeRequest, h)
}

// ServeFrame implements framesocket.FrameHandler.
func (h *Handler) ServeFrame(ctx context.Context, f framesocket.Frame) (*framesocket.Frame, error) {
	resp := h.Login(ctx, f.Payload)

	payload, err := resp.Encode()
	if err != nil {
		return nil, err
	}

	out := framesocket.NewFrame(TypeResponse, payload)
	return &out, nil
}

// Login evaluates a LoginRequest payload and returns the response to send.
func (h *Handler) Login(ctx context.Context, payload []byte) Response {
	req, err := DecodeRequest(payload)
	if err != nil {
		h.logger.Warn("invalid login request", "error", err, "length", len(payload))
		return Response{Message: MessageInvalidFormat}
	}

	if !h.validator.Validate(ctx, req.Username, req.Password) {
		h.logger.Info("login rejected", "username", req.Username)
		return Response{Message: MessageInvalidCredentials}
	}

	h.logger.Info("login accepted", "username", req.Username)
	return Response{
		Success: true,
		Message: MessageSuccess,
		UserID:  UserIDPrefix + req.Username,
	}
}
