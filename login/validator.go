package login

import "context"

// Validator decides whether a username/password pair is accepted.
type Validator interface {
	Validate(ctx context.Context, username, password string) bool
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(ctx context.Context, username, password string) bool

// Validate calls fn(ctx, username, password).
func (fn ValidatorFunc) Validate(ctx context.Context, username, password string) bool {
	return fn(ctx, username, password)
}

// NonEmpty accepts any pair where both the username and the password are non-empty.
// No stored credentials are consulted.
var NonEmpty Validator = ValidatorFunc(func(_ context.Context, username, password string) bool {
	return username != "" && password != ""
})
