package session

import "errors"

// Validation failures. Reported synchronously, no state is mutated.
var (
	ErrNotFound     = errors.New("chat not found")
	ErrEmptyContent = errors.New("message content is empty")
	ErrEmptyTitle   = errors.New("chat title is empty")
)

// ErrBusy rejects a send while another one is still in flight. Kept distinct
// from the validation errors so callers can ignore it silently.
var ErrBusy = errors.New("another send is in flight")

// ErrGateway marks failures coming back from the persistence gateway.
var ErrGateway = errors.New("gateway error")
