package transport

import "context"

// Navigator sends the user back to the login entry point after unrecoverable
// session loss.
type Navigator interface {
	RedirectToLogin(ctx context.Context)
}

// NavigatorFunc adapts a function into a Navigator
type NavigatorFunc func(ctx context.Context)

func (f NavigatorFunc) RedirectToLogin(ctx context.Context) {
	f(ctx)
}
