// Package push reaches users that have no live connection, through an
// external push-notification provider. Failures are per-token and the
// caller is expected to carry on with the remaining tokens.
package push

import "context"

type Provider interface {
	Push(ctx context.Context, deviceToken, title, body string) error
}

// Discard drops every push. Used in development when no provider is
// configured.
type Discard struct{}

func (Discard) Push(context.Context, string, string, string) error { return nil }
