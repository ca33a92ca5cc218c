// Package transport carries messages and notifications to whatever is
// subscribed to a named destination. Publishing is fire-and-forget: there is
// no acknowledgment back to the publisher.
package transport

import "context"

type Publisher interface {
	Publish(ctx context.Context, destination string, payload []byte) error
	Close() error
}
