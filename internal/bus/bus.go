// Package bus carries "room changed" events from writers to the processes
// that hold watchers for those rooms.
package bus

import (
	"context"
	"errors"
)

// ErrClosed is returned when publishing on a closed bus.
var ErrClosed = errors.New("bus: closed")

// Bus delivers room ids to every subscriber, including subscribers in other
// processes when the implementation is shared.
type Bus interface {
	// Publish announces that the room changed. Delivery is at least once per
	// live subscriber; events for the same room may be merged by receivers.
	Publish(ctx context.Context, roomID string) error
	// Subscribe returns a channel of room ids and a cancel func. The channel
	// is not closed on cancel; receivers stop reading once they cancel.
	Subscribe(ctx context.Context) (<-chan string, func(), error)
	Close() error
}
