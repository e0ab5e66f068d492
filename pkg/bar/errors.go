package bar

import (
	"errors"
	"fmt"

	"gitlab.com/tinyland/lab/status-pulse/pkg/protocol"
)

var (
	// ErrDeferred is returned by Update or Click when the work was handed
	// to the block's Waker.
	ErrDeferred = errors.New("bar: update deferred to async job")

	// ErrDraining is returned by Waker.Go after shutdown has begun.
	ErrDraining = errors.New("bar: scheduler is draining")

	// ErrNoConsumer is the collection error of an async result delivered
	// to a block that does not implement Consumer.
	ErrNoConsumer = errors.New("bar: async result for block without Consume")

	// ErrProtocolEncode wraps encoder failures returned from Run.
	ErrProtocolEncode = protocol.ErrEncode

	// ErrIOClosed marks a stream closed by the peer.
	ErrIOClosed = protocol.ErrIOClosed
)

// CollectionError is a block-local failure. The scheduler renders the
// block degraded and keeps scheduling it.
type CollectionError struct {
	ID  Identity
	Err error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("block %s: %v", e.ID, e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }

// ConfigurationError is raised before the loop starts.
type ConfigurationError struct {
	Block string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Block != "" {
		return fmt.Sprintf("configuration: block %s: %v", e.Block, e.Err)
	}
	return fmt.Sprintf("configuration: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
