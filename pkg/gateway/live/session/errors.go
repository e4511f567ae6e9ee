package session

import "errors"

var (
	errBackpressure = errors.New("live outbound backpressure")

	// ErrUpstreamUnavailable reports that the model session could not be
	// established; nothing was relayed.
	ErrUpstreamUnavailable = errors.New("upstream session unavailable")

	// ErrUpstreamClosed reports that the model session ended with an error
	// mid-conversation.
	ErrUpstreamClosed = errors.New("upstream session closed")
)
