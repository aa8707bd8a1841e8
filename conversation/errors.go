package conversation

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks requests rejected before any state change.
	ErrInvalidInput = errors.New("invalid input")
	// ErrGatewayFailure marks a failed, timed out or empty completion call.
	ErrGatewayFailure = errors.New("completion gateway failure")
	// ErrMediaAccess marks an unusable image or capture device.
	ErrMediaAccess = errors.New("media access failure")
	// ErrRelayAborted marks a turn whose reply could not be delivered, such
	// as a streaming client that disconnected.
	ErrRelayAborted = errors.New("reply relay aborted")

	ErrEmptyMessage  = fmt.Errorf("%w: message is required", ErrInvalidInput)
	ErrMissingID     = fmt.Errorf("%w: conversation id is required", ErrInvalidInput)
	ErrTopicMismatch = fmt.Errorf("%w: topic does not match conversation", ErrInvalidInput)
)
