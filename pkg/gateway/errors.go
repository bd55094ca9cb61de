package gateway

import "errors"

var (
	// ErrSessionAlreadyActive names a second activation requested while a
	// session is already open. The orchestrator's activateSession treats
	// that case as a no-op and does not return this error.
	ErrSessionAlreadyActive = errors.New("inference session already active")

	// ErrCallCleanedUp names a message that arrives for a call whose cleanup
	// flag is already set. The orchestrator drops such messages silently and
	// does not return this error.
	ErrCallCleanedUp = errors.New("call already cleaned up")

	// ErrDTMFDisabled names a digit that arrives while DTMF recognition is
	// disabled by configuration. The orchestrator ignores such digits and
	// does not return this error.
	ErrDTMFDisabled = errors.New("dtmf recognition disabled")

	// ErrNoActiveSession is returned when audio is pushed but no inference
	// session is open to receive it.
	ErrNoActiveSession = errors.New("no active inference session")

	// ErrProviderNil names a required collaborator given as nil. The
	// constructors in this package substitute defaults or report their own
	// errors instead; none of them returns this error.
	ErrProviderNil = errors.New("required provider is nil")

	// ErrPBXNotFound is the error pkg/ari wraps around a 404 from Asterisk.
	// During cleanup this is absorbed rather than treated as a failure —
	// the channel/bridge/playback is already gone, which is the desired
	// end state.
	ErrPBXNotFound = errors.New("pbx resource not found")
)
