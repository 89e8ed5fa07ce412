package permissions

import "errors"

// ErrMicrophoneDenied is returned by EnsureMicrophone when capture is not
// allowed. The soundboard still works without a microphone.
var ErrMicrophoneDenied = errors.New("microphone permission not granted")

// Status mirrors AVAuthorizationStatus.
type Status int

const (
	NotDetermined Status = 0
	Restricted    Status = 1
	Denied        Status = 2
	Authorized    Status = 3
)

func (s Status) String() string {
	switch s {
	case NotDetermined:
		return "not determined"
	case Restricted:
		return "restricted"
	case Denied:
		return "denied"
	case Authorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// Granted reports whether capture may proceed.
func (s Status) Granted() bool { return s == Authorized }
