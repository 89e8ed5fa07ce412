//go:build !linux && !darwin

package hotkey

// New reports that global hotkeys are unavailable.
func New() (Manager, error) {
	return nil, ErrUnsupported
}
