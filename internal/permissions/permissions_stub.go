//go:build !darwin

package permissions

import "github.com/rs/zerolog"

// Microphone always reports Authorized on non-macOS platforms.
func Microphone() Status { return Authorized }

// EnsureMicrophone is a no-op on non-macOS platforms.
func EnsureMicrophone(zerolog.Logger) error {
	return nil
}
