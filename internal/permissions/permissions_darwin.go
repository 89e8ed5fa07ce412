//go:build darwin

package permissions

/*
#cgo LDFLAGS: -framework AVFoundation -framework Cocoa
#import <AVFoundation/AVFoundation.h>

int checkMicrophonePermission() {
    AVAuthorizationStatus status = [AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeAudio];
    return (int)status;
}

void requestMicrophonePermission() {
    [AVCaptureDevice requestAccessForMediaType:AVMediaTypeAudio completionHandler:^(BOOL granted) {}];
}
*/
import "C"

import "github.com/rs/zerolog"

// Microphone returns the current microphone permission status
func Microphone() Status {
	return Status(C.checkMicrophonePermission())
}

// EnsureMicrophone triggers the system dialog when the user has not been
// asked yet and reports whether capture is currently allowed.
func EnsureMicrophone(log zerolog.Logger) error {
	status := Microphone()
	if status.Granted() {
		return nil
	}

	log.Warn().Str("status", status.String()).Msg("Microphone permission required")
	if status == NotDetermined {
		C.requestMicrophonePermission()
	} else {
		log.Warn().Msg("Grant access in System Settings → Privacy & Security → Microphone")
	}
	return ErrMicrophoneDenied
}
