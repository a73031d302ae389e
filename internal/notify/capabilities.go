// Package notify alerts operators about new orders through three channels
// that degrade independently: an audible cue, an OS-level notification and
// an in-app toast. Platform capabilities are injected as interfaces.
package notify

import (
	"context"
	"time"
)

// Waveform selects the oscillator shape of a tone.
type Waveform string

const (
	WaveSine   Waveform = "sine"
	WaveSquare Waveform = "square"
)

// ToneGenerator synthesizes a single tone and blocks until it has played.
type ToneGenerator interface {
	Tone(w Waveform, freqHz float64, d time.Duration, gain float64) error
}

// ClipPlayer plays an encoded WAV clip.
type ClipPlayer interface {
	PlayClip(wav []byte) error
}

// Permission is the OS notification permission state.
type Permission string

const (
	PermissionDefault     Permission = "default"
	PermissionGranted     Permission = "granted"
	PermissionDenied      Permission = "denied"
	PermissionUnsupported Permission = "unsupported"
)

// Notification is an OS-level notification request.
type Notification struct {
	Title string
	Body  string
	Tag   string
}

// NotificationHandle controls a notification that is being shown.
type NotificationHandle interface {
	Close()
	OnClick(fn func())
}

// NotificationCenter is the OS notification capability.
type NotificationCenter interface {
	Permission() Permission
	RequestPermission(ctx context.Context) (Permission, error)
	Show(n Notification) (NotificationHandle, error)
}

// WindowFocuser brings the console window to the front.
type WindowFocuser interface {
	Focus()
}
